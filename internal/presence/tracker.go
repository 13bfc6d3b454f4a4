// Package presence tracks the remote peers a gossip engine has heard from.
//
// A PeerRecord is ephemeral: it is rebuilt from observed gossip messages and
// never persisted. An optional background reaper marks peers that have gone
// quiet as idle and eventually evicts them, so long-running nodes do not
// grow the roster without bound.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// PeerRecord is a snapshot of one remote peer's observed activity.
type PeerRecord struct {
	Peer         string          `json:"peer"`
	FirstSeen    time.Time       `json:"first_seen"`
	LastSeen     time.Time       `json:"last_seen"`
	Patterns     []model.Pattern `json:"patterns"`      // every pattern observed, repeats included
	PatternCount int             `json:"pattern_count"` // len(Patterns)
	MessageCount int64           `json:"message_count"`
	IdleSecs     float64         `json:"idle_secs"`
	Reaped       bool            `json:"reaped,omitempty"`
	ReapedAt     time.Time       `json:"reaped_at,omitempty"`
}

// ReaperConfig configures the background idle-peer reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a peer must be silent before it is marked
	// idle. Default: 24 hours.
	IdleThreshold time.Duration

	// EvictAfter is how long after being marked idle a peer is removed from
	// the roster. Default: 7 days.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 5 minutes.
	SweepInterval time.Duration

	// OnIdle is called for each peer newly marked idle, outside the lock.
	OnIdle func(peer string)
}

// Tracker maintains the in-memory roster of remote peers.
type Tracker struct {
	mu    sync.RWMutex
	peers map[string]*peerState
	now   func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type peerState struct {
	firstSeen    time.Time
	lastSeen     time.Time
	patterns     []model.Pattern
	messageCount int64
	reaped       bool
	reapedAt     time.Time
}

// New creates an empty tracker.
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock creates a tracker that reads time from now.
func NewWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		peers: make(map[string]*peerState),
		now:   now,
	}
}

// Record notes a message from peer carrying patterns. Patterns accumulate;
// the same pattern seen twice is kept twice.
func (t *Tracker) Record(peer string, patterns []model.Pattern) {
	if peer == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.peers[peer]
	if !ok {
		state = &peerState{firstSeen: now}
		t.peers[peer] = state
	}

	if state.reaped {
		slog.Info("presence: peer active again", "peer", peer)
		state.reaped = false
		state.reapedAt = time.Time{}
	}

	state.lastSeen = now
	state.messageCount++
	state.patterns = append(state.patterns, patterns...)
}

func (t *Tracker) snapshot(peer string, state *peerState, now time.Time) PeerRecord {
	patterns := make([]model.Pattern, len(state.patterns))
	copy(patterns, state.patterns)
	return PeerRecord{
		Peer:         peer,
		FirstSeen:    state.firstSeen,
		LastSeen:     state.lastSeen,
		Patterns:     patterns,
		PatternCount: len(patterns),
		MessageCount: state.messageCount,
		IdleSecs:     now.Sub(state.lastSeen).Seconds(),
		Reaped:       state.reaped,
		ReapedAt:     state.reapedAt,
	}
}

// Roster returns a snapshot of all tracked peers, most recently seen first,
// ties broken by peer id. staleThreshold excludes peers silent for longer;
// pass 0 to include every peer.
func (t *Tracker) Roster(staleThreshold time.Duration) []PeerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	records := make([]PeerRecord, 0, len(t.peers))
	for peer, state := range t.peers {
		if staleThreshold > 0 && now.Sub(state.lastSeen) > staleThreshold {
			continue
		}
		records = append(records, t.snapshot(peer, state, now))
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].LastSeen.Equal(records[j].LastSeen) {
			return records[i].LastSeen.After(records[j].LastSeen)
		}
		return records[i].Peer < records[j].Peer
	})
	return records
}

// Get returns the record for peer.
func (t *Tracker) Get(peer string) (PeerRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.peers[peer]
	if !ok {
		return PeerRecord{}, false
	}
	return t.snapshot(peer, state, t.now()), true
}

// Patterns returns the patterns observed from peer, or an empty slice for an
// unknown peer.
func (t *Tracker) Patterns(peer string) []model.Pattern {
	rec, ok := t.Get(peer)
	if !ok {
		return []model.Pattern{}
	}
	return rec.Patterns
}

// Len returns the number of tracked peers.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// StartReaper launches a background goroutine that periodically marks idle
// peers. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 24 * time.Hour
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 7 * 24 * time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 5 * time.Minute
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyIdle []string

	t.mu.Lock()
	for peer, state := range t.peers {
		if state.reaped {
			if !state.reapedAt.IsZero() && now.Sub(state.reapedAt) > cfg.EvictAfter {
				delete(t.peers, peer)
			}
			continue
		}
		if now.Sub(state.lastSeen) > cfg.IdleThreshold {
			state.reaped = true
			state.reapedAt = now
			newlyIdle = append(newlyIdle, peer)
		}
	}
	t.mu.Unlock()

	sort.Strings(newlyIdle)
	for _, peer := range newlyIdle {
		slog.Info("presence: reaper marked peer idle",
			"peer", peer,
			"threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(peer)
		}
	}
}
