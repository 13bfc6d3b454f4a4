// Package logstore is a peer's append-only causal log. It owns the log
// sequence, the peer's vector clock and the pattern index derived from
// pattern-tagged entries. No other package mutates them.
//
// Store methods are safe to call from multiple goroutines, but callers that
// need "one merge completes before the next begins" across Store and gossip
// state must serialize at a higher level (see package node).
package logstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/idgen"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/store"
)

// Config configures a Store.
type Config struct {
	PeerID string

	// Persister saves and loads state. Nil keeps state in memory only.
	Persister store.Persister

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Store is the Log Store for one peer.
type Store struct {
	peerID    string
	persister store.Persister
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	log      []model.LogEntry
	ids      map[string]struct{}
	clock    model.VectorClock
	patterns map[string]model.PatternRecord
	meta     store.Metadata
}

// MergeResult reports what MergeRemote did with a batch.
type MergeResult struct {
	Merged     int `json:"merged"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Total      int `json:"total"` // log length after the merge
}

// Stats aggregates the store's contents.
type Stats struct {
	TotalPatterns   int               `json:"total_patterns"`
	TotalLogEntries int               `json:"total_log_entries"`
	SourcePeers     []string          `json:"source_peers"`
	SourcePeerCount int               `json:"source_peer_count"`
	Clock           model.VectorClock `json:"vector_clock"`
	LastUpdate      *int64            `json:"last_update"` // wall clock of the last log entry
}

// Open creates a Store and loads any previously saved state. A missing state
// starts empty. A corrupt state is logged and also starts empty.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if !model.ValidPeerID(cfg.PeerID) {
		return nil, fmt.Errorf("invalid peer id %q", cfg.PeerID)
	}
	s := &Store{
		peerID:    cfg.PeerID,
		persister: cfg.Persister,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.reset()
	s.meta = store.Metadata{
		CreatedAt: s.now().UnixMilli(),
		PeerID:    s.peerID,
		Version:   store.StateVersion,
	}

	if s.persister != nil {
		if err := s.Load(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("logstore: starting with empty state", "peer", s.peerID, "err", err)
		}
	}
	return s, nil
}

// PeerID returns the local peer id.
func (s *Store) PeerID() string { return s.peerID }

func (s *Store) reset() {
	s.log = nil
	s.ids = make(map[string]struct{})
	s.clock = model.VectorClock{}
	s.patterns = make(map[string]model.PatternRecord)
}

// Append adds a locally produced payload to the log. The peer's own clock
// component advances by exactly one and the entry carries a snapshot of the
// whole clock.
func (s *Store) Append(payload model.Payload) (model.LogEntry, error) {
	if !payload.Type.IsValid() {
		return model.LogEntry{}, &model.ValidationError{Errors: []model.FieldError{{Field: "payload.type", Message: "is required"}}}
	}
	now := s.now()
	id, err := idgen.Generate(s.peerID, now)
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("generate entry id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.Tick(s.peerID)
	entry := model.LogEntry{
		ID:        id,
		Origin:    s.peerID,
		WallClock: now.UnixMilli(),
		Clock:     s.clock.Copy(),
		Payload:   payload,
		Checksum:  model.Digest(payload),
	}
	s.insert(entry)
	return entry, nil
}

// insert appends e and indexes it. Callers hold s.mu.
func (s *Store) insert(e model.LogEntry) {
	s.log = append(s.log, e)
	s.ids[e.ID] = struct{}{}
	s.index(e)
}

// index adds or overwrites the PatternRecord for a pattern-tagged entry.
func (s *Store) index(e model.LogEntry) {
	if !e.Payload.IsPattern() {
		return
	}
	p, err := e.Payload.Pattern()
	if err != nil {
		s.logger.Warn("logstore: undecodable pattern payload", "entry", e.ID, "err", err)
		return
	}
	s.patterns[e.ID] = model.PatternRecord{
		Pattern:    p,
		LogEntryID: e.ID,
		SourcePeer: e.Origin,
		AddedAt:    e.WallClock,
	}
}

// Validate reports whether e is merge-eligible: required fields present and
// checksum matching the payload. It has no side effects.
func Validate(e *model.LogEntry) bool {
	return model.ValidateEntry(e) == nil
}

// MergeRemote folds entries delivered by remotePeer into the log, in order.
// Known ids are skipped, invalid entries are counted and dropped, and the
// rest are appended and indexed. The log is then re-sorted by
// (WallClock, Origin, origin counter, ID).
//
// A batch attributed to the local peer is rejected as invalid: the own clock
// component only advances through Append.
//
// Only remotePeer's clock component is advanced, to the maximum of the local
// value and entry.Clock[remotePeer]. Other components of the incoming
// snapshots are not folded in, so knowledge of third peers is not propagated
// transitively. The resulting order is a wall-clock approximation: concurrent
// entries are force-ordered, and skewed clocks can order them differently
// than causality would. Clock().Compare exposes the real relation.
func (s *Store) MergeRemote(entries []model.LogEntry, remotePeer string) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	if remotePeer == s.peerID {
		res.Invalid = len(entries)
		if len(entries) > 0 {
			s.logger.Warn("logstore: rejected merge attributed to local peer", "peer", remotePeer, "entries", len(entries))
		}
		res.Total = len(s.log)
		return res
	}
	if len(entries) > 0 {
		s.clock.Observe(remotePeer, 0)
	}
	for i := range entries {
		e := entries[i]
		if _, ok := s.ids[e.ID]; ok {
			res.Duplicates++
			continue
		}
		if err := model.ValidateEntry(&e); err != nil {
			res.Invalid++
			s.logger.Warn("logstore: rejected remote entry",
				"peer", remotePeer, "entry", e.ID, "err", err)
			continue
		}
		s.clock.Observe(remotePeer, e.Clock.Get(remotePeer))
		e.Clock = e.Clock.Copy()
		s.insert(e)
		res.Merged++
	}

	sort.SliceStable(s.log, func(i, j int) bool {
		return s.log[i].Less(&s.log[j])
	})
	res.Total = len(s.log)
	return res
}

// Clear empties the log, clock and pattern index. Metadata is kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
