// Package gossip publishes pattern bundles to a shared exchange and consumes
// bundles from other peers. It tracks which messages it has delivered, who
// it has heard from, and which local handlers want which context tags.
//
// The engine never decides whether a pattern is accepted into the log; it
// hands raw matches plus message metadata to subscribers and leaves policy
// (similarity, scanning, merge) to the caller.
package gossip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/events"
	"github.com/alfredjeanlab/clawnet/internal/exchange"
	"github.com/alfredjeanlab/clawnet/internal/idgen"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/presence"
)

// Config configures an Engine.
type Config struct {
	PeerID   string
	Exchange exchange.Exchange

	// Publisher observes published/synced/expired events. Nil means none.
	Publisher events.Publisher

	// Tracker records remote peers. Nil creates a private tracker.
	Tracker *presence.Tracker

	Logger *slog.Logger

	// TTLDays is the lifetime stamped on published messages and used by
	// ExpireStale. Zero means model.DefaultTTLDays.
	TTLDays int

	Now func() time.Time
}

// Delivery is one pattern handed to a subscriber.
type Delivery struct {
	Pattern   model.Pattern
	Publisher string
	MessageID string
	Interests model.InterestVector
	// Entry is the publisher's log entry backing Pattern, if the message
	// carried one.
	Entry *model.LogEntry
}

// Handler receives deliveries for a subscribed tag. It runs inside Sync and
// must not call Publish, Sync or ExpireStale on the same engine.
type Handler func(ctx context.Context, d Delivery)

type subscription struct {
	tag     string
	handler Handler
}

// PublishedRecord notes a message this engine wrote.
type PublishedRecord struct {
	ID           string `json:"id"`
	WallClock    int64  `json:"wall_clock"`
	PatternCount int    `json:"pattern_count"`
}

// ReceivedRecord notes a remote message this engine delivered.
type ReceivedRecord struct {
	ID           string `json:"id"`
	WallClock    int64  `json:"wall_clock"`
	From         string `json:"from"`
	PatternCount int    `json:"pattern_count"`
}

// Stats summarizes engine activity.
type Stats struct {
	PeerID         string   `json:"peer_id"`
	Published      int      `json:"published"`
	Received       int      `json:"received"`
	ConnectedPeers int      `json:"connected_peers"`
	Subscriptions  []string `json:"subscriptions"`
	// LastSync is the wall clock of the most recently received message.
	LastSync *int64 `json:"last_sync"`
}

// Engine is the gossip engine for one peer.
type Engine struct {
	peerID  string
	ex      exchange.Exchange
	pub     events.Publisher
	tracker *presence.Tracker
	logger  *slog.Logger
	ttlDays int
	now     func() time.Time

	// opMu serializes Publish, Sync and ExpireStale.
	opMu sync.Mutex

	mu        sync.Mutex
	subs      map[string][]*subscription
	published []PublishedRecord
	received  map[string]ReceivedRecord
	lastRecv  *ReceivedRecord
}

// New returns an Engine. PeerID and Exchange are required.
func New(cfg Config) (*Engine, error) {
	if !model.ValidPeerID(cfg.PeerID) {
		return nil, fmt.Errorf("invalid peer id %q", cfg.PeerID)
	}
	if cfg.Exchange == nil {
		return nil, errors.New("gossip: exchange is required")
	}
	e := &Engine{
		peerID:   cfg.PeerID,
		ex:       cfg.Exchange,
		pub:      cfg.Publisher,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
		ttlDays:  cfg.TTLDays,
		now:      cfg.Now,
		subs:     make(map[string][]*subscription),
		received: make(map[string]ReceivedRecord),
	}
	if e.pub == nil {
		e.pub = &events.NoopPublisher{}
	}
	if e.tracker == nil {
		e.tracker = presence.New()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.ttlDays <= 0 {
		e.ttlDays = model.DefaultTTLDays
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// PeerID returns the local peer id.
func (e *Engine) PeerID() string { return e.peerID }

// TTL returns the message lifetime used by ExpireStale.
func (e *Engine) TTL() time.Duration {
	return time.Duration(e.ttlDays) * 24 * time.Hour
}

func (e *Engine) emit(ctx context.Context, topic string, event any) {
	if err := e.pub.Publish(ctx, topic, event); err != nil {
		e.logger.Debug("gossip: event publish failed", "topic", topic, "err", err)
	}
}

// PublishOption adjusts a message before it is written.
type PublishOption func(*model.GossipMessage)

// WithEntries attaches the log entries backing the published patterns so
// consumers can merge them with checksum validation.
func WithEntries(entries []model.LogEntry) PublishOption {
	return func(m *model.GossipMessage) { m.Entries = entries }
}

// WithTTLDays overrides the message lifetime.
func WithTTLDays(days int) PublishOption {
	return func(m *model.GossipMessage) {
		if days > 0 {
			m.TTLDays = days
		}
	}
}

// Publish wraps patterns and the local interest vector into a new message
// and writes it to the exchange. The message is recorded as published only
// once the write succeeds.
func (e *Engine) Publish(ctx context.Context, patterns []model.Pattern, interests model.InterestVector, opts ...PublishOption) (string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	now := e.now()
	id, err := idgen.Generate(e.peerID, now)
	if err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}
	if patterns == nil {
		patterns = []model.Pattern{}
	}
	if interests == nil {
		interests = model.InterestVector{}
	}
	msg := &model.GossipMessage{
		ID:        id,
		Publisher: e.peerID,
		WallClock: now.UnixMilli(),
		Patterns:  patterns,
		Interests: interests,
		TTLDays:   e.ttlDays,
	}
	for _, opt := range opts {
		opt(msg)
	}

	if err := e.ex.Write(context.WithoutCancel(ctx), msg.ID, msg); err != nil {
		return "", err
	}

	e.mu.Lock()
	e.published = append(e.published, PublishedRecord{ID: msg.ID, WallClock: msg.WallClock, PatternCount: len(patterns)})
	e.mu.Unlock()

	e.logger.Info("gossip: published", "peer", e.peerID, "message", msg.ID, "patterns", len(patterns))
	e.emit(ctx, events.TopicGossipPublished, events.GossipPublished{Peer: e.peerID, MessageID: msg.ID, Count: len(patterns)})
	return msg.ID, nil
}

// Subscribe registers h for tag and returns a function that removes exactly
// this registration. Calling the returned function more than once is a no-op.
func (e *Engine) Subscribe(tag string, h Handler) func() {
	sub := &subscription{tag: tag, handler: h}
	e.mu.Lock()
	e.subs[tag] = append(e.subs[tag], sub)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			list := e.subs[tag]
			for i, s := range list {
				if s == sub {
					e.subs[tag] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(e.subs[tag]) == 0 {
				delete(e.subs, tag)
			}
		})
	}
}

func (e *Engine) handlersFor(tag string) []*subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.subs[tag]
	out := make([]*subscription, len(list))
	copy(out, list)
	return out
}

// Sync scans the exchange and delivers every message not authored locally
// and not already received, in key order. It returns the ids of the newly
// delivered messages.
//
// A message that fails to read or decode is logged and skipped. Once the key
// listing succeeds, the batch is processed to completion even if ctx is
// cancelled; the next Sync picks up anything left.
func (e *Engine) Sync(ctx context.Context) ([]string, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	keys, err := e.ex.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	bctx := context.WithoutCancel(ctx)
	delivered := []string{}
	for _, key := range keys {
		msg, err := e.ex.Read(bctx, key)
		if err != nil {
			if !errors.Is(err, exchange.ErrNotFound) {
				e.logger.Warn("gossip: skipping unreadable message", "peer", e.peerID, "key", key, "err", err)
			}
			continue
		}
		if msg.ID == "" || msg.Publisher == "" {
			e.logger.Warn("gossip: skipping message without id or publisher", "peer", e.peerID, "key", key)
			continue
		}
		if msg.Publisher == e.peerID {
			continue
		}
		e.mu.Lock()
		_, seen := e.received[msg.ID]
		e.mu.Unlock()
		if seen {
			continue
		}

		e.tracker.Record(msg.Publisher, msg.Patterns)
		e.deliver(bctx, msg)

		rec := ReceivedRecord{ID: msg.ID, WallClock: msg.WallClock, From: msg.Publisher, PatternCount: len(msg.Patterns)}
		e.mu.Lock()
		e.received[msg.ID] = rec
		e.lastRecv = &rec
		e.mu.Unlock()
		delivered = append(delivered, msg.ID)
	}

	if len(delivered) > 0 {
		e.logger.Info("gossip: sync complete", "peer", e.peerID, "received", len(delivered), "peers", e.tracker.Len())
	}
	e.emit(bctx, events.TopicGossipSynced, events.GossipSynced{Peer: e.peerID, Received: delivered, Peers: e.tracker.Len()})
	return delivered, nil
}

// deliver calls subscribers for every (pattern, tag) pair in declaration
// order. Handlers run without engine locks held.
func (e *Engine) deliver(ctx context.Context, msg *model.GossipMessage) {
	for _, p := range msg.Patterns {
		var entry *model.LogEntry
		for _, tag := range p.Contexts {
			subs := e.handlersFor(tag)
			if len(subs) == 0 {
				continue
			}
			if entry == nil {
				entry = msg.EntryFor(p.ID)
			}
			d := Delivery{
				Pattern:   p,
				Publisher: msg.Publisher,
				MessageID: msg.ID,
				Interests: msg.Interests,
				Entry:     entry,
			}
			for _, s := range subs {
				s.handler(ctx, d)
			}
		}
	}
}

// ExpireStale deletes exchange messages whose modification time is older
// than the engine TTL and returns how many were removed. An I/O error stops
// the sweep; entries already removed stay removed.
func (e *Engine) ExpireStale(ctx context.Context) (int, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	keys, err := e.ex.ListKeys(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := e.now().Add(-e.TTL())
	removed := 0
	for _, key := range keys {
		mod, err := e.ex.ModifiedTime(ctx, key)
		if err != nil {
			if errors.Is(err, exchange.ErrNotFound) {
				continue
			}
			return removed, err
		}
		if !mod.Before(cutoff) {
			continue
		}
		if err := e.ex.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		e.logger.Info("gossip: expired stale messages", "peer", e.peerID, "removed", removed)
	}
	e.emit(ctx, events.TopicGossipExpired, events.GossipExpired{Peer: e.peerID, Removed: removed})
	return removed, nil
}

// Stats returns a snapshot of engine activity.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	tags := make([]string, 0, len(e.subs))
	for tag := range e.subs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	st := Stats{
		PeerID:         e.peerID,
		Published:      len(e.published),
		Received:       len(e.received),
		ConnectedPeers: e.tracker.Len(),
		Subscriptions:  tags,
	}
	if e.lastRecv != nil {
		ts := e.lastRecv.WallClock
		st.LastSync = &ts
	}
	return st
}

// Published returns the messages this engine has written, oldest first.
func (e *Engine) Published() []PublishedRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PublishedRecord, len(e.published))
	copy(out, e.published)
	return out
}

// Peers returns the tracked peers; see presence.Tracker.Roster.
func (e *Engine) Peers(stale time.Duration) []presence.PeerRecord {
	return e.tracker.Roster(stale)
}

// PatternsByPeer returns every pattern observed from peer.
func (e *Engine) PatternsByPeer(peer string) []model.Pattern {
	return e.tracker.Patterns(peer)
}
