// Package node is the per-peer control loop. It owns one Log Store and one
// Gossip Engine and runs every operation on them one at a time, applying the
// scanner and relevance policy between the engine's raw deliveries and the
// store's merge.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alfredjeanlab/clawnet/internal/events"
	"github.com/alfredjeanlab/clawnet/internal/gossip"
	"github.com/alfredjeanlab/clawnet/internal/logstore"
	"github.com/alfredjeanlab/clawnet/internal/metrics"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/scan"
)

// Config wires a Node.
type Config struct {
	Store  *logstore.Store
	Engine *gossip.Engine

	// Scanner vets outbound and inbound patterns. Nil accepts everything.
	Scanner scan.Scanner
	// Hold receives quarantined patterns. Nil creates a private hold.
	Hold *scan.Hold

	Filter    gossip.Filter
	Interests model.InterestVector

	// Publisher observes merges and quarantines. Nil means none.
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Node serializes Log Store and Gossip Engine operations for one peer.
type Node struct {
	store     *logstore.Store
	engine    *gossip.Engine
	scanner   scan.Scanner
	hold      *scan.Hold
	filter    gossip.Filter
	interests model.InterestVector
	pub       events.Publisher
	logger    *slog.Logger

	mu     sync.Mutex
	unsubs []func()

	// pendingMu guards deliveries buffered during an engine sync.
	pendingMu sync.Mutex
	pending   []gossip.Delivery
	seen      map[string]struct{}
}

// New subscribes the node to its interest tags and allow-listed tags.
func New(cfg Config) (*Node, error) {
	if cfg.Store == nil || cfg.Engine == nil {
		return nil, errors.New("node: store and engine are required")
	}
	if cfg.Store.PeerID() != cfg.Engine.PeerID() {
		return nil, fmt.Errorf("node: store peer %q does not match engine peer %q", cfg.Store.PeerID(), cfg.Engine.PeerID())
	}
	n := &Node{
		store:     cfg.Store,
		engine:    cfg.Engine,
		scanner:   cfg.Scanner,
		hold:      cfg.Hold,
		filter:    cfg.Filter,
		interests: cfg.Interests,
		pub:       cfg.Publisher,
		logger:    cfg.Logger,
		seen:      make(map[string]struct{}),
	}
	if n.scanner == nil {
		n.scanner = scan.AcceptAll
	}
	if n.hold == nil {
		n.hold = scan.NewHold()
	}
	if n.interests == nil {
		n.interests = model.InterestVector{}
	}
	if n.pub == nil {
		n.pub = &events.NoopPublisher{}
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}

	for _, tag := range n.subscribedTags() {
		n.unsubs = append(n.unsubs, n.engine.Subscribe(tag, n.collect))
	}
	return n, nil
}

// subscribedTags is the union of interest tags above the floor and the
// allow-list, sorted.
func (n *Node) subscribedTags() []string {
	set := make(map[string]struct{})
	for _, t := range gossip.InterestTags(n.interests, n.filter.Floor) {
		set[t] = struct{}{}
	}
	for _, t := range n.filter.AlwaysRelevant {
		set[t] = struct{}{}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// collect buffers a delivery. A pattern matching several subscribed tags is
// kept once per message.
func (n *Node) collect(_ context.Context, d gossip.Delivery) {
	n.pendingMu.Lock()
	defer n.pendingMu.Unlock()
	key := d.MessageID + "/" + d.Pattern.ID
	if _, dup := n.seen[key]; dup {
		return
	}
	n.seen[key] = struct{}{}
	n.pending = append(n.pending, d)
}

// drain returns and clears the buffered deliveries.
func (n *Node) drain() []gossip.Delivery {
	n.pendingMu.Lock()
	defer n.pendingMu.Unlock()
	out := n.pending
	n.pending = nil
	n.seen = make(map[string]struct{})
	return out
}

// Close removes the node's subscriptions.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, u := range n.unsubs {
		u()
	}
	n.unsubs = nil
}

// PeerID returns the local peer id.
func (n *Node) PeerID() string { return n.store.PeerID() }

// Store returns the node's Log Store for read access.
func (n *Node) Store() *logstore.Store { return n.store }

// Engine returns the node's Gossip Engine for read access.
func (n *Node) Engine() *gossip.Engine { return n.engine }

// Hold returns the quarantine hold.
func (n *Node) Hold() *scan.Hold { return n.hold }

// Interests returns the local interest vector.
func (n *Node) Interests() model.InterestVector { return n.interests }

func (n *Node) emit(ctx context.Context, topic string, event any) {
	if err := n.pub.Publish(ctx, topic, event); err != nil {
		n.logger.Debug("node: event publish failed", "topic", topic, "err", err)
	}
}

func (n *Node) quarantine(ctx context.Context, p model.Pattern, peer string, dir scan.Direction, reasons []string) {
	n.hold.Add(p, peer, dir, reasons)
	n.logger.Warn("node: pattern quarantined", "peer", n.PeerID(), "from", peer, "pattern", p.ID, "direction", dir)
	n.emit(ctx, events.TopicPatternQuarantined, events.PatternQuarantined{
		Peer: n.PeerID(), From: peer, Direction: string(dir), Pattern: p, Reasons: reasons,
	})
}

// Append adds a payload to the log and saves. Persistence failure is
// returned after the entry is in memory.
func (n *Node) Append(ctx context.Context, payload model.Payload) (model.LogEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	entry, err := n.store.Append(payload)
	if err != nil {
		return model.LogEntry{}, err
	}
	metrics.EntriesAppended.Inc()
	metrics.LogEntries.Set(float64(n.store.Len()))
	n.emit(ctx, events.TopicLogAppended, events.LogAppended{Entry: &entry})
	return entry, n.store.Save(ctx)
}

// MergeRemote merges entries delivered by remotePeer and saves.
func (n *Node) MergeRemote(ctx context.Context, entries []model.LogEntry, remotePeer string) (logstore.MergeResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	res := n.merge(ctx, entries, remotePeer)
	return res, n.store.Save(ctx)
}

func (n *Node) merge(ctx context.Context, entries []model.LogEntry, remotePeer string) logstore.MergeResult {
	res := n.store.MergeRemote(entries, remotePeer)
	metrics.EntriesMerged.WithLabelValues("merged").Add(float64(res.Merged))
	metrics.EntriesMerged.WithLabelValues("invalid").Add(float64(res.Invalid))
	metrics.EntriesMerged.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	metrics.LogEntries.Set(float64(res.Total))
	n.emit(ctx, events.TopicLogMerged, events.LogMerged{
		Peer: n.PeerID(), RemotePeer: remotePeer, Merged: res.Merged, Invalid: res.Invalid, Total: res.Total,
	})
	return res
}

// Save persists the Log Store.
func (n *Node) Save(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store.Save(ctx)
}

// Stats combines log, gossip and quarantine counts.
type Stats struct {
	Log         logstore.Stats `json:"log"`
	Gossip      gossip.Stats   `json:"gossip"`
	Quarantined int            `json:"quarantined"`
}

// Stats returns a snapshot of the node.
func (n *Node) Stats() Stats {
	return Stats{
		Log:         n.store.Stats(),
		Gossip:      n.engine.Stats(),
		Quarantined: n.hold.Len(),
	}
}
