package node

import (
	"context"
	"sort"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/events"
	"github.com/alfredjeanlab/clawnet/internal/gossip"
	"github.com/alfredjeanlab/clawnet/internal/metrics"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/scan"
)

// SyncResult reports what one sync cycle did.
type SyncResult struct {
	Received    []string `json:"received"`
	Delivered   int      `json:"delivered"`
	Irrelevant  int      `json:"irrelevant"`
	Quarantined int      `json:"quarantined"`
	Blocked     int      `json:"blocked"`
	Merged      int      `json:"merged"`
	Invalid     int      `json:"invalid"`
	Duplicates  int      `json:"duplicates"`
	Adopted     int      `json:"adopted"`
}

// Sync pulls new messages from the exchange and folds relevant, accepted
// patterns into the log. A pattern whose message carries its backing entry
// is merged with checksum validation under the publisher's id; otherwise it
// is adopted as a new local entry with AdoptedFrom set. The store is saved
// at the end.
func (n *Node) Sync(ctx context.Context) (SyncResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(start).Seconds()) }()

	n.drain()
	received, err := n.engine.Sync(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("list").Inc()
		return SyncResult{}, err
	}
	deliveries := n.drain()
	metrics.MessagesReceived.Add(float64(len(received)))
	metrics.KnownPeers.Set(float64(n.engine.Stats().ConnectedPeers))

	res := SyncResult{Received: received, Delivered: len(deliveries)}
	byPublisher := make(map[string][]model.LogEntry)
	var adopt []gossip.Delivery

	for _, d := range deliveries {
		if !n.filter.Relevant(d.Pattern, n.interests) {
			res.Irrelevant++
			metrics.PatternsFiltered.WithLabelValues("irrelevant").Inc()
			continue
		}
		verdict, err := n.scanner.Scan(ctx, d.Pattern)
		if err != nil {
			n.logger.Warn("node: scan failed, holding pattern", "peer", n.PeerID(), "from", d.Publisher, "pattern", d.Pattern.ID, "err", err)
			verdict = scan.Result{Decision: scan.Quarantine, Reasons: []string{err.Error()}}
		}
		switch verdict.Decision {
		case scan.Accept:
		case scan.Quarantine:
			n.quarantine(ctx, d.Pattern, d.Publisher, scan.Inbound, verdict.Reasons)
			res.Quarantined++
			metrics.PatternsFiltered.WithLabelValues("quarantined").Inc()
			continue
		default:
			res.Blocked++
			metrics.PatternsFiltered.WithLabelValues("blocked").Inc()
			continue
		}
		metrics.PatternsFiltered.WithLabelValues("accepted").Inc()

		if d.Entry != nil && describes(d.Entry, verdict.Cleaned) {
			byPublisher[d.Publisher] = append(byPublisher[d.Publisher], *d.Entry)
			continue
		}
		d.Pattern = verdict.Cleaned
		adopt = append(adopt, d)
	}

	publishers := make([]string, 0, len(byPublisher))
	for p := range byPublisher {
		publishers = append(publishers, p)
	}
	sort.Strings(publishers)
	for _, p := range publishers {
		mr := n.merge(ctx, byPublisher[p], p)
		res.Merged += mr.Merged
		res.Invalid += mr.Invalid
		res.Duplicates += mr.Duplicates
	}

	for _, d := range adopt {
		// The engine forgets what it received across restarts, so the
		// same message can be delivered again.
		if n.store.HasAdopted(d.Pattern.ID, d.Publisher) {
			res.Duplicates++
			continue
		}
		p := d.Pattern
		p.AdoptedFrom = d.Publisher
		payload, err := model.NewPatternPayload(p)
		if err != nil {
			n.logger.Warn("node: cannot adopt pattern", "from", d.Publisher, "pattern", p.ID, "err", err)
			continue
		}
		entry, err := n.store.Append(payload)
		if err != nil {
			n.logger.Warn("node: cannot adopt pattern", "from", d.Publisher, "pattern", p.ID, "err", err)
			continue
		}
		metrics.EntriesAppended.Inc()
		n.emit(ctx, events.TopicLogAppended, events.LogAppended{Entry: &entry})
		res.Adopted++
	}
	if res.Adopted > 0 {
		metrics.LogEntries.Set(float64(n.store.Len()))
	}

	if len(received) > 0 {
		n.logger.Info("node: sync", "peer", n.PeerID(),
			"received", len(received), "merged", res.Merged, "adopted", res.Adopted,
			"irrelevant", res.Irrelevant, "quarantined", res.Quarantined)
	}
	if err := n.store.Save(ctx); err != nil {
		metrics.SyncErrors.WithLabelValues("save").Inc()
		return res, err
	}
	return res, nil
}

// describes reports whether entry carries exactly pattern p. It fails when
// the scanner redacted p or when the entry's payload differs from the
// pattern listed in the message, so only scanned content reaches the log.
func describes(entry *model.LogEntry, p model.Pattern) bool {
	carried, err := entry.Payload.Pattern()
	if err != nil {
		return false
	}
	a, errA := model.NewPatternPayload(carried)
	b, errB := model.NewPatternPayload(p)
	return errA == nil && errB == nil && model.Digest(a) == model.Digest(b)
}

// Expire removes stale messages from the exchange.
func (n *Node) Expire(ctx context.Context) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	removed, err := n.engine.ExpireStale(ctx)
	metrics.MessagesExpired.Add(float64(removed))
	if err != nil {
		metrics.SyncErrors.WithLabelValues("expire").Inc()
	}
	return removed, err
}
