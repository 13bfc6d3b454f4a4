package node

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/clawnet/internal/events"
	"github.com/alfredjeanlab/clawnet/internal/gossip"
	"github.com/alfredjeanlab/clawnet/internal/metrics"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/scan"
)

// Rejected names a pattern that was not shared and why.
type Rejected struct {
	PatternID string `json:"pattern_id"`
	Reason    string `json:"reason"`
}

// ShareResult reports what Share did.
type ShareResult struct {
	MessageID   string           `json:"message_id,omitempty"`
	Entries     []model.LogEntry `json:"entries"`
	Quarantined int              `json:"quarantined"`
	Blocked     int              `json:"blocked"`
	Rejected    []Rejected       `json:"rejected,omitempty"`
}

// Share scans patterns, appends the accepted ones to the local log, publishes
// them with their backing entries, and saves. Quarantined and blocked
// patterns are neither logged nor published.
//
// If publishing fails the entries stay in the log and are saved; the caller
// may share them again later.
func (n *Node) Share(ctx context.Context, patterns []model.Pattern) (ShareResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	res := ShareResult{Entries: []model.LogEntry{}}
	var accepted []model.Pattern
	for _, p := range patterns {
		if err := model.ValidatePattern(&p); err != nil {
			res.Rejected = append(res.Rejected, Rejected{PatternID: p.ID, Reason: err.Error()})
			continue
		}
		verdict, err := n.scanner.Scan(ctx, p)
		if err != nil {
			return res, fmt.Errorf("scan pattern %s: %w", p.ID, err)
		}
		switch verdict.Decision {
		case scan.Accept:
		case scan.Quarantine:
			n.quarantine(ctx, p, n.PeerID(), scan.Outbound, verdict.Reasons)
			res.Quarantined++
			continue
		default:
			n.logger.Info("node: outbound pattern blocked", "peer", n.PeerID(), "pattern", p.ID)
			res.Blocked++
			continue
		}

		payload, err := model.NewPatternPayload(verdict.Cleaned)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{PatternID: p.ID, Reason: err.Error()})
			continue
		}
		entry, err := n.store.Append(payload)
		if err != nil {
			return res, err
		}
		metrics.EntriesAppended.Inc()
		n.emit(ctx, events.TopicLogAppended, events.LogAppended{Entry: &entry})
		accepted = append(accepted, verdict.Cleaned)
		res.Entries = append(res.Entries, entry)
	}

	if len(accepted) == 0 {
		return res, nil
	}
	metrics.LogEntries.Set(float64(n.store.Len()))

	id, pubErr := n.engine.Publish(ctx, accepted, n.interests, gossip.WithEntries(res.Entries))
	if pubErr == nil {
		res.MessageID = id
		metrics.MessagesPublished.Inc()
	}
	if err := n.store.Save(ctx); err != nil {
		return res, err
	}
	return res, pubErr
}
