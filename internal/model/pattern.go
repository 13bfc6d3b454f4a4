package model

import (
	"regexp"
	"time"
)

// Pattern is a shareable unit of learned knowledge.
type Pattern struct {
	ID          string         `json:"id"`
	Approach    string         `json:"approach,omitempty"`
	Description string         `json:"description,omitempty"`
	Contexts    []string       `json:"contexts"`
	Metrics     map[string]any `json:"metrics,omitempty"`
	Confidence  float64        `json:"confidence,omitempty"`
	Timestamp   int64          `json:"timestamp,omitempty"`
	AdoptedFrom string         `json:"adopted_from,omitempty"`
}

// PatternRecord is the derived index row for a pattern-tagged LogEntry.
type PatternRecord struct {
	Pattern
	LogEntryID string `json:"log_entry_id"`
	SourcePeer string `json:"source_peer"`
	AddedAt    int64  `json:"added_at"`
}

// InterestVector weights context tags for a peer.
type InterestVector map[string]float64

// DefaultTTLDays is how long a gossip message stays on the exchange.
const DefaultTTLDays = 7

// GossipMessage is a published bundle of patterns. It is never modified
// after it is written to the exchange.
type GossipMessage struct {
	ID        string         `json:"id"`
	Publisher string         `json:"publisher"`
	WallClock int64          `json:"wall_clock"`
	Patterns  []Pattern      `json:"patterns"`
	Interests InterestVector `json:"interests"`
	TTLDays   int            `json:"ttl"`

	// Entries are the publisher's log entries backing Patterns, if any.
	Entries []LogEntry `json:"entries,omitempty"`
}

// TTL returns the message lifetime, defaulting to DefaultTTLDays.
func (m *GossipMessage) TTL() time.Duration {
	days := m.TTLDays
	if days <= 0 {
		days = DefaultTTLDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// EntryFor returns the carried log entry whose pattern payload has the given
// pattern id, or nil.
func (m *GossipMessage) EntryFor(patternID string) *LogEntry {
	for i := range m.Entries {
		e := &m.Entries[i]
		if !e.Payload.IsPattern() {
			continue
		}
		p, err := e.Payload.Pattern()
		if err != nil {
			continue
		}
		if p.ID == patternID {
			return e
		}
	}
	return nil
}

var peerIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidPeerID reports whether id can name a peer. Peer ids appear in entry
// ids and exchange keys, so they are limited to a key-safe alphabet.
func ValidPeerID(id string) bool {
	return len(id) <= 128 && peerIDPattern.MatchString(id)
}
