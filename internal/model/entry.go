package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// PayloadType tags the kind of record a log entry carries.
type PayloadType string

const (
	// PayloadPattern is the only tag that carries shareable knowledge.
	PayloadPattern PayloadType = "pattern"
	PayloadNote    PayloadType = "note"
)

// IsValid reports whether the type is non-empty. Payload types are open;
// only PayloadPattern is interpreted by the store.
func (t PayloadType) IsValid() bool {
	return t != ""
}

// Payload is the opaque, tagged body of a LogEntry. Body holds raw JSON so
// that the checksum is computed over the bytes the origin produced.
type Payload struct {
	Type PayloadType     `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// NewPatternPayload wraps p as a pattern-tagged payload.
func NewPatternPayload(p Pattern) (Payload, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal pattern %s: %w", p.ID, err)
	}
	return Payload{Type: PayloadPattern, Body: body}, nil
}

// IsPattern reports whether the payload is pattern-tagged.
func (p Payload) IsPattern() bool {
	return p.Type == PayloadPattern
}

// Pattern decodes the payload body as a Pattern.
func (p Payload) Pattern() (Pattern, error) {
	if !p.IsPattern() {
		return Pattern{}, fmt.Errorf("payload type %q is not %q", p.Type, PayloadPattern)
	}
	var pat Pattern
	if err := json.Unmarshal(p.Body, &pat); err != nil {
		return Pattern{}, fmt.Errorf("decode pattern payload: %w", err)
	}
	return pat, nil
}

// Digest returns the base-36 xxhash64 of the payload's canonical JSON form.
// It returns "" when the payload cannot be encoded, which never matches a
// stored checksum.
//
// json.Marshal compacts RawMessage bodies, so a payload that round-trips
// through JSON or msgpack keeps the same digest.
func Digest(p Payload) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 36)
}

// LogEntry is one immutable unit of a peer's causal log.
type LogEntry struct {
	ID        string      `json:"id"`
	Origin    string      `json:"origin"`
	WallClock int64       `json:"wall_clock"` // unix millis; tie-break and display only
	Clock     VectorClock `json:"clock"`
	Payload   Payload     `json:"payload"`
	Checksum  string      `json:"checksum"`
}

// Less orders entries by (WallClock, Origin, origin counter, ID). The origin's
// own clock component rises by one per append, so entries a peer appended in
// the same millisecond keep their call order on every peer.
func (e *LogEntry) Less(other *LogEntry) bool {
	if e.WallClock != other.WallClock {
		return e.WallClock < other.WallClock
	}
	if e.Origin != other.Origin {
		return e.Origin < other.Origin
	}
	if a, b := e.Clock.Get(e.Origin), other.Clock.Get(other.Origin); a != b {
		return a < b
	}
	return e.ID < other.ID
}
