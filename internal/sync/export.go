package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// LogSource is the read surface ExportJSONL needs from a Log Store.
type LogSource interface {
	PeerID() string
	FullLog() []model.LogEntry
	Clock() model.VectorClock
	AllPatterns() []model.PatternRecord
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string            `json:"version"`
	Type         string            `json:"type"`
	Timestamp    time.Time         `json:"timestamp"`
	Peer         string            `json:"peer"`
	EntryCount   int               `json:"entry_count"`
	PatternCount int               `json:"pattern_count"`
	Clock        model.VectorClock `json:"vector_clock"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes the log and pattern index as JSONL to w: a header, every
// entry in log order, then every pattern record oldest first.
func ExportJSONL(ctx context.Context, src LogSource, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := src.FullLog()
	patterns := src.AllPatterns()

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		Peer:         src.PeerID(),
		EntryCount:   len(log),
		PatternCount: len(patterns),
		Clock:        src.Clock(),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, e := range log {
		if err := enc.Encode(record{Type: "entry", Data: e}); err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
	}

	for _, p := range patterns {
		if err := enc.Encode(record{Type: "pattern", Data: p}); err != nil {
			return fmt.Errorf("encode pattern %s: %w", p.LogEntryID, err)
		}
	}

	return nil
}
