// Package scan is the contract for the security scanner that vets patterns
// before they are published or merged. Only Accept results go through;
// Quarantine results are held for manual review and Block results are
// dropped. Scanning policy itself lives outside this module.
package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Decision is a scanner verdict.
type Decision string

const (
	Accept     Decision = "ACCEPT"
	Quarantine Decision = "QUARANTINE"
	Block      Decision = "BLOCK"
)

// Result is what a scanner returns for one pattern. Cleaned is the pattern
// to use when the decision is Accept; scanners may redact fields.
type Result struct {
	Decision Decision      `json:"decision"`
	Cleaned  model.Pattern `json:"cleaned"`
	Reasons  []string      `json:"reasons,omitempty"`
}

// Scanner vets a pattern.
type Scanner interface {
	Scan(ctx context.Context, p model.Pattern) (Result, error)
}

// ScannerFunc adapts a function to Scanner.
type ScannerFunc func(ctx context.Context, p model.Pattern) (Result, error)

func (f ScannerFunc) Scan(ctx context.Context, p model.Pattern) (Result, error) {
	return f(ctx, p)
}

// AcceptAll accepts every pattern unchanged.
var AcceptAll Scanner = ScannerFunc(func(_ context.Context, p model.Pattern) (Result, error) {
	return Result{Decision: Accept, Cleaned: p}, nil
})

// Direction says which way a held pattern was travelling.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Held is a quarantined pattern awaiting review.
type Held struct {
	Pattern   model.Pattern `json:"pattern"`
	Peer      string        `json:"peer"` // publisher for inbound, local peer for outbound
	Direction Direction     `json:"direction"`
	Reasons   []string      `json:"reasons,omitempty"`
	HeldAt    time.Time     `json:"held_at"`
}

// Hold keeps quarantined patterns in memory.
type Hold struct {
	mu   sync.Mutex
	held []Held
	now  func() time.Time
}

// NewHold returns an empty quarantine hold.
func NewHold() *Hold {
	return &Hold{now: time.Now}
}

// Add records a quarantined pattern.
func (h *Hold) Add(p model.Pattern, peer string, dir Direction, reasons []string) Held {
	item := Held{Pattern: p, Peer: peer, Direction: dir, Reasons: reasons, HeldAt: h.now()}
	h.mu.Lock()
	h.held = append(h.held, item)
	h.mu.Unlock()
	return item
}

// List returns held patterns, oldest first.
func (h *Hold) List() []Held {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Held, len(h.held))
	copy(out, h.held)
	sort.SliceStable(out, func(i, j int) bool { return out[i].HeldAt.Before(out[j].HeldAt) })
	return out
}

// Len returns the number of held patterns.
func (h *Hold) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.held)
}
