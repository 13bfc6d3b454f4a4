// Package store defines how a peer's Log Store state is persisted. The whole
// state is saved and loaded as one unit.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// ErrNotFound is returned by Load when no state has been saved yet.
var ErrNotFound = errors.New("store: state not found")

// StateVersion is written into Metadata.Version.
const StateVersion = "1"

// Metadata describes the peer that owns a State.
type Metadata struct {
	CreatedAt int64  `json:"created_at"` // unix millis
	PeerID    string `json:"peer_id"`
	Version   string `json:"version"`
}

// State is the serialized form of one peer's Log Store.
type State struct {
	Log         []model.LogEntry               `json:"log"`
	VectorClock model.VectorClock              `json:"vector_clock"`
	Patterns    map[string]model.PatternRecord `json:"patterns"`
	Metadata    Metadata                       `json:"metadata"`
}

// Persister saves and loads a peer's State.
type Persister interface {
	// Load returns the last saved state, or ErrNotFound if there is none.
	Load(ctx context.Context) (*State, error)
	// Save replaces the stored state.
	Save(ctx context.Context, state *State) error
	Close() error
}

// Memory is a Persister that keeps the last saved state in memory. It is
// useful for simulations and tests.
type Memory struct {
	state *State
}

var _ Persister = (*Memory)(nil)

func (m *Memory) Load(_ context.Context) (*State, error) {
	if m.state == nil {
		return nil, ErrNotFound
	}
	return m.state, nil
}

func (m *Memory) Save(_ context.Context, state *State) error {
	m.state = state
	return nil
}

func (m *Memory) Close() error { return nil }
