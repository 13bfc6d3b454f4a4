package logstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/store"
)

// State returns a snapshot of the whole store in its persisted layout.
func (s *Store) State() *store.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &store.State{
		Log:         make([]model.LogEntry, len(s.log)),
		VectorClock: s.clock.Copy(),
		Patterns:    make(map[string]model.PatternRecord, len(s.patterns)),
		Metadata:    s.meta,
	}
	copy(st.Log, s.log)
	for id, rec := range s.patterns {
		st.Patterns[id] = rec
	}
	return st
}

// Save persists the store. It is a no-op without a Persister.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.State()); err != nil {
		return &model.IOError{Op: "save state", Key: s.peerID, Err: err}
	}
	return nil
}

// Load replaces in-memory state with the persisted state. On any failure the
// prior in-memory state is kept and the error is returned; store.ErrNotFound
// means nothing has been saved yet.
//
// The pattern index is rebuilt from the log rather than trusted from disk.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return store.ErrNotFound
	}
	st, err := s.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return &model.IOError{Op: "load state", Key: s.peerID, Err: err}
	}
	if st.Metadata.PeerID != "" && st.Metadata.PeerID != s.peerID {
		return fmt.Errorf("load state: saved for peer %q, not %q", st.Metadata.PeerID, s.peerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, e := range st.Log {
		if _, dup := s.ids[e.ID]; dup {
			continue
		}
		s.insert(e)
	}
	for peer, n := range st.VectorClock {
		s.clock.Observe(peer, n)
	}
	if st.Metadata.CreatedAt != 0 {
		s.meta = st.Metadata
		s.meta.PeerID = s.peerID
	}
	return nil
}
