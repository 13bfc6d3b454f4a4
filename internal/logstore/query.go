package logstore

import (
	"sort"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// sortedPatterns returns the pattern index ordered by AddedAt. Records with
// the same AddedAt keep their log order. Callers hold s.mu.
func (s *Store) sortedPatterns() []model.PatternRecord {
	out := make([]model.PatternRecord, 0, len(s.patterns))
	for i := range s.log {
		if rec, ok := s.patterns[s.log[i].ID]; ok {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt < out[j].AddedAt
	})
	return out
}

// AllPatterns returns every indexed pattern, oldest first.
func (s *Store) AllPatterns() []model.PatternRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPatterns()
}

// PatternsBySource returns the patterns whose entries originated at peer.
// An unknown peer yields an empty slice.
func (s *Store) PatternsBySource(peer string) []model.PatternRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.PatternRecord{}
	for _, rec := range s.sortedPatterns() {
		if rec.SourcePeer == peer {
			out = append(out, rec)
		}
	}
	return out
}

// RecentPatterns returns up to n patterns, newest first.
func (s *Store) RecentPatterns(n int) []model.PatternRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedPatterns()
	out := make([]model.PatternRecord, 0, min(n, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out
}

// Pattern returns the record indexed under a log entry id.
func (s *Store) Pattern(entryID string) (model.PatternRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.patterns[entryID]
	return rec, ok
}

// LogSince returns the entries whose WallClock is strictly greater than ts,
// in log order.
func (s *Store) LogSince(ts int64) []model.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.LogEntry{}
	for _, e := range s.log {
		if e.WallClock > ts {
			out = append(out, e)
		}
	}
	return out
}

// FullLog returns a copy of the log in its current order.
func (s *Store) FullLog() []model.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// Len returns the number of log entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}

// HasAdopted reports whether a pattern with id patternID adopted from peer
// is already indexed.
func (s *Store) HasAdopted(patternID, peer string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.patterns {
		if rec.ID == patternID && rec.AdoptedFrom == peer {
			return true
		}
	}
	return false
}

// Has reports whether an entry id is in the log.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Clock returns a copy of the vector clock.
func (s *Store) Clock() model.VectorClock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Copy()
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	sources := []string{}
	for _, rec := range s.patterns {
		if _, ok := seen[rec.SourcePeer]; ok {
			continue
		}
		seen[rec.SourcePeer] = struct{}{}
		sources = append(sources, rec.SourcePeer)
	}
	sort.Strings(sources)

	st := Stats{
		TotalPatterns:   len(s.patterns),
		TotalLogEntries: len(s.log),
		SourcePeers:     sources,
		SourcePeerCount: len(sources),
		Clock:           s.clock.Copy(),
	}
	if n := len(s.log); n > 0 {
		last := s.log[n-1].WallClock
		st.LastUpdate = &last
	}
	return st
}
