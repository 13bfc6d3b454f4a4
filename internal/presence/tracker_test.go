package presence

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

func pats(ids ...string) []model.Pattern {
	out := make([]model.Pattern, len(ids))
	for i, id := range ids {
		out[i] = model.Pattern{ID: id, Contexts: []string{"design"}}
	}
	return out
}

func TestRecord_BasicTracking(t *testing.T) {
	tr := New()

	tr.Record("alice", pats("p1", "p2"))

	roster := tr.Roster(0)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}

	e := roster[0]
	if e.Peer != "alice" {
		t.Errorf("expected peer alice, got %s", e.Peer)
	}
	if e.PatternCount != 2 {
		t.Errorf("expected pattern_count 2, got %d", e.PatternCount)
	}
	if e.MessageCount != 1 {
		t.Errorf("expected message_count 1, got %d", e.MessageCount)
	}
	if e.FirstSeen.IsZero() || e.LastSeen.Before(e.FirstSeen) {
		t.Errorf("bad first/last seen: %v / %v", e.FirstSeen, e.LastSeen)
	}
}

func TestRecord_AccumulatesPatterns(t *testing.T) {
	tr := New()

	tr.Record("bob", pats("p1"))
	tr.Record("bob", pats("p1", "p2"))
	tr.Record("bob", nil)

	rec, ok := tr.Get("bob")
	if !ok {
		t.Fatal("bob not tracked")
	}
	if rec.MessageCount != 3 {
		t.Errorf("expected 3 messages, got %d", rec.MessageCount)
	}
	if rec.PatternCount != 3 {
		t.Errorf("expected 3 patterns (repeats kept), got %d", rec.PatternCount)
	}
	if got := tr.Patterns("bob"); len(got) != 3 || got[1].ID != "p1" {
		t.Errorf("Patterns(bob) = %v", got)
	}
}

func TestRecord_IgnoresEmptyPeer(t *testing.T) {
	tr := New()

	tr.Record("", pats("p1"))

	if tr.Len() != 0 {
		t.Fatalf("expected 0 entries for empty peer, got %d", tr.Len())
	}
}

func TestPatterns_UnknownPeer(t *testing.T) {
	tr := New()
	got := tr.Patterns("nobody")
	if got == nil || len(got) != 0 {
		t.Errorf("Patterns(nobody) = %#v, want empty slice", got)
	}
}

func TestPatterns_SnapshotIsIndependent(t *testing.T) {
	tr := New()
	tr.Record("alice", pats("p1"))
	got := tr.Patterns("alice")
	got[0].ID = "mutated"
	if again := tr.Patterns("alice"); again[0].ID != "p1" {
		t.Errorf("tracker state mutated through snapshot: %v", again)
	}
}

func TestRoster_StaleThreshold(t *testing.T) {
	tr := New()

	tr.Record("old-peer", nil)
	tr.Record("new-peer", nil)

	tr.mu.Lock()
	tr.peers["old-peer"].lastSeen = time.Now().Add(-20 * time.Minute)
	tr.mu.Unlock()

	roster := tr.Roster(10 * time.Minute)
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry with threshold, got %d", len(roster))
	}
	if roster[0].Peer != "new-peer" {
		t.Errorf("expected new-peer, got %s", roster[0].Peer)
	}

	all := tr.Roster(0)
	if len(all) != 2 {
		t.Fatalf("expected 2 entries without threshold, got %d", len(all))
	}
}

func TestRoster_SortedByMostRecent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := NewWithClock(func() time.Time { return now })

	tr.Record("first", nil)
	now = now.Add(time.Second)
	tr.Record("second", nil)
	now = now.Add(time.Second)
	tr.Record("third", nil)
	tr.Record("also-third", nil)

	roster := tr.Roster(0)
	if len(roster) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(roster))
	}
	if roster[0].Peer != "also-third" || roster[1].Peer != "third" {
		t.Errorf("expected also-third, third first, got %s, %s", roster[0].Peer, roster[1].Peer)
	}
	if roster[3].Peer != "first" {
		t.Errorf("expected first last, got %s", roster[3].Peer)
	}
}

func TestSweep_MarksIdlePeers(t *testing.T) {
	tr := New()

	tr.Record("quiet", nil)

	tr.mu.Lock()
	tr.peers["quiet"].lastSeen = time.Now().Add(-25 * time.Hour)
	tr.mu.Unlock()

	var idle []string
	cfg := &ReaperConfig{
		IdleThreshold: 24 * time.Hour,
		EvictAfter:    7 * 24 * time.Hour,
		OnIdle: func(peer string) {
			idle = append(idle, peer)
		},
	}

	tr.sweep(cfg)

	if len(idle) != 1 || idle[0] != "quiet" {
		t.Errorf("expected quiet to be reaped, got %v", idle)
	}
	rec, _ := tr.Get("quiet")
	if !rec.Reaped {
		t.Error("expected quiet to have reaped=true")
	}
}

func TestSweep_PeerActiveAgain(t *testing.T) {
	tr := New()

	tr.Record("zombie", pats("p1"))
	tr.mu.Lock()
	tr.peers["zombie"].lastSeen = time.Now().Add(-25 * time.Hour)
	tr.mu.Unlock()

	tr.sweep(&ReaperConfig{IdleThreshold: 24 * time.Hour, EvictAfter: time.Hour})

	tr.Record("zombie", pats("p2"))

	rec, ok := tr.Get("zombie")
	if !ok {
		t.Fatal("zombie not found")
	}
	if rec.Reaped {
		t.Error("expected zombie to be active again (reaped=false)")
	}
	if rec.MessageCount != 2 || rec.PatternCount != 2 {
		t.Errorf("expected 2 messages and 2 patterns, got %d / %d", rec.MessageCount, rec.PatternCount)
	}
}

func TestSweep_EvictsLongIdlePeers(t *testing.T) {
	tr := New()

	tr.Record("gone", nil)
	tr.mu.Lock()
	state := tr.peers["gone"]
	state.lastSeen = time.Now().Add(-10 * 24 * time.Hour)
	state.reaped = true
	state.reapedAt = time.Now().Add(-8 * 24 * time.Hour)
	tr.mu.Unlock()

	tr.sweep(&ReaperConfig{IdleThreshold: 24 * time.Hour, EvictAfter: 7 * 24 * time.Hour})

	if _, ok := tr.Get("gone"); ok {
		t.Error("expected gone to be evicted")
	}
}

func TestStartReaper_StopsCleanly(t *testing.T) {
	tr := New()

	tr.StartReaper(&ReaperConfig{
		SweepInterval: 50 * time.Millisecond,
	})

	time.Sleep(150 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		tr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return within 2 seconds")
	}
}
