package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestVectorClock_TickAndObserve(t *testing.T) {
	vc := VectorClock{}
	if got := vc.Tick("a"); got != 1 {
		t.Fatalf("Tick = %d, want 1", got)
	}
	if got := vc.Tick("a"); got != 2 {
		t.Fatalf("Tick = %d, want 2", got)
	}

	if !vc.Observe("b", 5) {
		t.Error("Observe(b, 5) on empty component should advance")
	}
	if vc.Observe("b", 3) {
		t.Error("Observe(b, 3) should not lower component")
	}
	if got := vc.Get("b"); got != 5 {
		t.Errorf("Get(b) = %d, want 5", got)
	}
	if got := vc.Get("missing"); got != 0 {
		t.Errorf("Get(missing) = %d, want 0", got)
	}
}

func TestVectorClock_CopyIsIndependent(t *testing.T) {
	vc := VectorClock{"a": 1}
	cp := vc.Copy()
	cp.Tick("a")
	if vc["a"] != 1 {
		t.Errorf("original mutated through copy: %v", vc)
	}
	var nilClock VectorClock
	if got := nilClock.Copy(); got == nil {
		t.Error("Copy of nil clock should be non-nil")
	}
}

func TestVectorClock_Compare(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b VectorClock
		want Ordering
	}{
		{"Equal", VectorClock{"a": 1}, VectorClock{"a": 1}, Equal},
		{"EmptyEqual", VectorClock{}, VectorClock{}, Equal},
		{"After", VectorClock{"a": 2, "b": 1}, VectorClock{"a": 1}, After},
		{"Before", VectorClock{"a": 1}, VectorClock{"a": 1, "b": 1}, Before},
		{"Concurrent", VectorClock{"a": 2}, VectorClock{"b": 1}, Concurrent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Compare(tc.b); got != tc.want {
				t.Errorf("Compare = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVectorClock_Peers(t *testing.T) {
	vc := VectorClock{"c": 1, "a": 2, "b": 0}
	got := vc.Peers()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Peers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Peers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDigest_StableAcrossRoundTrip(t *testing.T) {
	p, err := NewPatternPayload(Pattern{ID: "p1", Contexts: []string{"planning"}, Confidence: 0.9})
	if err != nil {
		t.Fatalf("NewPatternPayload: %v", err)
	}
	before := Digest(p)
	if before == "" {
		t.Fatal("Digest returned empty string")
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Payload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if after := Digest(back); after != before {
		t.Errorf("digest changed across round trip: %q -> %q", before, after)
	}
}

func TestDigest_DetectsMutation(t *testing.T) {
	p, _ := NewPatternPayload(Pattern{ID: "p1", Description: "shape before building"})
	q, _ := NewPatternPayload(Pattern{ID: "p1", Description: "shape before buildinG"})
	if Digest(p) == Digest(q) {
		t.Error("different payloads produced the same digest")
	}
}

func TestPayload_Pattern(t *testing.T) {
	p, _ := NewPatternPayload(Pattern{ID: "p1", Contexts: []string{"design"}})
	got, err := p.Pattern()
	if err != nil {
		t.Fatalf("Pattern(): %v", err)
	}
	if got.ID != "p1" || len(got.Contexts) != 1 || got.Contexts[0] != "design" {
		t.Errorf("Pattern() = %+v", got)
	}

	note := Payload{Type: PayloadNote, Body: json.RawMessage(`{"text":"hi"}`)}
	if _, err := note.Pattern(); err == nil {
		t.Error("expected error decoding note payload as pattern")
	}
}

func TestLogEntry_Less(t *testing.T) {
	a := &LogEntry{ID: "2", Origin: "a", WallClock: 100}
	b := &LogEntry{ID: "1", Origin: "b", WallClock: 100}
	c := &LogEntry{ID: "0", Origin: "a", WallClock: 99}
	if !a.Less(b) {
		t.Error("same wall clock: origin a should sort before b")
	}
	if !c.Less(a) {
		t.Error("earlier wall clock should sort first")
	}
	d := &LogEntry{ID: "3", Origin: "a", WallClock: 100}
	if !a.Less(d) || d.Less(a) {
		t.Error("equal (wall clock, origin) should fall back to id")
	}
	// Origin counter outranks the id.
	first := &LogEntry{ID: "z", Origin: "a", WallClock: 100, Clock: VectorClock{"a": 1}}
	second := &LogEntry{ID: "b", Origin: "a", WallClock: 100, Clock: VectorClock{"a": 2, "c": 9}}
	if !first.Less(second) || second.Less(first) {
		t.Error("equal (wall clock, origin) should order by origin counter before id")
	}
}

func TestGossipMessage_TTL(t *testing.T) {
	for _, tc := range []struct {
		days int
		want time.Duration
	}{
		{0, 7 * 24 * time.Hour},
		{-1, 7 * 24 * time.Hour},
		{1, 24 * time.Hour},
		{30, 30 * 24 * time.Hour},
	} {
		m := &GossipMessage{TTLDays: tc.days}
		if got := m.TTL(); got != tc.want {
			t.Errorf("TTL(days=%d) = %v, want %v", tc.days, got, tc.want)
		}
	}
}

func TestGossipMessage_EntryFor(t *testing.T) {
	payload, _ := NewPatternPayload(Pattern{ID: "p-2"})
	m := &GossipMessage{Entries: []LogEntry{
		{ID: "note", Payload: Payload{Type: PayloadNote}},
		{ID: "e-2", Payload: payload},
	}}
	if e := m.EntryFor("p-2"); e == nil || e.ID != "e-2" {
		t.Errorf("EntryFor(p-2) = %+v, want e-2", e)
	}
	if e := m.EntryFor("p-404"); e != nil {
		t.Errorf("EntryFor(p-404) = %+v, want nil", e)
	}
}

func TestValidPeerID(t *testing.T) {
	for _, tc := range []struct {
		id   string
		want bool
	}{
		{"jon-claw", true},
		{"peer_1.eu", true},
		{"", false},
		{"-leading", false},
		{"has space", false},
		{"slash/peer", false},
	} {
		if got := ValidPeerID(tc.id); got != tc.want {
			t.Errorf("ValidPeerID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestOrdering_String(t *testing.T) {
	if Concurrent.String() != "concurrent" {
		t.Errorf("Concurrent.String() = %q", Concurrent.String())
	}
	if Ordering(99).String() != "unknown" {
		t.Errorf("Ordering(99).String() = %q", Ordering(99).String())
	}
}
