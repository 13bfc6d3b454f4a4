package model

import "sort"

// Ordering describes how two vector clocks relate.
type Ordering int

const (
	Equal Ordering = iota
	Before
	After
	Concurrent
)

func (o Ordering) String() string {
	switch o {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	}
	return "unknown"
}

// VectorClock maps a peer id to the highest counter known for that peer.
// Components never decrease.
type VectorClock map[string]uint64

// Copy returns an independent snapshot of vc. A nil clock copies to an empty one.
func (vc VectorClock) Copy() VectorClock {
	out := make(VectorClock, len(vc))
	for peer, n := range vc {
		out[peer] = n
	}
	return out
}

// Get returns the counter for peer, or 0 if unknown.
func (vc VectorClock) Get(peer string) uint64 {
	return vc[peer]
}

// Tick advances peer's own component by exactly one and returns the new value.
func (vc VectorClock) Tick(peer string) uint64 {
	vc[peer]++
	return vc[peer]
}

// Observe raises peer's component to n if n is larger. It reports whether the
// component advanced.
func (vc VectorClock) Observe(peer string, n uint64) bool {
	if cur, ok := vc[peer]; ok && cur >= n {
		return false
	}
	vc[peer] = n
	return true
}

// Descends reports whether vc has seen everything other has.
func (vc VectorClock) Descends(other VectorClock) bool {
	for peer, n := range other {
		if vc[peer] < n {
			return false
		}
	}
	return true
}

// Compare returns how vc relates to other. Concurrent means neither clock
// descends from the other.
func (vc VectorClock) Compare(other VectorClock) Ordering {
	aDesc := vc.Descends(other)
	bDesc := other.Descends(vc)
	switch {
	case aDesc && bDesc:
		return Equal
	case aDesc:
		return After
	case bDesc:
		return Before
	}
	return Concurrent
}

// Peers returns the peer ids present in the clock, sorted.
func (vc VectorClock) Peers() []string {
	peers := make([]string, 0, len(vc))
	for p := range vc {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}
