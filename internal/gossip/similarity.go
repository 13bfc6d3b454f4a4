package gossip

import (
	"sort"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Default relevance policy.
const (
	DefaultThreshold = 0.85
	DefaultFloor     = 0.1
)

// Similarity is the Jaccard index of two tag sets: |A ∩ B| / |A ∪ B|.
// Repeated tags count once. It is 0 when either side is empty.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	union := len(setA)
	inter := 0
	seenB := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seenB[t]; dup {
			continue
		}
		seenB[t] = struct{}{}
		if _, ok := setA[t]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// InterestTags returns the tags whose weight is strictly above floor, sorted.
func InterestTags(iv model.InterestVector, floor float64) []string {
	tags := make([]string, 0, len(iv))
	for tag, w := range iv {
		if w > floor {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Filter decides whether an inbound pattern is relevant to the local peer.
// A pattern is relevant when any of its contexts is in AlwaysRelevant, or when
// its similarity to the interest tags is at least Threshold.
type Filter struct {
	Threshold      float64  `json:"threshold"`
	Floor          float64  `json:"floor"`
	AlwaysRelevant []string `json:"always_relevant,omitempty"`
}

// DefaultFilter returns the production policy: threshold 0.85, floor 0.1.
func DefaultFilter() Filter {
	return Filter{Threshold: DefaultThreshold, Floor: DefaultFloor}
}

// Relevant reports whether p passes the filter for the given interests.
func (f Filter) Relevant(p model.Pattern, interests model.InterestVector) bool {
	for _, c := range p.Contexts {
		for _, a := range f.AlwaysRelevant {
			if c == a {
				return true
			}
		}
	}
	return Similarity(p.Contexts, InterestTags(interests, f.Floor)) >= f.Threshold
}

// Apply returns the relevant patterns, preserving order.
func (f Filter) Apply(patterns []model.Pattern, interests model.InterestVector) []model.Pattern {
	out := []model.Pattern{}
	for _, p := range patterns {
		if f.Relevant(p, interests) {
			out = append(out, p)
		}
	}
	return out
}
