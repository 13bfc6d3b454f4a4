package events

import (
	"context"
	"sync"
)

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Topic string
	Event any
}

// Recorder is a Publisher that keeps every event in memory. It backs the
// CLI's verbose output and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Publish(_ context.Context, topic string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Topic: topic, Event: event})
	return nil
}

func (r *Recorder) Close() error {
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Topic returns the events published on topic, in order.
func (r *Recorder) Topic(topic string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, rec := range r.events {
		if rec.Topic == topic {
			out = append(out, rec.Event)
		}
	}
	return out
}
