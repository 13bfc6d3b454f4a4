package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/events"
)

const (
	// sseRingBufferSize bounds the events kept for Last-Event-ID replay.
	sseRingBufferSize = 1000

	sseKeepaliveInterval = 15 * time.Second
	sseClientBuffer      = 64
)

type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte // JSON
}

// sseHub fans node events out to SSE clients and remembers the most recent
// ones so a reconnecting client can resume from its Last-Event-ID.
type sseHub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	lastID  uint64

	// ring holds up to cap(ring) events; head is the oldest once full.
	ring []sseEvent
	head int
}

type sseClient struct {
	topics []string // patterns; empty matches every topic
	ch     chan *sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{
		clients: make(map[*sseClient]struct{}),
		ring:    make([]sseEvent, 0, sseRingBufferSize),
	}
}

// broadcast records the event and offers it to every matching client. Slow
// clients miss events rather than block the publisher.
func (h *sseHub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	h.lastID++
	evt := sseEvent{ID: h.lastID, Topic: topic, Data: payload}
	if len(h.ring) < cap(h.ring) {
		h.ring = append(h.ring, evt)
	} else {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % len(h.ring)
	}
	clients := make([]*sseClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if !c.matchesTopic(topic) {
			continue
		}
		select {
		case c.ch <- &evt:
		default:
		}
	}
}

func (h *sseHub) subscribe(topics []string) *sseClient {
	c := &sseClient{topics: topics, ch: make(chan *sseEvent, sseClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns remembered events with ID > lastID, oldest first.
func (h *sseHub) eventsSince(lastID uint64) []*sseEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*sseEvent
	n := len(h.ring)
	for i := 0; i < n; i++ {
		evt := h.ring[(h.head+i)%n]
		if evt.ID > lastID {
			out = append(out, &evt)
		}
	}
	return out
}

func (c *sseClient) matchesTopic(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches dot-separated topics NATS-style: "*" matches one
// segment and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		switch {
		case p == ">":
			return i < len(top)
		case i >= len(top):
			return false
		case p != "*" && p != top[i]:
			return false
		}
	}
	return len(pat) == len(top)
}

// parseTopics splits the ?topics= filter. A bare group name such as
// "gossip" is shorthand for every topic in that group ("clawnet.gossip.>").
func parseTopics(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		t = strings.TrimSpace(t)
		switch {
		case t == "":
			continue
		case !strings.Contains(t, "."):
			t = "clawnet." + t + ".>"
		}
		topics = append(topics, t)
	}
	return topics
}

// handleEventStream handles GET /v1/events/stream (SSE endpoint).
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	client := s.stream.hub.subscribe(parseTopics(r.URL.Query().Get("topics")))
	defer s.stream.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Replay what the client missed while disconnected.
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseUint(lastIDStr, 10, 64); err == nil {
			replayed := s.stream.hub.eventsSince(lastID)
			for _, evt := range replayed {
				if client.matchesTopic(evt.Topic) {
					writeSSEEvent(w, evt)
				}
			}
			flusher.Flush()
		}
	}

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}

// EventStream is an events.Publisher that fans events out to SSE clients
// of GET /v1/events/stream before forwarding them to next.
type EventStream struct {
	hub    *sseHub
	next   events.Publisher
	logger *slog.Logger
}

var _ events.Publisher = (*EventStream)(nil)

// NewEventStream returns a stream forwarding to next. Nil next means none.
func NewEventStream(next events.Publisher, logger *slog.Logger) *EventStream {
	if next == nil {
		next = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStream{hub: newSSEHub(), next: next, logger: logger}
}

// Publish broadcasts event to SSE clients, then forwards it.
func (e *EventStream) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn("failed to marshal event for SSE broadcast", "topic", topic, "err", err)
	} else {
		e.hub.broadcast(topic, payload)
	}
	return e.next.Publish(ctx, topic, event)
}

// Close closes the forwarded publisher.
func (e *EventStream) Close() error {
	return e.next.Close()
}
