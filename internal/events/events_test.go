package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/nats-io/nats.go"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicGossipPublished, GossipPublished{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_Close(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Close()
	if err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicGossipPublished, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := GossipPublished{Peer: "jon", MessageID: "jon-1-abc", Count: 2}
	if err := pub.Publish(context.Background(), TopicGossipPublished, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got GossipPublished
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.MessageID != "jon-1-abc" || got.Count != 2 {
			t.Errorf("got %+v, want message jon-1-abc with 2 patterns", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_PublishMultipleTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("clawnet.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	for _, tc := range []struct {
		topic string
		event any
	}{
		{TopicGossipSynced, GossipSynced{Peer: "jon", Received: []string{"dar-1"}}},
		{TopicGossipExpired, GossipExpired{Peer: "jon", Removed: 3}},
		{TopicLogMerged, LogMerged{Peer: "jon", RemotePeer: "dar", Merged: 1, Total: 4}},
		{TopicLogAppended, LogAppended{Entry: &model.LogEntry{ID: "jon-2"}}},
	} {
		if err := pub.Publish(context.Background(), tc.topic, tc.event); err != nil {
			t.Fatalf("Publish(%s): %v", tc.topic, err)
		}
	}
	pub.conn.Flush()

	for i := 0; i < 4; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), TopicGossipPublished, GossipPublished{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	var _ Publisher = r
	ctx := context.Background()
	r.Publish(ctx, TopicGossipPublished, GossipPublished{MessageID: "m1"})
	r.Publish(ctx, TopicGossipSynced, GossipSynced{Received: []string{"m2"}})
	r.Publish(ctx, TopicGossipPublished, GossipPublished{MessageID: "m3"})

	if got := len(r.Events()); got != 3 {
		t.Fatalf("Events() len = %d, want 3", got)
	}
	pubs := r.Topic(TopicGossipPublished)
	if len(pubs) != 2 {
		t.Fatalf("Topic(published) len = %d, want 2", len(pubs))
	}
	if ev := pubs[1].(GossipPublished); ev.MessageID != "m3" {
		t.Errorf("second published event = %+v, want m3", ev)
	}
	if got := r.Topic(TopicGossipExpired); len(got) != 0 {
		t.Errorf("Topic(expired) = %v, want none", got)
	}
}
