package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// connect dials url with unlimited reconnects. Callers' options are applied
// after the defaults and so can override them.
func connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events to NATS subjects named after
// their topic. Its connection is also used by the JetStream KV exchange, so
// it reconnects indefinitely.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, "clawnet-publisher", opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Conn returns the underlying connection.
func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	var err error
	if p.conn.IsConnected() {
		err = p.conn.FlushTimeout(2 * time.Second)
	}
	p.conn.Close()
	return err
}

// NATSSubscriber receives events from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to NATS. Extra options such as disconnect and
// reconnect handlers are appended to the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "clawnet-subscriber", opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// delivery fans one NATS subscription into a buffered channel. Messages
// that arrive while the buffer is full are dropped so the NATS client never
// blocks on a slow reader.
type delivery struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
	sub    *nats.Subscription
	once   sync.Once
}

func (d *delivery) handle(msg *nats.Msg) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- msg.Data:
	default:
	}
}

func (d *delivery) cancel() {
	d.once.Do(func() {
		if d.sub != nil {
			_ = d.sub.Unsubscribe()
		}
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()
	})
}

// Subscribe returns a channel of raw event payloads for topic, which may use
// NATS wildcards such as "clawnet.>". The returned cancel function
// unsubscribes and closes the channel.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	d := &delivery{ch: make(chan []byte, 64)}
	sub, err := s.conn.Subscribe(topic, d.handle)
	if err != nil {
		d.cancel()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	d.sub = sub
	// The subscription must reach the server before events published on
	// other connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		d.cancel()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return d.ch, d.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
