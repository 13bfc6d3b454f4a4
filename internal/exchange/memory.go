package exchange

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Memory is an in-process Exchange shared by simulated peers. Messages are
// stored encoded so readers never alias a writer's structs.
type Memory struct {
	mu    sync.RWMutex
	codec Codec
	now   func() time.Time
	items map[string]memItem
}

type memItem struct {
	data    []byte
	modTime time.Time
}

// MemoryOption configures a Memory exchange.
type MemoryOption func(*Memory)

// WithClock sets the time source used for modification times.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty in-memory exchange.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		codec: JSONCodec{},
		now:   time.Now,
		items: make(map[string]memItem),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Exchange = (*Memory)(nil)

func (m *Memory) Write(_ context.Context, key string, msg *model.GossipMessage) error {
	if err := checkKey("write", key); err != nil {
		return err
	}
	data, err := m.codec.Marshal(msg)
	if err != nil {
		return &model.IOError{Op: "encode", Key: key, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{data: data, modTime: m.now()}
	return nil
}

func (m *Memory) ListKeys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Read(_ context.Context, key string) (*model.GossipMessage, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var msg model.GossipMessage
	if err := m.codec.Unmarshal(item.data, &msg); err != nil {
		return nil, &model.IOError{Op: "decode", Key: key, Err: err}
	}
	return &msg, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) ModifiedTime(_ context.Context, key string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[key]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return item.modTime, nil
}

// PutRaw stores undecodable bytes under key, for exercising read failures.
func (m *Memory) PutRaw(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memItem{data: data, modTime: m.now()}
}
