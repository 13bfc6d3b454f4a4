package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// NATSKV is an Exchange backed by a JetStream key-value bucket. The bucket
// TTL ages messages out on the server as well as through ExpireStale.
type NATSKV struct {
	kv    jetstream.KeyValue
	codec Codec
}

var _ Exchange = (*NATSKV)(nil)

// NATSKVConfig describes the bucket.
type NATSKVConfig struct {
	Bucket string
	// TTL is the server-side max age; zero keeps values until deleted.
	TTL   time.Duration
	Codec Codec
}

// NewNATSKV creates or updates the bucket on nc's JetStream and returns an
// exchange over it. A nil codec means MsgpackCodec.
func NewNATSKV(ctx context.Context, nc *nats.Conn, cfg NATSKVConfig) (*NATSKV, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "clawnet gossip messages",
		TTL:         cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket %s: %w", cfg.Bucket, err)
	}
	codec := cfg.Codec
	if codec == nil {
		codec = MsgpackCodec{}
	}
	return &NATSKV{kv: kv, codec: codec}, nil
}

func isKeyMissing(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

func (e *NATSKV) Write(ctx context.Context, key string, msg *model.GossipMessage) error {
	if err := checkKey("write", key); err != nil {
		return err
	}
	data, err := e.codec.Marshal(msg)
	if err != nil {
		return &model.IOError{Op: "encode", Key: key, Err: err}
	}
	if _, err := e.kv.Put(ctx, key, data); err != nil {
		return &model.IOError{Op: "kv put", Key: key, Err: err}
	}
	return nil
}

func (e *NATSKV) ListKeys(ctx context.Context) ([]string, error) {
	lister, err := e.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, &model.IOError{Op: "kv list keys", Err: err}
	}
	defer lister.Stop()

	keys := []string{}
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (e *NATSKV) Read(ctx context.Context, key string) (*model.GossipMessage, error) {
	if err := checkKey("read", key); err != nil {
		return nil, err
	}
	entry, err := e.kv.Get(ctx, key)
	if err != nil {
		if isKeyMissing(err) {
			return nil, ErrNotFound
		}
		return nil, &model.IOError{Op: "kv get", Key: key, Err: err}
	}
	var msg model.GossipMessage
	if err := e.codec.Unmarshal(entry.Value(), &msg); err != nil {
		return nil, &model.IOError{Op: "decode", Key: key, Err: err}
	}
	return &msg, nil
}

func (e *NATSKV) Delete(ctx context.Context, key string) error {
	if err := checkKey("delete", key); err != nil {
		return err
	}
	if err := e.kv.Delete(ctx, key); err != nil && !isKeyMissing(err) {
		return &model.IOError{Op: "kv delete", Key: key, Err: err}
	}
	return nil
}

func (e *NATSKV) ModifiedTime(ctx context.Context, key string) (time.Time, error) {
	if err := checkKey("stat", key); err != nil {
		return time.Time{}, err
	}
	entry, err := e.kv.Get(ctx, key)
	if err != nil {
		if isKeyMissing(err) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, &model.IOError{Op: "kv get", Key: key, Err: err}
	}
	return entry.Created(), nil
}
