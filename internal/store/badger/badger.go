// Package badger implements store.Persister on an embedded BadgerDB. State
// for each peer lives under the key "state/<peer>".
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/alfredjeanlab/clawnet/internal/store"
)

// Config configures the BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore persists one peer's state in a BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	peerID string
}

var _ store.Persister = (*BadgerStore)(nil)

// Open opens (or creates) the database described by cfg for peerID.
func Open(cfg Config, peerID string) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, peerID: peerID}, nil
}

func (s *BadgerStore) key() []byte {
	return []byte("state/" + s.peerID)
}

func (s *BadgerStore) Load(_ context.Context) (*store.State, error) {
	var st store.State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key())
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("load state for %s: %w", s.peerID, err)
	}
	return &st, nil
}

func (s *BadgerStore) Save(_ context.Context, st *store.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(), data)
	}); err != nil {
		return fmt.Errorf("save state for %s: %w", s.peerID, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
