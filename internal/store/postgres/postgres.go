// Package postgres implements store.Persister backed by PostgreSQL. Each peer
// owns one row holding its serialized state.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/clawnet/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Persister for a single peer.
type PostgresStore struct {
	db     *sql.DB
	peerID string
}

// Compile-time check that PostgresStore implements store.Persister.
var _ store.Persister = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL, peerID string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newWithDB(db, peerID), nil
}

func newWithDB(db *sql.DB, peerID string) *PostgresStore {
	return &PostgresStore{db: db, peerID: peerID}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context) (*store.State, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM peer_state WHERE peer_id = $1`, s.peerID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select state for %s: %w", s.peerID, err)
	}

	var st store.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state for %s: %w", s.peerID, err)
	}
	return &st, nil
}

func (s *PostgresStore) Save(ctx context.Context, st *store.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO peer_state (peer_id, state, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (peer_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		s.peerID, raw,
	)
	if err != nil {
		return fmt.Errorf("upsert state for %s: %w", s.peerID, err)
	}
	return nil
}
