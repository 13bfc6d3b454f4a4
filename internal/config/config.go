// Package config loads a peer's settings from CLAWNET_* environment
// variables and its interest profile from a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Storage backends for the peer's Log Store state.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Exchange kinds.
const (
	ExchangeDir  = "dir"
	ExchangeS3   = "s3"
	ExchangeNATS = "nats"
)

type Config struct {
	PeerID    string // CLAWNET_PEER_ID (required)
	HTTPAddr  string // CLAWNET_HTTP_ADDR (default ":8080")
	AuthToken string // CLAWNET_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL   string // CLAWNET_NATS_URL (optional, empty = no events)

	// State persistence
	StateBackend string // CLAWNET_STATE_BACKEND (default "file")
	StatePath    string // CLAWNET_STATE_PATH (default "./data/<peer>-state.json")
	DatabaseURL  string // CLAWNET_DATABASE_URL (required for postgres)
	BadgerPath   string // CLAWNET_BADGER_PATH (default "./data/<peer>-badger")

	// Exchange
	Exchange      string // CLAWNET_EXCHANGE (default "dir")
	ExchangeDir   string // CLAWNET_EXCHANGE_DIR (default "./data/gossip-bus")
	ExchangeCodec string // CLAWNET_EXCHANGE_CODEC ("json" or "msgpack"; default msgpack for nats, json otherwise)
	S3Bucket      string // CLAWNET_EXCHANGE_S3_BUCKET (required for s3)
	S3Prefix      string // CLAWNET_EXCHANGE_S3_PREFIX (default "gossip/")
	S3Region      string // CLAWNET_EXCHANGE_S3_REGION (default "us-east-1")
	S3Endpoint    string // CLAWNET_EXCHANGE_S3_ENDPOINT (custom endpoint for MinIO)
	NATSBucket    string // CLAWNET_EXCHANGE_NATS_BUCKET (default "clawnet-gossip")

	// Scheduling and policy
	SyncInterval        time.Duration // CLAWNET_SYNC_INTERVAL (default 1m; 0 = disabled)
	ExpireInterval      time.Duration // CLAWNET_EXPIRE_INTERVAL (default 1h; 0 = disabled)
	TTLDays             int           // CLAWNET_TTL_DAYS (default 7)
	SimilarityThreshold float64       // CLAWNET_SIMILARITY_THRESHOLD (default 0.85)
	InterestFloor       float64       // CLAWNET_INTEREST_FLOOR (default 0.1)
	ProfilePath         string        // CLAWNET_PROFILE (optional TOML profile)

	// Log backups
	BackupS3Bucket  string // CLAWNET_BACKUP_S3_BUCKET (enables S3 backups when set)
	BackupS3Key     string // CLAWNET_BACKUP_S3_KEY (default "clawnet/<peer>.jsonl")
	BackupS3History bool   // CLAWNET_BACKUP_S3_HISTORY (keep timestamped copies)
	BackupGitRepo   string // CLAWNET_BACKUP_GIT_REPO (enables git backups when set; path to clone)
	BackupGitFile   string // CLAWNET_BACKUP_GIT_FILE (default "<peer>.jsonl")
	BackupGitBranch string // CLAWNET_BACKUP_GIT_BRANCH (default "main")
	BackupGitPush   bool   // CLAWNET_BACKUP_GIT_PUSH (default true)
}

func Load() (*Config, error) {
	peer := os.Getenv("CLAWNET_PEER_ID")
	if peer == "" {
		return nil, fmt.Errorf("CLAWNET_PEER_ID is required")
	}
	if !model.ValidPeerID(peer) {
		return nil, fmt.Errorf("CLAWNET_PEER_ID: invalid peer id %q", peer)
	}

	c := &Config{
		PeerID:    peer,
		HTTPAddr:  envOrDefault("CLAWNET_HTTP_ADDR", ":8080"),
		AuthToken: os.Getenv("CLAWNET_AUTH_TOKEN"),
		NATSURL:   os.Getenv("CLAWNET_NATS_URL"),

		StateBackend: envOrDefault("CLAWNET_STATE_BACKEND", BackendFile),
		StatePath:    envOrDefault("CLAWNET_STATE_PATH", filepath.Join("data", peer+"-state.json")),
		DatabaseURL:  os.Getenv("CLAWNET_DATABASE_URL"),
		BadgerPath:   envOrDefault("CLAWNET_BADGER_PATH", filepath.Join("data", peer+"-badger")),

		Exchange:      envOrDefault("CLAWNET_EXCHANGE", ExchangeDir),
		ExchangeDir:   envOrDefault("CLAWNET_EXCHANGE_DIR", filepath.Join("data", "gossip-bus")),
		ExchangeCodec: os.Getenv("CLAWNET_EXCHANGE_CODEC"),
		S3Bucket:      os.Getenv("CLAWNET_EXCHANGE_S3_BUCKET"),
		S3Prefix:      envOrDefault("CLAWNET_EXCHANGE_S3_PREFIX", "gossip/"),
		S3Region:      envOrDefault("CLAWNET_EXCHANGE_S3_REGION", "us-east-1"),
		S3Endpoint:    os.Getenv("CLAWNET_EXCHANGE_S3_ENDPOINT"),
		NATSBucket:    envOrDefault("CLAWNET_EXCHANGE_NATS_BUCKET", "clawnet-gossip"),

		ProfilePath: os.Getenv("CLAWNET_PROFILE"),

		BackupS3Bucket:  os.Getenv("CLAWNET_BACKUP_S3_BUCKET"),
		BackupS3Key:     envOrDefault("CLAWNET_BACKUP_S3_KEY", "clawnet/"+peer+".jsonl"),
		BackupGitRepo:   os.Getenv("CLAWNET_BACKUP_GIT_REPO"),
		BackupGitFile:   envOrDefault("CLAWNET_BACKUP_GIT_FILE", peer+".jsonl"),
		BackupGitBranch: envOrDefault("CLAWNET_BACKUP_GIT_BRANCH", "main"),
	}

	var err error
	if c.SyncInterval, err = durationEnv("CLAWNET_SYNC_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	if c.ExpireInterval, err = durationEnv("CLAWNET_EXPIRE_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if c.TTLDays, err = intEnv("CLAWNET_TTL_DAYS", model.DefaultTTLDays); err != nil {
		return nil, err
	}
	if c.SimilarityThreshold, err = unitEnv("CLAWNET_SIMILARITY_THRESHOLD", 0.85); err != nil {
		return nil, err
	}
	if c.InterestFloor, err = unitEnv("CLAWNET_INTEREST_FLOOR", 0.1); err != nil {
		return nil, err
	}
	if c.BackupS3History, err = boolEnv("CLAWNET_BACKUP_S3_HISTORY", false); err != nil {
		return nil, err
	}
	if c.BackupGitPush, err = boolEnv("CLAWNET_BACKUP_GIT_PUSH", true); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.StateBackend {
	case BackendFile, BackendBadger:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("CLAWNET_DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("CLAWNET_STATE_BACKEND: unknown backend %q", c.StateBackend)
	}

	switch c.Exchange {
	case ExchangeDir:
	case ExchangeS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("CLAWNET_EXCHANGE_S3_BUCKET is required for the s3 exchange")
		}
	case ExchangeNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("CLAWNET_NATS_URL is required for the nats exchange")
		}
	default:
		return fmt.Errorf("CLAWNET_EXCHANGE: unknown exchange %q", c.Exchange)
	}

	switch c.ExchangeCodec {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("CLAWNET_EXCHANGE_CODEC: unknown codec %q", c.ExchangeCodec)
	}
	if c.TTLDays <= 0 {
		return fmt.Errorf("CLAWNET_TTL_DAYS must be positive, got %d", c.TTLDays)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// unitEnv parses a float in [0, 1].
func unitEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("%s must be between 0 and 1, got %g", key, f)
	}
	return f, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
