package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alfredjeanlab/clawnet/internal/exchange"
)

const ndjsonContentType = "application/x-ndjson"

// S3Config describes where log backups are uploaded.
type S3Config struct {
	Bucket   string
	Key      string // e.g. "backups/alice.jsonl"
	Region   string
	Endpoint string
	// History also keeps a timestamped copy of every backup next to Key.
	History bool
}

// S3Destination writes JSONL log backups to an S3-compatible bucket.
type S3Destination struct {
	client  *s3.Client
	bucket  string
	key     string
	history bool
	now     func() time.Time
}

// NewS3Destination creates an S3 destination.
func NewS3Destination(ctx context.Context, cfg S3Config) (*S3Destination, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("s3 backup: bucket and key are required")
	}
	client, err := exchange.NewS3Client(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return &S3Destination{
		client:  client,
		bucket:  cfg.Bucket,
		key:     strings.TrimLeft(cfg.Key, "/"),
		history: cfg.History,
		now:     time.Now,
	}, nil
}

// historyKey places snapshots under the key's stem, e.g.
// "backups/alice.jsonl" -> "backups/alice/20261019T101500Z.jsonl".
func historyKey(key string, at time.Time) string {
	stem := strings.TrimSuffix(key, ".jsonl")
	return stem + "/" + at.UTC().Format("20060102T150405Z") + ".jsonl"
}

// Write uploads data to the configured key, plus a snapshot when history is on.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	keys := []string{d.key}
	if d.history {
		keys = append(keys, historyKey(d.key, d.now()))
	}
	for _, key := range keys {
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(d.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(ndjsonContentType),
		})
		if err != nil {
			return fmt.Errorf("s3 put object %s: %w", key, err)
		}
	}
	return nil
}
