// Package client provides the interface the clawnet CLI uses to talk to a
// running peer, and an HTTP/JSON implementation of it.
package client

import (
	"context"
	"io"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/logstore"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/node"
	"github.com/alfredjeanlab/clawnet/internal/presence"
	"github.com/alfredjeanlab/clawnet/internal/scan"
)

// Client is implemented by HTTPClient.
type Client interface {
	Health(ctx context.Context) (string, error)
	Stats(ctx context.Context) (*node.Stats, error)

	// Log Store
	ListPatterns(ctx context.Context, req *ListPatternsRequest) ([]model.PatternRecord, error)
	GetPattern(ctx context.Context, entryID string) (*model.PatternRecord, error)
	LogSince(ctx context.Context, since int64) (*LogResponse, error)
	Export(ctx context.Context, w io.Writer) error
	Append(ctx context.Context, payload model.Payload) (*AppendResponse, error)
	Merge(ctx context.Context, remotePeer string, entries []model.LogEntry) (*MergeResponse, error)

	// Gossip
	Share(ctx context.Context, patterns []model.Pattern) (*ShareResponse, error)
	Sync(ctx context.Context) (*node.SyncResult, error)
	Expire(ctx context.Context) (int, error)
	Peers(ctx context.Context, stale time.Duration) ([]presence.PeerRecord, error)
	PeerPatterns(ctx context.Context, peer string) ([]model.Pattern, error)
	Quarantine(ctx context.Context) ([]scan.Held, error)

	Close() error
}

// ListPatternsRequest filters GET /v1/patterns.
type ListPatternsRequest struct {
	Source string
	Limit  int
}

// LogResponse is returned by LogSince.
type LogResponse struct {
	Entries []model.LogEntry  `json:"entries"`
	Clock   model.VectorClock `json:"vector_clock"`
}

// AppendResponse is returned by Append. SaveError is set when the entry was
// appended but could not be persisted.
type AppendResponse struct {
	Entry     model.LogEntry `json:"entry"`
	SaveError string         `json:"save_error,omitempty"`
}

// MergeResponse is returned by Merge.
type MergeResponse struct {
	logstore.MergeResult
	SaveError string `json:"save_error,omitempty"`
}

// ShareResponse is returned by Share.
type ShareResponse struct {
	node.ShareResult
	Error string `json:"error,omitempty"`
}
