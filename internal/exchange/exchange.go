// Package exchange is the shared medium gossip messages are published to and
// read from. Adapters carry no merge logic; they only need at-least-once read
// visibility and a stable key listing.
package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// ErrNotFound is returned when a key is not present on the exchange.
var ErrNotFound = errors.New("exchange: key not found")

// Exchange is the adapter contract the gossip engine consumes.
type Exchange interface {
	// Write stores msg under key. Messages are never rewritten.
	Write(ctx context.Context, key string, msg *model.GossipMessage) error
	// ListKeys returns every present key in lexicographic order.
	ListKeys(ctx context.Context) ([]string, error)
	// Read returns the message stored under key.
	Read(ctx context.Context, key string) (*model.GossipMessage, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// ModifiedTime returns when the medium last wrote key.
	ModifiedTime(ctx context.Context, key string) (time.Time, error)
}

// Watcher is implemented by exchanges that can signal new writes.
type Watcher interface {
	// Watch sends on the returned channel after writes land, until ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// ValidKey reports whether key is usable by every adapter: non-empty, no
// path separators, and not starting with a dot.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, ".") {
		return false
	}
	return !strings.ContainsAny(key, `/\ `)
}

func checkKey(op, key string) error {
	if !ValidKey(key) {
		return &model.IOError{Op: op, Key: key, Err: errors.New("invalid key")}
	}
	return nil
}
