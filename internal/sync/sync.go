// Package sync drives a node on a schedule: periodic gossip sync, periodic
// expiry of stale exchange messages, early sync when the exchange signals a
// write, and optional JSONL backups of the log to external destinations.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/node"
)

// Runner is the node surface the scheduler drives.
type Runner interface {
	Sync(ctx context.Context) (node.SyncResult, error)
	Expire(ctx context.Context) (int, error)
}

// Destination is the interface for a backup target (S3, git, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Options configures a Scheduler.
type Options struct {
	// SyncInterval is the gossip sync period. Zero disables periodic sync.
	SyncInterval time.Duration
	// ExpireInterval is the expiry sweep period. Zero disables it.
	ExpireInterval time.Duration
	// Trigger requests an early sync, e.g. from exchange.Watcher.
	Trigger <-chan struct{}

	// Source and Destinations enable log backups after a sync that changed
	// the log.
	Source       LogSource
	Destinations []Destination
}

// Scheduler runs periodic syncs, expiry sweeps and backups for one node.
type Scheduler struct {
	runner Runner
	opts   Options
	logger *slog.Logger

	exported string // logMarker at the last successful backup; empty before the first

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler for r.
func NewScheduler(r Runner, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner: r,
		opts:   opts,
		logger: logger,
	}
}

// Start begins the schedule. It runs an initial sync immediately, then on
// each tick or trigger.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current cycle (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.syncOnce(ctx)

	syncC, stopSync := tick(s.opts.SyncInterval)
	defer stopSync()
	expireC, stopExpire := tick(s.opts.ExpireInterval)
	defer stopExpire()
	trigger := s.opts.Trigger

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncC:
			s.syncOnce(ctx)
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			s.syncOnce(ctx)
		case <-expireC:
			s.expireOnce(ctx)
		}
	}
}

func (s *Scheduler) syncOnce(ctx context.Context) {
	res, err := s.runner.Sync(ctx)
	if err != nil {
		s.logger.Error("sync failed", "err", err)
		return
	}
	if len(res.Received) > 0 {
		s.logger.Info("sync completed",
			"received", len(res.Received), "merged", res.Merged, "adopted", res.Adopted)
	}
	s.backup(ctx)
}

func (s *Scheduler) expireOnce(ctx context.Context) {
	n, err := s.runner.Expire(ctx)
	if err != nil {
		s.logger.Error("expire failed", "removed", n, "err", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired stale messages", "removed", n)
	}
}

// backup exports the log to every destination when it has changed since the
// last successful export.
func (s *Scheduler) backup(ctx context.Context) {
	if s.opts.Source == nil || len(s.opts.Destinations) == 0 {
		return
	}
	marker := logMarker(s.opts.Source.FullLog())
	if marker == s.exported {
		return
	}

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.opts.Source, &buf); err != nil {
		s.logger.Error("backup export failed", "err", err)
		return
	}
	data := buf.Bytes()

	ok := true
	for i, dest := range s.opts.Destinations {
		if err := dest.Write(ctx, data); err != nil {
			ok = false
			s.logger.Error("backup destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
		}
	}
	if !ok {
		s.logger.Warn("backup incomplete, will retry", "destinations", len(s.opts.Destinations), "bytes", len(data))
		return
	}
	s.exported = marker
	s.logger.Info("backup completed", "destinations", len(s.opts.Destinations), "bytes", len(data))
}

// logMarker identifies the log's contents by length and last entry. The log
// only grows between clears, and a cleared log refills with fresh ids.
func logMarker(entries []model.LogEntry) string {
	if len(entries) == 0 {
		return "0"
	}
	return fmt.Sprintf("%d:%s", len(entries), entries[len(entries)-1].ID)
}
