package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/clawnet/internal/config"
	"github.com/alfredjeanlab/clawnet/internal/events"
	"github.com/alfredjeanlab/clawnet/internal/exchange"
	"github.com/alfredjeanlab/clawnet/internal/gossip"
	"github.com/alfredjeanlab/clawnet/internal/logstore"
	"github.com/alfredjeanlab/clawnet/internal/node"
	"github.com/alfredjeanlab/clawnet/internal/presence"
	"github.com/alfredjeanlab/clawnet/internal/server"
	"github.com/alfredjeanlab/clawnet/internal/store"
	"github.com/alfredjeanlab/clawnet/internal/store/badger"
	"github.com/alfredjeanlab/clawnet/internal/store/file"
	"github.com/alfredjeanlab/clawnet/internal/store/postgres"
	logsync "github.com/alfredjeanlab/clawnet/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run a peer: log store, gossip engine and HTTP API",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		profile, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return err
		}
		logger = logger.With("peer", cfg.PeerID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		persister, err := openPersister(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := persister.Close(); err != nil {
				logger.Error("error closing state store", "err", err)
			}
		}()

		var publisher events.Publisher
		var natsPub *events.NATSPublisher
		if cfg.NATSURL != "" {
			natsPub, err = events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = natsPub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (CLAWNET_NATS_URL not set)")
		}
		stream := server.NewEventStream(publisher, logger)
		defer func() {
			if err := stream.Close(); err != nil {
				logger.Error("error closing publisher", "err", err)
			}
		}()

		ex, err := openExchange(ctx, cfg, natsPub, logger)
		if err != nil {
			return err
		}

		tracker := presence.New()
		tracker.StartReaper(nil)
		defer tracker.Stop()

		engine, err := gossip.New(gossip.Config{
			PeerID:    cfg.PeerID,
			Exchange:  ex,
			Publisher: stream,
			Tracker:   tracker,
			Logger:    logger,
			TTLDays:   cfg.TTLDays,
		})
		if err != nil {
			return err
		}

		ls, err := logstore.Open(ctx, logstore.Config{
			PeerID:    cfg.PeerID,
			Persister: persister,
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		n, err := node.New(node.Config{
			Store:     ls,
			Engine:    engine,
			Filter:    cfg.Filter(profile),
			Interests: profile.Interests,
			Publisher: stream,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		defer n.Close()

		// New messages on a local directory exchange trigger an immediate sync.
		var trigger <-chan struct{}
		if w, ok := ex.(exchange.Watcher); ok {
			ch, err := w.Watch(ctx)
			if err != nil {
				logger.Warn("exchange watch unavailable, relying on interval", "err", err)
			} else {
				trigger = ch
			}
		}

		scheduler := logsync.NewScheduler(n, logsync.Options{
			SyncInterval:   cfg.SyncInterval,
			ExpireInterval: cfg.ExpireInterval,
			Trigger:        trigger,
			Source:         ls,
			Destinations:   backupDestinations(ctx, cfg, logger),
		}, logger)
		scheduler.Start()
		logger.Info("scheduler started", "sync_interval", cfg.SyncInterval, "expire_interval", cfg.ExpireInterval)

		srv := server.New(n, stream, logger)
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "auth", cfg.AuthToken != "")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		logger.Info("clawnet peer started",
			"state_backend", cfg.StateBackend,
			"exchange", cfg.Exchange,
			"interests", len(profile.Interests),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		scheduler.Stop()
		logger.Info("scheduler stopped")

		if err := n.Save(shutdownCtx); err != nil {
			logger.Error("final save failed", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func openPersister(cfg *config.Config, logger *slog.Logger) (store.Persister, error) {
	switch cfg.StateBackend {
	case config.BackendPostgres:
		return postgres.New(cfg.DatabaseURL, cfg.PeerID)
	case config.BackendBadger:
		return badger.Open(badger.Config{
			Path:       cfg.BadgerPath,
			SyncWrites: true,
			Logger:     logger,
		}, cfg.PeerID)
	default:
		return file.New(cfg.StatePath)
	}
}

func openExchange(ctx context.Context, cfg *config.Config, natsPub *events.NATSPublisher, logger *slog.Logger) (exchange.Exchange, error) {
	name := cfg.ExchangeCodec
	if name == "" && cfg.Exchange == config.ExchangeNATS {
		name = "msgpack"
	}
	codec, ok := exchange.CodecFor(name)
	if !ok {
		return nil, fmt.Errorf("unknown exchange codec %q", name)
	}
	switch cfg.Exchange {
	case config.ExchangeS3:
		return exchange.NewS3(ctx, exchange.S3Config{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Codec:    codec,
		})
	case config.ExchangeNATS:
		if natsPub == nil {
			return nil, fmt.Errorf("nats exchange requires CLAWNET_NATS_URL")
		}
		return exchange.NewNATSKV(ctx, natsPub.Conn(), exchange.NATSKVConfig{
			Bucket: cfg.NATSBucket,
			TTL:    time.Duration(cfg.TTLDays) * 24 * time.Hour,
			Codec:  codec,
		})
	default:
		return exchange.NewDir(cfg.ExchangeDir, codec, logger)
	}
}

// backupDestinations builds the configured log backup targets. A target that
// cannot be created is logged and skipped.
func backupDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []logsync.Destination {
	var dests []logsync.Destination
	if cfg.BackupS3Bucket != "" {
		d, err := logsync.NewS3Destination(ctx, logsync.S3Config{
			Bucket:   cfg.BackupS3Bucket,
			Key:      cfg.BackupS3Key,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			History:  cfg.BackupS3History,
		})
		if err != nil {
			logger.Error("failed to create S3 backup destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("S3 backup enabled", "bucket", cfg.BackupS3Bucket, "key", cfg.BackupS3Key)
		}
	}
	if cfg.BackupGitRepo != "" {
		dests = append(dests, logsync.NewGitDestination(logsync.GitConfig{
			Repo:   cfg.BackupGitRepo,
			File:   cfg.BackupGitFile,
			Branch: cfg.BackupGitBranch,
			Push:   cfg.BackupGitPush,
		}))
		logger.Info("git backup enabled", "repo", cfg.BackupGitRepo, "file", cfg.BackupGitFile, "push", cfg.BackupGitPush)
	}
	return dests
}
