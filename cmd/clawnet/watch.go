package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/clawnet/internal/events"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print log entries as they are appended or merged",
	Long: `Watch prints new log entries. When CLAWNET_NATS_URL is set it re-queries
the peer whenever a clawnet event arrives; otherwise it polls.`,
	GroupID: "gossip",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")
		since, err := sinceMillis(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		w := &logWatcher{since: since, seen: make(map[string]struct{})}
		if err := w.queryAndPrint(ctx); err != nil {
			return err
		}
		if once {
			return nil
		}

		if natsURL := os.Getenv("CLAWNET_NATS_URL"); natsURL != "" {
			return w.watchNATS(ctx, natsURL)
		}
		return w.watchPoll(ctx, interval)
	},
}

// logWatcher remembers which entries have been printed. Merged entries can
// carry wall clocks older than ones already shown, so it dedups by id
// rather than advancing the since cursor.
type logWatcher struct {
	since int64
	seen  map[string]struct{}
}

func (w *logWatcher) queryAndPrint(ctx context.Context) error {
	resp, err := peerClient.LogSince(ctx, w.since)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	for i := range resp.Entries {
		e := &resp.Entries[i]
		if _, ok := w.seen[e.ID]; ok {
			continue
		}
		w.seen[e.ID] = struct{}{}
		printWatchLine(e)
	}
	return nil
}

func printWatchLine(e *model.LogEntry) {
	detail := string(e.Payload.Type)
	if p, err := e.Payload.Pattern(); err == nil {
		detail = p.ID
		if p.Description != "" {
			detail += " " + truncate(p.Description, 60)
		}
		if p.AdoptedFrom != "" {
			detail += ui.RenderMuted(" (adopted from " + p.AdoptedFrom + ")")
		}
	}
	fmt.Fprintf(stdout, "%s %s %s %s\n",
		ui.RenderMuted(formatMillis(e.WallClock)),
		ui.RenderAccent(e.Origin),
		ui.RenderMuted(e.ID),
		detail,
	)
}

// watchNATS re-queries on clawnet events with a short debounce.
func (w *logWatcher) watchNATS(ctx context.Context, natsURL string) error {
	// reconnectCh fires when NATS reconnects so missed events are picked up.
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("clawnet.>")
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	debounce := time.NewTimer(0)
	debounce.Stop()
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			debounce.Reset(200 * time.Millisecond)
		case <-reconnectCh:
			debounce.Reset(0)
		case <-debounce.C:
			if err := w.queryAndPrint(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *logWatcher) watchPoll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := w.queryAndPrint(ctx); err != nil {
			return err
		}
	}
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Second, "poll interval when NATS is not configured")
	watchCmd.Flags().Bool("once", false, "print current entries and exit")
	watchCmd.Flags().Int64("since", 0, "unix millis; only entries with a later wall clock")
	watchCmd.Flags().Duration("last", 0, "only entries from this long ago onward")
}
