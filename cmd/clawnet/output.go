package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/node"
	"github.com/alfredjeanlab/clawnet/internal/presence"
	"github.com/alfredjeanlab/clawnet/internal/scan"
	"github.com/alfredjeanlab/clawnet/internal/ui"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func printPatternTable(records []model.PatternRecord) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tCONF\tCONTEXTS\tADDED\tDESCRIPTION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			r.ID,
			r.SourcePeer,
			r.Confidence,
			strings.Join(r.Contexts, ","),
			formatMillis(r.AddedAt),
			truncate(r.Description, 50),
		)
	}
	w.Flush()
	fmt.Fprintf(stdout, "\n%d patterns\n", len(records))
}

func printPatternRecord(r *model.PatternRecord) {
	fmt.Fprintf(stdout, "ID:          %s\n", r.ID)
	fmt.Fprintf(stdout, "Entry:       %s\n", ui.RenderMuted(r.LogEntryID))
	fmt.Fprintf(stdout, "Source:      %s\n", ui.RenderAccent(r.SourcePeer))
	if r.AdoptedFrom != "" {
		fmt.Fprintf(stdout, "Adopted:     from %s\n", r.AdoptedFrom)
	}
	if r.Approach != "" {
		fmt.Fprintf(stdout, "Approach:    %s\n", r.Approach)
	}
	if r.Description != "" {
		fmt.Fprintf(stdout, "Description: %s\n", r.Description)
	}
	if len(r.Contexts) > 0 {
		fmt.Fprintf(stdout, "Contexts:    %s\n", strings.Join(r.Contexts, ", "))
	}
	fmt.Fprintf(stdout, "Confidence:  %.2f\n", r.Confidence)
	fmt.Fprintf(stdout, "Added At:    %s\n", formatMillis(r.AddedAt))
}

func printEntryTable(entries []model.LogEntry) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORIGIN\tWALL CLOCK\tTYPE\tCHECKSUM")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Origin,
			formatMillis(e.WallClock),
			e.Payload.Type,
			e.Checksum,
		)
	}
	w.Flush()
}

func formatClock(vc model.VectorClock) string {
	peers := vc.Peers()
	parts := make([]string, len(peers))
	for i, p := range peers {
		parts[i] = fmt.Sprintf("%s:%d", p, vc[p])
	}
	return strings.Join(parts, " ")
}

func printStats(s *node.Stats) {
	fmt.Fprintln(stdout, ui.RenderAccent("Peer "+s.Gossip.PeerID))
	fmt.Fprintf(stdout, "  Log Entries:     %d\n", s.Log.TotalLogEntries)
	fmt.Fprintf(stdout, "  Patterns:        %d\n", s.Log.TotalPatterns)
	fmt.Fprintf(stdout, "  Source Peers:    %d %s\n", s.Log.SourcePeerCount, ui.RenderMuted(strings.Join(s.Log.SourcePeers, ", ")))
	fmt.Fprintf(stdout, "  Vector Clock:    %s\n", formatClock(s.Log.Clock))
	if s.Log.LastUpdate != nil {
		fmt.Fprintf(stdout, "  Last Update:     %s\n", formatMillis(*s.Log.LastUpdate))
	}
	fmt.Fprintf(stdout, "  Published:       %d\n", s.Gossip.Published)
	fmt.Fprintf(stdout, "  Received:        %d\n", s.Gossip.Received)
	fmt.Fprintf(stdout, "  Connected Peers: %d\n", s.Gossip.ConnectedPeers)
	if s.Gossip.LastSync != nil {
		fmt.Fprintf(stdout, "  Last Sync:       %s\n", formatMillis(*s.Gossip.LastSync))
	}
	if len(s.Gossip.Subscriptions) > 0 {
		fmt.Fprintf(stdout, "  Subscriptions:   %s\n", strings.Join(s.Gossip.Subscriptions, ", "))
	}
	held := fmt.Sprintf("%d", s.Quarantined)
	if s.Quarantined > 0 {
		held = ui.RenderWarn(held)
	}
	fmt.Fprintf(stdout, "  Quarantined:     %s\n", held)
}

func printPeerTable(peers []presence.PeerRecord) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tMESSAGES\tPATTERNS\tLAST SEEN\tIDLE")
	for _, p := range peers {
		idle := (time.Duration(p.IdleSecs) * time.Second).String()
		if p.Reaped {
			idle = ui.RenderWarn(idle + " (idle)")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			p.Peer,
			p.MessageCount,
			p.PatternCount,
			p.LastSeen.Format("2006-01-02 15:04:05"),
			idle,
		)
	}
	w.Flush()
	fmt.Fprintf(stdout, "\n%d peers\n", len(peers))
}

func printPatterns(patterns []model.Pattern) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONF\tCONTEXTS\tDESCRIPTION")
	for _, p := range patterns {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", p.ID, p.Confidence, strings.Join(p.Contexts, ","), truncate(p.Description, 60))
	}
	w.Flush()
}

func printHeldTable(held []scan.Held) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tPEER\tDIRECTION\tHELD AT\tREASONS")
	for _, h := range held {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			h.Pattern.ID,
			h.Peer,
			h.Direction,
			h.HeldAt.Format("2006-01-02 15:04:05"),
			strings.Join(h.Reasons, "; "),
		)
	}
	w.Flush()
	fmt.Fprintf(stdout, "\n%d held\n", len(held))
}

func printSyncResult(r *node.SyncResult) {
	fmt.Fprintf(stdout, "Received %d messages\n", len(r.Received))
	fmt.Fprintf(stdout, "  Delivered:   %d\n", r.Delivered)
	fmt.Fprintf(stdout, "  Irrelevant:  %d\n", r.Irrelevant)
	fmt.Fprintf(stdout, "  Merged:      %s\n", ui.RenderPass(fmt.Sprintf("%d", r.Merged)))
	fmt.Fprintf(stdout, "  Adopted:     %s\n", ui.RenderPass(fmt.Sprintf("%d", r.Adopted)))
	fmt.Fprintf(stdout, "  Duplicates:  %d\n", r.Duplicates)
	fmt.Fprintf(stdout, "  Invalid:     %d\n", r.Invalid)
	if r.Quarantined > 0 || r.Blocked > 0 {
		fmt.Fprintf(stdout, "  Quarantined: %s\n", ui.RenderWarn(fmt.Sprintf("%d", r.Quarantined)))
		fmt.Fprintf(stdout, "  Blocked:     %s\n", ui.RenderWarn(fmt.Sprintf("%d", r.Blocked)))
	}
}
