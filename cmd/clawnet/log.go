package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:     "log",
	Short:   "Show log entries newer than a wall clock",
	GroupID: "log",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := sinceMillis(cmd)
		if err != nil {
			return err
		}
		resp, err := peerClient.LogSince(cmd.Context(), since)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		printEntryTable(resp.Entries)
		fmt.Fprintf(stdout, "\n%d entries, clock %s\n", len(resp.Entries), formatClock(resp.Clock))
		return nil
	},
}

var logExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the full log as JSONL to stdout or a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" || out == "-" {
			return peerClient.Export(cmd.Context(), os.Stdout)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := peerClient.Export(cmd.Context(), f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

// sinceMillis resolves --since (unix millis) or --last (a duration before now).
func sinceMillis(cmd *cobra.Command) (int64, error) {
	since, _ := cmd.Flags().GetInt64("since")
	last, _ := cmd.Flags().GetDuration("last")
	if since != 0 && last != 0 {
		return 0, fmt.Errorf("--since and --last are mutually exclusive")
	}
	if last > 0 {
		return time.Now().Add(-last).UnixMilli(), nil
	}
	return since, nil
}

func init() {
	logCmd.Flags().Int64("since", 0, "unix millis; entries with a later wall clock are shown")
	logCmd.Flags().Duration("last", 0, "show entries from this long ago until now")
	logExportCmd.Flags().StringP("output", "o", "", "file to write (default stdout)")
	logCmd.AddCommand(logExportCmd)
}
