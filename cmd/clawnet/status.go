package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the peer's log, gossip and quarantine counts",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := peerClient.Health(ctx); err != nil {
			return fmt.Errorf("peer at %s is not healthy: %w", httpURL, err)
		}
		stats, err := peerClient.Stats(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}
		printStats(stats)
		return nil
	},
}
