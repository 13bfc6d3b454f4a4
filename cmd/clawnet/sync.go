package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Pull new gossip from the exchange and merge relevant patterns",
	GroupID: "gossip",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := peerClient.Sync(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		printSyncResult(res)
		return nil
	},
}

var expireCmd = &cobra.Command{
	Use:     "expire",
	Short:   "Delete gossip messages older than their TTL",
	GroupID: "gossip",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := peerClient.Expire(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]int{"removed": removed})
		}
		fmt.Fprintf(stdout, "Removed %d expired messages\n", removed)
		return nil
	},
}
