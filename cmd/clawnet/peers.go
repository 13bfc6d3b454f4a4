package main

import (
	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers [peer]",
	Short: "List remote peers, or the patterns one peer has shared",
	Long: `Without arguments peers lists every remote peer this node has heard
from. With a peer id it lists the patterns observed from that peer.`,
	GroupID: "gossip",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 1 {
			patterns, err := peerClient.PeerPatterns(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(patterns)
			}
			printPatterns(patterns)
			return nil
		}

		stale, _ := cmd.Flags().GetDuration("stale")
		peers, err := peerClient.Peers(ctx, stale)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(peers)
		}
		printPeerTable(peers)
		return nil
	},
}

var quarantineCmd = &cobra.Command{
	Use:     "quarantine",
	Short:   "List patterns held by the scanner for review",
	GroupID: "gossip",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		held, err := peerClient.Quarantine(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(held)
		}
		printHeldTable(held)
		return nil
	},
}

func init() {
	peersCmd.Flags().Duration("stale", 0, "hide peers silent for longer than this (0 = show all)")
}
