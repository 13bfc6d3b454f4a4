package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/clawnet/internal/client"
)

var patternsCmd = &cobra.Command{
	Use:     "patterns",
	Short:   "List indexed patterns, newest first",
	GroupID: "log",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		records, err := peerClient.ListPatterns(cmd.Context(), &client.ListPatternsRequest{
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(records)
		}
		printPatternTable(records)
		return nil
	},
}

var patternsShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show the pattern backed by a log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := peerClient.GetPattern(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(rec)
		}
		printPatternRecord(rec)
		return nil
	},
}

func init() {
	patternsCmd.Flags().String("source", "", "only patterns whose source peer matches")
	patternsCmd.Flags().IntP("limit", "n", 0, "maximum number of patterns (0 = all)")
	patternsCmd.AddCommand(patternsShowCmd)
}
