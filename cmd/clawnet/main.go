package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/clawnet/internal/client"
	"github.com/alfredjeanlab/clawnet/internal/ui"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool

	peerClient client.Client
)

func defaultHTTPURL() string {
	if s := os.Getenv("CLAWNET_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:           "clawnet <command>",
	Short:         "Causal pattern log and gossip peer",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if httpURL == "" {
			return fmt.Errorf("--http-url must not be empty")
		}
		ui.Setup()
		if jsonOutput {
			ui.ForceNoColor()
		}
		peerClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if peerClient != nil {
			peerClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "peer HTTP URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("CLAWNET_AUTH_TOKEN"), "bearer token for the peer API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "log", Title: "Log:"},
		&cobra.Group{ID: "gossip", Title: "Gossip:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Log
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(logCmd)

	// Gossip
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(quarantineCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
