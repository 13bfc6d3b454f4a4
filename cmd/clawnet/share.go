package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/ui"
)

var shareCmd = &cobra.Command{
	Use:   "share [--file patterns.json | --id ID --context TAG ...]",
	Short: "Log and publish patterns to the exchange",
	Long: `Share logs the given patterns on the peer and publishes them in one
gossip message. Patterns come from --file (a JSON object or array; "-" reads
stdin) or from a single pattern described by flags.`,
	GroupID: "gossip",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, err := patternsFromFlags(cmd)
		if err != nil {
			return err
		}
		resp, err := peerClient.Share(cmd.Context(), patterns)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		if resp.MessageID != "" {
			fmt.Fprintf(stdout, "Published %s with %d patterns\n", ui.RenderAccent(resp.MessageID), len(resp.Entries))
		} else {
			fmt.Fprintln(stdout, "Nothing published")
		}
		if resp.Quarantined > 0 {
			fmt.Fprintf(stdout, "  Quarantined: %s\n", ui.RenderWarn(fmt.Sprintf("%d", resp.Quarantined)))
		}
		if resp.Blocked > 0 {
			fmt.Fprintf(stdout, "  Blocked:     %s\n", ui.RenderWarn(fmt.Sprintf("%d", resp.Blocked)))
		}
		for _, r := range resp.Rejected {
			fmt.Fprintf(stdout, "  Rejected %s: %s\n", r.PatternID, r.Reason)
		}
		return nil
	},
}

func patternsFromFlags(cmd *cobra.Command) ([]model.Pattern, error) {
	file, _ := cmd.Flags().GetString("file")
	id, _ := cmd.Flags().GetString("id")
	if file != "" && id != "" {
		return nil, fmt.Errorf("--file and --id are mutually exclusive")
	}
	if file != "" {
		var r io.Reader = cmd.InOrStdin()
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return decodePatterns(data)
	}
	if id == "" {
		return nil, fmt.Errorf("one of --file or --id is required")
	}
	p := model.Pattern{ID: id}
	p.Contexts, _ = cmd.Flags().GetStringArray("context")
	p.Description, _ = cmd.Flags().GetString("description")
	p.Approach, _ = cmd.Flags().GetString("approach")
	p.Confidence, _ = cmd.Flags().GetFloat64("confidence")
	return []model.Pattern{p}, nil
}

// decodePatterns accepts a single pattern object or an array of them.
func decodePatterns(data []byte) ([]model.Pattern, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("no patterns in input")
	}
	if data[0] == '{' {
		var p model.Pattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding pattern: %w", err)
		}
		return []model.Pattern{p}, nil
	}
	var ps []model.Pattern
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("decoding patterns: %w", err)
	}
	return ps, nil
}

func init() {
	shareCmd.Flags().StringP("file", "f", "", `JSON file of patterns ("-" for stdin)`)
	shareCmd.Flags().String("id", "", "pattern id")
	shareCmd.Flags().StringArrayP("context", "c", nil, "context tag (repeatable)")
	shareCmd.Flags().StringP("description", "d", "", "pattern description")
	shareCmd.Flags().String("approach", "", "approach name")
	shareCmd.Flags().Float64("confidence", 0, "confidence in [0, 1]")
}
