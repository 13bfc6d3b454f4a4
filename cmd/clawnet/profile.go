package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/clawnet/internal/config"
	"github.com/alfredjeanlab/clawnet/internal/gossip"
	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Write or inspect a peer's TOML interest profile",
	GroupID: "system",
	// Profiles are local files; no API client is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Setup()
		return nil
	},
}

var profileInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a profile from --interest and --always flags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, _ := cmd.Flags().GetStringArray("interest")
		always, _ := cmd.Flags().GetStringArray("always")

		interests, err := parseInterests(specs)
		if err != nil {
			return err
		}
		p := config.Profile{Interests: interests, AlwaysRelevant: always}
		if err := config.SaveProfile(args[0], p); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s (%d interests, %d always relevant)\n", args[0], len(interests), len(always))
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show a profile and the tags a peer would subscribe to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		floor, _ := cmd.Flags().GetFloat64("floor")
		p, err := config.LoadProfile(args[0])
		if err != nil {
			return err
		}
		subscribed := subscribedTags(p, floor)
		if jsonOutput {
			return printJSON(struct {
				config.Profile
				Subscribed []string `json:"subscribed"`
			}{p, subscribed})
		}
		tags := make([]string, 0, len(p.Interests))
		for tag := range p.Interests {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		fmt.Fprintln(stdout, ui.RenderAccent("Interests:"))
		for _, tag := range tags {
			fmt.Fprintf(stdout, "  %-20s %.2f\n", tag, p.Interests[tag])
		}
		if len(p.AlwaysRelevant) > 0 {
			fmt.Fprintf(stdout, "%s %s\n", ui.RenderAccent("Always relevant:"), strings.Join(p.AlwaysRelevant, ", "))
		}
		fmt.Fprintf(stdout, "%s %s\n", ui.RenderAccent("Subscribed:"), strings.Join(subscribed, ", "))
		return nil
	},
}

// parseInterests reads "tag=weight" pairs.
func parseInterests(specs []string) (model.InterestVector, error) {
	iv := model.InterestVector{}
	for _, s := range specs {
		tag, w, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(tag) == "" {
			return nil, fmt.Errorf("invalid interest %q, want tag=weight", s)
		}
		weight, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight in %q: %w", s, err)
		}
		iv[strings.TrimSpace(tag)] = weight
	}
	return iv, nil
}

// subscribedTags mirrors the node: interest tags above floor plus the
// allow-list, deduplicated and sorted.
func subscribedTags(p config.Profile, floor float64) []string {
	set := make(map[string]struct{})
	for _, tag := range gossip.InterestTags(p.Interests, floor) {
		set[tag] = struct{}{}
	}
	for _, tag := range p.AlwaysRelevant {
		set[tag] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func init() {
	profileInitCmd.Flags().StringArrayP("interest", "i", nil, "interest as tag=weight (repeatable)")
	profileInitCmd.Flags().StringArray("always", nil, "always-relevant tag (repeatable)")
	profileShowCmd.Flags().Float64("floor", 0.1, "interest weight floor (CLAWNET_INTEREST_FLOOR)")
	profileCmd.AddCommand(profileInitCmd, profileShowCmd)
}
