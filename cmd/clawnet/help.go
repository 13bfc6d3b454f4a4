package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/clawnet/internal/ui"
)

// helpRule restyles one kind of token in cobra's plain help text.
type helpRule struct {
	re     *regexp.Regexp
	render func(groups []string) string
}

var helpRules = []helpRule{
	// Section headers such as "Gossip:" or "Flags:".
	{
		re:     regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		render: func(g []string) string { return ui.RenderAccent(g[1]) },
	},
	// Subcommand names in the command list.
	{
		re:     regexp.MustCompile(`(?m)^(  )([a-z][\w-]*)(  +)`),
		render: func(g []string) string { return g[1] + ui.RenderCommand(g[2]) + g[3] },
	},
	// Flag value types, e.g. "--limit int".
	{
		re:     regexp.MustCompile(`(--?[\w-]+\s+)(string|int|float|duration|stringArray)\b`),
		render: func(g []string) string { return g[1] + ui.RenderMuted(g[2]) },
	},
	{
		re:     regexp.MustCompile(`\(default [^)]*\)`),
		render: func(g []string) string { return ui.RenderMuted(g[0]) },
	},
}

// colorizedHelpFunc renders cobra's usage text and colors it when stdout
// supports ANSI escapes.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			return r.render(r.re.FindStringSubmatch(match))
		})
	}
	return s
}
