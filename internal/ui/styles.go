// Package ui holds the small amount of terminal styling the clawnet CLI
// uses: ANSI 256-color helpers and color detection.
package ui

import "fmt"

// ANSI 256 palette indexes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 179 // amber
	colorPass   = 114 // green
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent styles section headers and peer ids.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted styles secondary detail such as ids and timestamps.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand styles command names in help output.
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderWarn styles quarantined patterns and idle peers.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderPass styles merged or accepted counts.
func RenderPass(s string) string { return render(colorPass, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// Enabled reports whether Render* functions emit escapes.
func Enabled() bool { return !noColor }
