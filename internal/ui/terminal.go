package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout should get ANSI colors. NO_COLOR
// (https://no-color.org) wins, then CLICOLOR_FORCE=1, then CLICOLOR=0, and
// otherwise color is used only on a terminal.
func ShouldUseColor() bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Setup disables color for the process when stdout should not get it.
func Setup() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
