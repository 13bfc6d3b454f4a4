package main

import (
	"strings"
	"testing"
)

func TestColorizeHelpOutput(t *testing.T) {
	in := "Usage:\n  clawnet <command>\n\nGossip:\n  share       Log and publish patterns\n\nFlags:\n      --http-url string   peer HTTP URL (default \"http://localhost:8080\")\n"
	out := colorizeHelpOutput(in)

	for _, want := range []string{
		"\x1b[38;5;74mGossip:\x1b[0m",
		"  \x1b[38;5;250mshare\x1b[0m  ",
		"--http-url \x1b[38;5;245mstring\x1b[0m",
		"\x1b[38;5;245m(default \"http://localhost:8080\")\x1b[0m",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("colorized help missing %q\n%s", want, out)
		}
	}
}
