package ui

import (
	"strings"
	"testing"
)

func TestShouldUseColor_Env(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColor", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Force", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "1"}, true},
		{"ClicolorOff", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "", "CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tc.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	prev := noColor
	t.Cleanup(func() { noColor = prev })

	noColor = false
	if got := RenderWarn("held"); !strings.HasPrefix(got, "\x1b[38;5;179m") || !strings.Contains(got, "held") {
		t.Errorf("RenderWarn = %q", got)
	}
	ForceNoColor()
	if got := RenderAccent("alice"); got != "alice" {
		t.Errorf("RenderAccent with no color = %q, want plain", got)
	}
	if Enabled() {
		t.Error("Enabled() = true after ForceNoColor")
	}
}

func TestSetup_NoColorEnv(t *testing.T) {
	prev := noColor
	t.Cleanup(func() { noColor = prev })

	noColor = false
	t.Setenv("NO_COLOR", "1")
	Setup()
	if Enabled() {
		t.Error("Setup() with NO_COLOR should disable color")
	}
}
