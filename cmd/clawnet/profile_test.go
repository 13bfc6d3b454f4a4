package main

import (
	"path/filepath"
	"testing"

	"github.com/alfredjeanlab/clawnet/internal/config"
	"github.com/alfredjeanlab/clawnet/internal/model"
)

func TestParseInterests(t *testing.T) {
	for _, tc := range []struct {
		name    string
		in      []string
		want    model.InterestVector
		wantErr bool
	}{
		{"Empty", nil, model.InterestVector{}, false},
		{"Pairs", []string{"design=0.9", " planning =0.5"}, model.InterestVector{"design": 0.9, "planning": 0.5}, false},
		{"MissingWeight", []string{"design"}, nil, true},
		{"BadWeight", []string{"design=high"}, nil, true},
		{"EmptyTag", []string{"=0.5"}, nil, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseInterests(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseInterests() err = %v, wantErr %v", err, tc.wantErr)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for tag, w := range tc.want {
				if got[tag] != w {
					t.Errorf("got[%q] = %g, want %g", tag, got[tag], w)
				}
			}
		})
	}
}

func TestSubscribedTags_FromSavedProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.toml")
	in := config.Profile{
		Interests:      model.InterestVector{"design": 0.9, "planning": 0.05, "security": 0.4},
		AlwaysRelevant: []string{"security", "incident"},
	}
	if err := config.SaveProfile(path, in); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	p, err := config.LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}

	got := subscribedTags(p, 0.1)
	want := []string{"design", "incident", "security"}
	if len(got) != len(want) {
		t.Fatalf("subscribedTags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("subscribedTags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
