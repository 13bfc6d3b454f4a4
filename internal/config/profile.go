package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/clawnet/internal/gossip"
	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Profile is a peer's relevance policy:
//
//	always_relevant = ["security"]
//
//	[interests]
//	design = 0.9
//	planning = 0.8
type Profile struct {
	Interests      model.InterestVector `toml:"interests" json:"interests"`
	AlwaysRelevant []string             `toml:"always_relevant,omitempty" json:"always_relevant,omitempty"`
}

// LoadProfile reads a TOML profile. An empty path yields an empty profile;
// a named file that does not exist is an error.
func LoadProfile(path string) (Profile, error) {
	p := Profile{Interests: model.InterestVector{}}
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, fmt.Errorf("load profile %s: %w", path, err)
	}
	if p.Interests == nil {
		p.Interests = model.InterestVector{}
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("load profile %s: %w", path, err)
	}
	return p, nil
}

// SaveProfile writes p to path, creating parent directories.
func SaveProfile(path string, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}

// Validate checks that every interest weight is in [0, 1] and tags are non-empty.
func (p Profile) Validate() error {
	var errs []error
	for tag, w := range p.Interests {
		if tag == "" {
			errs = append(errs, errors.New("interests: empty tag"))
		}
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Errorf("interests.%s: weight must be between 0 and 1, got %g", tag, w))
		}
	}
	for i, tag := range p.AlwaysRelevant {
		if tag == "" {
			errs = append(errs, fmt.Errorf("always_relevant[%d]: empty tag", i))
		}
	}
	return errors.Join(errs...)
}

// Filter combines the configured thresholds with the profile's allow-list.
func (c *Config) Filter(p Profile) gossip.Filter {
	return gossip.Filter{
		Threshold:      c.SimilarityThreshold,
		Floor:          c.InterestFloor,
		AlwaysRelevant: p.AlwaysRelevant,
	}
}
