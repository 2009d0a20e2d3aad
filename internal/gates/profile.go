package gates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GateConfig is the per-gate switch inside a profile.
type GateConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Profile names the gates a strategy cares about and how many must pass.
type Profile struct {
	Name     string                `yaml:"name"`
	Required int                   `yaml:"required"`
	Gates    map[string]GateConfig `yaml:"gates"`
}

// ProfileSet is the on-disk profile collection plus the active selection.
type ProfileSet struct {
	Active   string    `yaml:"active"`
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads and validates a profile file.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var set ProfileSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(set.Profiles) == 0 {
		return nil, fmt.Errorf("profiles %s: no profiles defined", path)
	}
	for i, p := range set.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profiles %s: profile %d has no name", path, i)
		}
		enabled := 0
		for _, g := range p.Gates {
			if g.Enabled {
				enabled++
			}
		}
		if p.Required > enabled {
			return nil, fmt.Errorf("profile %s: required %d exceeds %d enabled gates", p.Name, p.Required, enabled)
		}
	}
	if set.Active == "" {
		set.Active = set.Profiles[0].Name
	}
	if _, err := set.Get(set.Active); err != nil {
		return nil, err
	}
	return &set, nil
}

// Get returns the named profile.
func (s *ProfileSet) Get(name string) (Profile, error) {
	for _, p := range s.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("profile %q not found", name)
}

// ActiveProfile returns the currently selected profile.
func (s *ProfileSet) ActiveProfile() Profile {
	p, _ := s.Get(s.Active)
	return p
}
