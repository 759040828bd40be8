// Package sweepconfig loads named sweep profiles from a YAML file. A profile
// names its target and overrides any subset of the sweep configuration.
package sweepconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/petr-muller/stale-sweeper/internal/config"
	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

const (
	profilesFileName = "profiles.yaml"
)

// Profile is a named set of overrides. Unset fields keep the value they had.
type Profile struct {
	// Repo is the org/repo swept on GitHub
	Repo string `yaml:"repo,omitempty"`
	// JQL selects the issues swept on Jira
	JQL string `yaml:"jql,omitempty"`
	// CloseStatus is the Jira status closed issues are moved to
	CloseStatus string `yaml:"closeStatus,omitempty"`

	DaysBeforeStale       *int     `yaml:"daysBeforeStale,omitempty"`
	DaysBeforeClose       *int     `yaml:"daysBeforeClose,omitempty"`
	RequiredAnyOfLabels   []string `yaml:"requiredAnyOfLabels,omitempty"`
	ApplyLabelFilterToPRs *bool    `yaml:"applyLabelFilterToPRs,omitempty"`
	ExemptLabels          []string `yaml:"exemptLabels,omitempty"`
	StaleLabel            *string  `yaml:"staleLabel,omitempty"`
	StaleMessage          *string  `yaml:"staleMessage,omitempty"`
	CloseMessage          *string  `yaml:"closeMessage,omitempty"`
	DeleteBranchOnClose   *bool    `yaml:"deleteBranchOnClose,omitempty"`
	OperationsPerRun      *int     `yaml:"operationsPerRun,omitempty"`
}

// Apply overlays the profile onto cfg
func (p Profile) Apply(cfg *sweep.Config) {
	if p.DaysBeforeStale != nil {
		cfg.DaysBeforeStale = *p.DaysBeforeStale
	}
	if p.DaysBeforeClose != nil {
		cfg.DaysBeforeClose = *p.DaysBeforeClose
	}
	if p.RequiredAnyOfLabels != nil {
		cfg.RequiredAnyOfLabels = append([]string(nil), p.RequiredAnyOfLabels...)
	}
	if p.ApplyLabelFilterToPRs != nil {
		cfg.ApplyLabelFilterToPRs = *p.ApplyLabelFilterToPRs
	}
	if p.ExemptLabels != nil {
		cfg.ExemptLabels = append([]string(nil), p.ExemptLabels...)
	}
	if p.StaleLabel != nil {
		cfg.StaleLabel = *p.StaleLabel
	}
	if p.StaleMessage != nil {
		cfg.StaleMessage = *p.StaleMessage
	}
	if p.CloseMessage != nil {
		cfg.CloseMessage = *p.CloseMessage
	}
	if p.DeleteBranchOnClose != nil {
		cfg.DeleteBranchOnClose = *p.DeleteBranchOnClose
	}
	if p.OperationsPerRun != nil {
		cfg.OperationsPerRun = *p.OperationsPerRun
	}
}

// Profiles holds all profiles of a profiles file, keyed by name
type Profiles struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// DefaultPath returns where the profiles file lives when no path is given
func DefaultPath() string {
	return filepath.Join(config.MustSweeperConfigDir(), profilesFileName)
}

// Load reads profiles from path, or from the default location when path is empty.
// A missing file at the default location yields no profiles; an explicitly
// given path must exist.
func Load(path string) (*Profiles, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return &Profiles{Profiles: map[string]Profile{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var profiles Profiles
	if err := yaml.UnmarshalStrict(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}
	if profiles.Profiles == nil {
		profiles.Profiles = map[string]Profile{}
	}

	return &profiles, nil
}

// Get returns the named profile
func (p *Profiles) Get(name string) (Profile, error) {
	profile, ok := p.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found (known profiles: %v)", name, p.Names())
	}
	return profile, nil
}

// Names returns the sorted profile names
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.Profiles))
	for name := range p.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the profiles to path, creating its directory when needed
func (p *Profiles) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}

	return nil
}
