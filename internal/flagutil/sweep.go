package flagutil

import (
	"github.com/spf13/pflag"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
	"github.com/petr-muller/stale-sweeper/internal/sweepconfig"
)

const (
	defaultDaysBeforeStale = 60
	defaultDaysBeforeClose = 7

	defaultStaleMessage = "This has been automatically marked as stale because it has not had recent activity. " +
		"It will be closed if no further activity occurs."
	defaultCloseMessage = "Closing this because it stayed stale with no further activity."
)

// SweepOptions hold the sweep configuration flags and the profile they may be layered on
type SweepOptions struct {
	ProfilesPath string
	Profile      string

	// CloseStatus is only meaningful for Jira
	CloseStatus string

	config sweep.Config
	flags  *pflag.FlagSet
}

// AddPFlags injects sweep configuration options into the given pflag.FlagSet
func (o *SweepOptions) AddPFlags(fs *pflag.FlagSet) {
	o.flags = fs

	fs.IntVar(&o.config.DaysBeforeStale, "days-before-stale", defaultDaysBeforeStale, "Days of inactivity before an issue or pull request is marked stale")
	fs.IntVar(&o.config.DaysBeforeClose, "days-before-close", defaultDaysBeforeClose, "Days after being marked stale before an issue or pull request is closed")
	fs.StringSliceVar(&o.config.RequiredAnyOfLabels, "any-of-labels", nil, "Only process issues carrying at least one of these labels")
	fs.BoolVar(&o.config.ApplyLabelFilterToPRs, "apply-label-filter-to-prs", false, "Apply --any-of-labels to pull requests as well")
	fs.StringSliceVar(&o.config.ExemptLabels, "exempt-labels", nil, "Never process issues or pull requests carrying one of these labels")
	fs.StringVar(&o.config.StaleLabel, "stale-label", sweep.DefaultStaleLabel, "Label marking stale issues and pull requests")
	fs.StringVar(&o.config.StaleMessage, "stale-message", defaultStaleMessage, "Comment posted when marking stale")
	fs.StringVar(&o.config.CloseMessage, "close-message", defaultCloseMessage, "Comment posted when closing")
	fs.BoolVar(&o.config.DeleteBranchOnClose, "delete-branch-on-close", false, "Delete the head branch of closed pull requests")
	fs.IntVar(&o.config.OperationsPerRun, "operations-per-run", 0, "Maximum number of mutating calls in one run (0 means unlimited)")

	fs.StringVar(&o.CloseStatus, "close-status", "", "Jira status closed issues are moved to (default \"Closed\")")
	fs.StringVar(&o.ProfilesPath, "profiles", "", "Path to the profiles file (default is profiles.yaml in the user config directory)")
	fs.StringVar(&o.Profile, "profile", "", "Name of the profile to load")
}

// LoadProfile returns the selected profile, or an empty one when none was selected
func (o *SweepOptions) LoadProfile() (sweepconfig.Profile, error) {
	if o.Profile == "" {
		return sweepconfig.Profile{}, nil
	}
	profiles, err := sweepconfig.Load(o.ProfilesPath)
	if err != nil {
		return sweepconfig.Profile{}, err
	}
	return profiles.Get(o.Profile)
}

// Config resolves the sweep configuration: flag defaults, then the profile,
// then flags given explicitly on the command line.
func (o *SweepOptions) Config(profile sweepconfig.Profile) (sweep.Config, error) {
	cfg := o.config
	profile.Apply(&cfg)

	if o.flags != nil {
		explicit := o.config
		o.flags.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "days-before-stale":
				cfg.DaysBeforeStale = explicit.DaysBeforeStale
			case "days-before-close":
				cfg.DaysBeforeClose = explicit.DaysBeforeClose
			case "any-of-labels":
				cfg.RequiredAnyOfLabels = explicit.RequiredAnyOfLabels
			case "apply-label-filter-to-prs":
				cfg.ApplyLabelFilterToPRs = explicit.ApplyLabelFilterToPRs
			case "exempt-labels":
				cfg.ExemptLabels = explicit.ExemptLabels
			case "stale-label":
				cfg.StaleLabel = explicit.StaleLabel
			case "stale-message":
				cfg.StaleMessage = explicit.StaleMessage
			case "close-message":
				cfg.CloseMessage = explicit.CloseMessage
			case "delete-branch-on-close":
				cfg.DeleteBranchOnClose = explicit.DeleteBranchOnClose
			case "operations-per-run":
				cfg.OperationsPerRun = explicit.OperationsPerRun
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		return sweep.Config{}, err
	}
	return cfg, nil
}

// ResolveCloseStatus prefers an explicit flag over the profile
func (o *SweepOptions) ResolveCloseStatus(profile sweepconfig.Profile) string {
	if o.CloseStatus != "" {
		return o.CloseStatus
	}
	return profile.CloseStatus
}
