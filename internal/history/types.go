package history

import (
	"time"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

// Report is the stored record of one sweep run
type Report struct {
	Target   string       `yaml:"target"`
	Platform string       `yaml:"platform"`
	DryRun   bool         `yaml:"dry_run,omitempty"`
	Started  time.Time    `yaml:"started"`
	Finished time.Time    `yaml:"finished"`
	Config   sweep.Config `yaml:"config"`

	Evaluated       int `yaml:"evaluated"`
	Staled          int `yaml:"staled"`
	Closed          int `yaml:"closed"`
	BranchesDeleted int `yaml:"branches_deleted"`
	Failed          int `yaml:"failed"`
	Skipped         int `yaml:"skipped"`

	// Error is set when the run did not complete
	Error string `yaml:"error,omitempty"`

	Entities []EntityRecord `yaml:"entities,omitempty"`
}

// EntityRecord is what happened to one entity in a run
type EntityRecord struct {
	ID      string   `yaml:"id"`
	State   string   `yaml:"state"`
	Applied []string `yaml:"applied,omitempty"`
	Labeled bool     `yaml:"labeled,omitempty"`
	Failed  bool     `yaml:"failed,omitempty"`
	Skipped bool     `yaml:"skipped,omitempty"`
}

// Changes describes how the set of stale entities moved between two runs
type Changes struct {
	// NewlyStale entities were marked stale by the later run
	NewlyStale []string
	// Closed entities were closed by the later run
	Closed []string
	// Unstaled entities were stale before and are fresh again
	Unstaled []string
	// Gone entities were stale before and were not listed by the later run
	Gone []string
}

// NewReport builds a report from the summary of a run
func NewReport(target string, cfg sweep.Config, summary sweep.Summary, dryRun bool, runErr error) Report {
	report := Report{
		Target:          target,
		Platform:        summary.Platform,
		DryRun:          dryRun,
		Started:         summary.Started,
		Finished:        summary.Finished,
		Config:          cfg,
		Evaluated:       summary.Evaluated,
		Staled:          summary.Staled,
		Closed:          summary.Closed,
		BranchesDeleted: summary.BranchesDeleted,
		Failed:          summary.Failed,
		Skipped:         summary.Skipped,
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	for _, entity := range summary.Entities {
		report.Entities = append(report.Entities, EntityRecord{
			ID:      entity.ID,
			State:   string(entity.State),
			Applied: entity.Applied,
			Labeled: entity.Labeled,
			Failed:  entity.Failed,
			Skipped: entity.Skipped,
		})
	}
	return report
}
