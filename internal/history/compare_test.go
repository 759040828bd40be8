package history

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

func TestCompare(t *testing.T) {
	previous := Report{Entities: []EntityRecord{
		{ID: "o/r#1", State: "Stale", Labeled: true},
		{ID: "o/r#2", State: "Stale", Labeled: true},
		{ID: "o/r#3", State: "Stale", Applied: []string{"ApplyLabel(stale)", "PostComment"}, Labeled: true},
		{ID: "o/r#4", State: "Fresh"},
		{ID: "o/r#5", State: "DueForClosure", Applied: []string{"PostComment", "Close"}, Labeled: true},
		{ID: "o/r#6", State: "Stale", Failed: true},
	}}
	current := Report{Entities: []EntityRecord{
		{ID: "o/r#2", State: "Fresh"},
		{ID: "o/r#3", State: "DueForClosure", Applied: []string{"PostComment", "Close"}, Labeled: true},
		{ID: "o/r#4", State: "Stale", Applied: []string{"ApplyLabel(stale)", "PostComment"}, Labeled: true},
		{ID: "o/r#6", State: "Fresh"},
	}}

	expected := Changes{
		NewlyStale: []string{"o/r#4"},
		Closed:     []string{"o/r#3"},
		Unstaled:   []string{"o/r#2"},
		Gone:       []string{"o/r#1"},
	}
	changes := Compare(previous, current)
	if diff := cmp.Diff(expected, changes); diff != "" {
		t.Errorf("changes differ from expected (-want +got):\n%s", diff)
	}
	if !changes.HasChanges() {
		t.Error("expected changes to be reported")
	}
	if Compare(current, current).Unstaled != nil {
		t.Error("comparing a run with itself must not report unstaled entities")
	}
}

func TestNewReport(t *testing.T) {
	started := time.Date(2024, time.June, 15, 4, 0, 0, 0, time.UTC)
	summary := sweep.Summary{
		Platform:  "jira",
		Started:   started,
		Finished:  started.Add(time.Minute),
		Evaluated: 2,
		Staled:    1,
		Failed:    1,
		Entities: []sweep.EntityOutcome{
			{ID: "OCPBUGS-1", State: sweep.StateStale, Applied: []string{"ApplyLabel(stale)"}, Labeled: true, Failed: true},
			{ID: "OCPBUGS-2", State: sweep.StateFresh},
		},
	}

	report := NewReport("bugs", sweep.Config{DaysBeforeClose: 3}, summary, false, errors.New("sweep interrupted: context deadline exceeded"))

	expected := Report{
		Target:    "bugs",
		Platform:  "jira",
		Started:   started,
		Finished:  started.Add(time.Minute),
		Config:    sweep.Config{DaysBeforeClose: 3},
		Evaluated: 2,
		Staled:    1,
		Failed:    1,
		Error:     "sweep interrupted: context deadline exceeded",
		Entities: []EntityRecord{
			{ID: "OCPBUGS-1", State: "Stale", Applied: []string{"ApplyLabel(stale)"}, Labeled: true, Failed: true},
			{ID: "OCPBUGS-2", State: "Fresh"},
		},
	}
	if diff := cmp.Diff(expected, report); diff != "" {
		t.Errorf("report differs from expected (-want +got):\n%s", diff)
	}
}
