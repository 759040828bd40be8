package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petr-muller/stale-sweeper/internal/history"
)

const defaultHistoryLimit = 10

type historyOptions struct {
	target  string
	limit   int
	compare bool
}

func newHistoryCmd() *cobra.Command {
	var o historyOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show reports of past runs",
		Long: `Without --target, lists the targets with recorded runs and their latest report.
With --target, lists the recent runs of that target, newest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(o)
		},
	}

	cmd.Flags().StringVar(&o.target, "target", "", "Target (profile name, org/repo or JQL query) to show runs of")
	cmd.Flags().IntVar(&o.limit, "limit", defaultHistoryLimit, "Maximum number of runs to show (0 means all)")
	cmd.Flags().BoolVar(&o.compare, "compare", false, "Show how stale entities changed between the two latest runs of --target")

	return cmd
}

func runHistory(o historyOptions) error {
	dataDir, err := history.RunsDir()
	if err != nil {
		return fmt.Errorf("cannot determine data directory: %w", err)
	}
	store := history.NewStore(dataDir)

	if o.target == "" {
		if o.compare {
			return fmt.Errorf("--compare requires --target")
		}
		return listTargets(store)
	}

	if o.compare {
		return compareRuns(store, o.target)
	}

	reports, err := store.List(o.target, o.limit)
	if err != nil {
		return fmt.Errorf("cannot list runs: %w", err)
	}
	if len(reports) == 0 {
		fmt.Printf("No runs recorded for '%s'\n", o.target)
		return nil
	}

	fmt.Printf("Runs of %s:\n", o.target)
	for _, report := range reports {
		fmt.Printf("  - %s\n", describe(report))
	}
	return nil
}

func listTargets(store *history.Store) error {
	targets, err := store.Targets()
	if err != nil {
		return fmt.Errorf("cannot list targets: %w", err)
	}
	if len(targets) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Println("Recorded targets:")
	for _, target := range targets {
		latest, err := store.Latest(target)
		if err != nil || latest == nil {
			fmt.Printf("  - %s\n", target)
			continue
		}
		fmt.Printf("  - %s (%s), last run %s\n", target, latest.Platform, describe(*latest))
	}
	return nil
}

func compareRuns(store *history.Store, target string) error {
	reports, err := store.List(target, 2)
	if err != nil {
		return fmt.Errorf("cannot list runs: %w", err)
	}
	if len(reports) < 2 {
		fmt.Printf("Need at least two recorded runs of '%s' to compare\n", target)
		return nil
	}

	current, previous := reports[0], reports[1]
	changes := history.Compare(previous, current)
	fmt.Printf("Changes between %s and %s:\n",
		previous.Started.Format("2006-01-02 15:04"), current.Started.Format("2006-01-02 15:04"))
	if !changes.HasChanges() {
		fmt.Println("  No changes")
		return nil
	}

	printChanged("Newly stale", changes.NewlyStale)
	printChanged("Closed", changes.Closed)
	printChanged("No longer stale", changes.Unstaled)
	printChanged("No longer listed", changes.Gone)
	return nil
}

func printChanged(title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Printf("  %s (%d): %s\n", title, len(ids), strings.Join(ids, ", "))
}

func describe(report history.Report) string {
	var s strings.Builder
	fmt.Fprintf(&s, "%s: evaluated %d, staled %d, closed %d, deleted %d branches, failed %d, skipped %d",
		report.Started.Local().Format("2006-01-02 15:04"),
		report.Evaluated, report.Staled, report.Closed, report.BranchesDeleted, report.Failed, report.Skipped)
	if report.Error != "" {
		fmt.Fprintf(&s, " (error: %s)", report.Error)
	}
	return s.String()
}
