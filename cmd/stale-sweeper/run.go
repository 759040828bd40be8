package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/petr-muller/stale-sweeper/internal/history"
	"github.com/petr-muller/stale-sweeper/internal/metrics"
	"github.com/petr-muller/stale-sweeper/internal/sweep"
	"github.com/petr-muller/stale-sweeper/internal/ui"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep a target: mark inactive entities stale and close stale ones",
	}
	cmd.AddCommand(
		newRunPlatformCmd(platformGitHub, "Sweep the open issues and pull requests of a GitHub repository"),
		newRunPlatformCmd(platformJira, "Sweep the Jira issues matched by a JQL query"),
	)
	return cmd
}

func newRunPlatformCmd(platform, short string) *cobra.Command {
	o := &options{platform: platform}
	cmd := &cobra.Command{
		Use:   platform,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), o)
		},
	}

	o.addFlags(cmd)
	cmd.Flags().StringVar(&o.pushgatewayURL, "pushgateway-url", "", "Push run metrics to this Prometheus Pushgateway")
	cmd.Flags().BoolVar(&o.recordHistory, "record-history", true, "Store a report of the run")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Only show what would be done")

	return cmd
}

func runSweep(ctx context.Context, o *options) error {
	if o.dryRun {
		return planSweep(ctx, o)
	}

	setup, err := o.setup(true)
	if err != nil {
		return err
	}

	m := metrics.New()
	runner, err := o.runner(setup, sweep.WithObserver(m))
	if err != nil {
		return err
	}

	runCtx, cancel := o.context(ctx)
	defer cancel()

	setup.logger.Info("Starting sweep")
	summary, runErr := runner.Run(runCtx)
	setup.logger.WithField("duration", summary.Finished.Sub(summary.Started)).Infof("Sweep finished: %s", summary)

	m.RecordSummary(summary, runErr)
	if o.pushgatewayURL != "" {
		// the run context may be exhausted already, metrics should still go out
		if err := m.Push(ctx, o.pushgatewayURL, summary.Platform, setup.target); err != nil {
			setup.logger.WithError(err).Warn("Failed to push metrics")
		}
	}

	if o.recordHistory {
		recordRun(setup, summary, runErr)
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("failed to process %d entities: %s", summary.Failed, strings.Join(summary.FailedEntities, ", "))
	}
	return nil
}

func recordRun(setup *sweepSetup, summary sweep.Summary, runErr error) {
	dataDir, err := history.RunsDir()
	if err != nil {
		setup.logger.WithError(err).Warn("Cannot determine data directory, not recording the run")
		return
	}

	store := history.NewStore(dataDir)
	report := history.NewReport(setup.target, setup.config, summary, false, runErr)
	path, err := store.Save(report)
	if err != nil {
		setup.logger.WithError(err).Warn("Failed to record the run")
		return
	}
	setup.logger.WithField("report", path).Debug("Run recorded")
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a sweep would do without changing anything",
	}
	cmd.AddCommand(
		newPlanPlatformCmd(platformGitHub, "Plan a sweep of a GitHub repository"),
		newPlanPlatformCmd(platformJira, "Plan a sweep of the Jira issues matched by a JQL query"),
	)
	return cmd
}

func newPlanPlatformCmd(platform, short string) *cobra.Command {
	o := &options{platform: platform}
	cmd := &cobra.Command{
		Use:   platform,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return planSweep(cmd.Context(), o)
		},
	}

	o.addFlags(cmd)
	cmd.Flags().BoolVarP(&o.interactive, "interactive", "i", false, "Browse the plan in an interactive table")

	return cmd
}

func planSweep(ctx context.Context, o *options) error {
	setup, err := o.setup(false)
	if err != nil {
		return err
	}
	runner, err := o.runner(setup)
	if err != nil {
		return err
	}

	planCtx, cancel := o.context(ctx)
	defer cancel()

	if o.interactive {
		return browsePlan(planCtx, setup.target, runner.Plan)
	}

	plans, err := runner.Plan(planCtx)
	if err != nil {
		return err
	}
	logrus.Debugf("Planned %d entities", len(plans))
	fmt.Println(ui.RenderPlans(plans, timeNow()))
	return nil
}
