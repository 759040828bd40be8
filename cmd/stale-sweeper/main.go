package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:   "stale-sweeper",
		Short: "Mark inactive issues and pull requests stale and close them when they stay stale",
		Long: `Stale Sweeper is meant to be started periodically by an external scheduler.
Every run lists the open issues and pull requests of one target, marks the
inactive ones with a stale label and a comment, and closes the ones that stayed
stale for too long.

Targets are a GitHub repository or the issues matched by a Jira JQL query.
Use "plan" to see what a run would do without changing anything.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			logrus.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logrus.InfoLevel.String(), "Logging level (trace, debug, info, warning, error)")

	rootCmd.AddCommand(
		newRunCmd(),
		newPlanCmd(),
		newHistoryCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, rootCmd); err != nil {
		stop()
		logrus.WithError(err).Fatal("command failed")
	}
}
