package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/petr-muller/stale-sweeper/internal/flagutil"
	"github.com/petr-muller/stale-sweeper/internal/platform/github"
	"github.com/petr-muller/stale-sweeper/internal/platform/jira"
	"github.com/petr-muller/stale-sweeper/internal/retry"
	"github.com/petr-muller/stale-sweeper/internal/sweep"
	"github.com/petr-muller/stale-sweeper/internal/sweepconfig"
)

const (
	platformGitHub = "github"
	platformJira   = "jira"

	defaultWorkers = 4
	defaultTimeout = 30 * time.Minute
)

type options struct {
	platform string

	repo string
	jql  string

	sweep  flagutil.SweepOptions
	github flagutil.GitHubOptions
	jira   flagutil.JiraOptions

	workers       int
	retryAttempts int
	timeout       time.Duration

	pushgatewayURL string
	recordHistory  bool
	dryRun         bool
	interactive    bool
}

// sweepSetup is everything resolved from options that a sweep needs
type sweepSetup struct {
	target   string
	config   sweep.Config
	platform sweep.Platform
	logger   *logrus.Entry
}

func (o *options) addFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	switch o.platform {
	case platformGitHub:
		fs.StringVar(&o.repo, "repo", "", "GitHub repository to sweep, in org/repo form")
		o.github.AddPFlags(fs)
	case platformJira:
		fs.StringVar(&o.jql, "jql", "", "JQL query selecting the Jira issues to sweep")
		o.jira.AddPFlags(fs)
	}
	o.sweep.AddPFlags(fs)

	fs.IntVar(&o.workers, "workers", defaultWorkers, "Number of entities processed in parallel")
	fs.IntVar(&o.retryAttempts, "retry-attempts", retry.DefaultConfig().MaxAttempts, "Attempts per platform call when it fails transiently")
	fs.DurationVar(&o.timeout, "timeout", defaultTimeout, "Bound for the whole run (0 means no bound)")
}

func (o *options) validate() error {
	if o.workers <= 0 {
		return fmt.Errorf("--workers must be positive, got %d", o.workers)
	}
	if o.retryAttempts <= 0 {
		return fmt.Errorf("--retry-attempts must be positive, got %d", o.retryAttempts)
	}
	if o.timeout < 0 {
		return fmt.Errorf("--timeout must not be negative, got %s", o.timeout)
	}
	return nil
}

// setup resolves the profile, configuration and platform client
func (o *options) setup(mutating bool) (*sweepSetup, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	profile, err := o.sweep.LoadProfile()
	if err != nil {
		return nil, fmt.Errorf("cannot load profile: %w", err)
	}
	cfg, err := o.sweep.Config(profile)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep configuration: %w", err)
	}

	switch o.platform {
	case platformGitHub:
		return o.setupGitHub(profile, cfg, mutating)
	case platformJira:
		return o.setupJira(profile, cfg)
	default:
		return nil, fmt.Errorf("unknown platform %q", o.platform)
	}
}

func (o *options) target(fallback string) string {
	if o.sweep.Profile != "" {
		return o.sweep.Profile
	}
	return fallback
}

func (o *options) setupGitHub(profile sweepconfig.Profile, cfg sweep.Config, mutating bool) (*sweepSetup, error) {
	repo := o.repo
	if repo == "" {
		repo = profile.Repo
	}
	if repo == "" {
		return nil, fmt.Errorf("--repo must be specified (or set in the profile)")
	}

	if err := o.github.Validate(!mutating); err != nil {
		return nil, fmt.Errorf("invalid GitHub options: %w", err)
	}
	client, err := o.github.Client(!mutating)
	if err != nil {
		return nil, fmt.Errorf("cannot create GitHub client: %w", err)
	}

	logger := logrus.WithField("target", o.target(repo))
	platform, err := github.NewPlatform(client, repo, github.Options{
		StaleLabel:      cfg.StaleLabel,
		StaleMessage:    cfg.StaleMessage,
		ResolveBranches: cfg.DeleteBranchOnClose,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &sweepSetup{target: o.target(repo), config: cfg, platform: platform, logger: logger}, nil
}

func (o *options) setupJira(profile sweepconfig.Profile, cfg sweep.Config) (*sweepSetup, error) {
	jql := o.jql
	if jql == "" {
		jql = profile.JQL
	}
	if jql == "" {
		return nil, fmt.Errorf("--jql must be specified (or set in the profile)")
	}

	if err := o.jira.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Jira options: %w", err)
	}
	client, err := o.jira.Client()
	if err != nil {
		return nil, fmt.Errorf("cannot create Jira client: %w", err)
	}

	logger := logrus.WithField("target", o.target(jql))
	platform, err := jira.NewPlatform(client, jql, jira.Options{
		StaleLabel:   cfg.StaleLabel,
		StaleMessage: cfg.StaleMessage,
		CloseStatus:  o.sweep.ResolveCloseStatus(profile),
	}, logger)
	if err != nil {
		return nil, err
	}

	return &sweepSetup{target: o.target(jql), config: cfg, platform: platform, logger: logger}, nil
}

func (o *options) runner(setup *sweepSetup, extra ...sweep.RunnerOption) (*sweep.Runner, error) {
	opts := append([]sweep.RunnerOption{
		sweep.WithWorkers(o.workers),
		sweep.WithRetry(retry.Config{MaxAttempts: o.retryAttempts}),
		sweep.WithLogger(setup.logger),
	}, extra...)
	return sweep.NewRunner(setup.platform, setup.config, opts...)
}

func (o *options) context(parent context.Context) (context.Context, context.CancelFunc) {
	if o.timeout == 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, o.timeout)
}
