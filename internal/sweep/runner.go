package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/petr-muller/stale-sweeper/internal/retry"
)

const defaultWorkers = 4

// Platform is the issue tracker the sweeper works against. Implementations must
// return errors classified with Classify so the runner can tell transient
// failures from permanent ones.
type Platform interface {
	Name() string
	ListEntities(ctx context.Context) ([]Entity, error)
	ApplyLabel(ctx context.Context, entity Entity, label string) error
	PostComment(ctx context.Context, entity Entity, body string) error
	Close(ctx context.Context, entity Entity) error
	DeleteBranch(ctx context.Context, entity Entity, branch string) error
}

// Observer is notified about the outcome of every executed action
type Observer interface {
	ObserveEntity(state State)
	ObserveAction(action ActionType, err error)
}

// Runner evaluates the entities of a Platform and carries out the resulting actions
type Runner struct {
	platform Platform
	config   Config
	workers  int
	retry    retry.Config
	observer Observer
	logger   *logrus.Entry
	now      func() time.Time
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithWorkers sets how many entities are processed in parallel
func WithWorkers(workers int) RunnerOption {
	return func(r *Runner) {
		if workers > 0 {
			r.workers = workers
		}
	}
}

// WithRetry sets the retry policy for platform calls
func WithRetry(cfg retry.Config) RunnerOption {
	return func(r *Runner) {
		r.retry = cfg
	}
}

// WithObserver registers an observer, e.g. metrics
func WithObserver(observer Observer) RunnerOption {
	return func(r *Runner) {
		r.observer = observer
	}
}

// WithLogger sets the logger the runner reports through
func WithLogger(logger *logrus.Entry) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock overrides the source of the current time
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner for the given platform. The configuration must be valid.
func NewRunner(platform Platform, cfg Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sweep configuration: %w", err)
	}

	r := &Runner{
		platform: platform,
		config:   cfg,
		workers:  defaultWorkers,
		retry:    retry.DefaultConfig(),
		logger:   logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("platform", platform.Name())

	return r, nil
}

// Plan lists the entities and computes their action batches without acting on them.
// Plans are ordered like the platform listed the entities.
func (r *Runner) Plan(ctx context.Context) ([]Plan, error) {
	var entities []Entity
	err := retry.Do(ctx, r.retry, IsTransient, r.logger, func() error {
		var err error
		entities, err = r.platform.ListEntities(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	now := r.now()
	plans := make([]Plan, 0, len(entities))
	for _, entity := range entities {
		plans = append(plans, Evaluate(entity, r.config, now))
	}
	return plans, nil
}

// Run performs one sweep. A failure acting on one entity does not stop the others;
// failed entities are counted in the summary. An error is returned when the
// entities could not be listed or the context ended before all batches ran.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Platform: r.platform.Name(), Started: r.now()}

	plans, err := r.Plan(ctx)
	if err != nil {
		summary.Finished = r.now()
		return summary, err
	}
	summary.Evaluated = len(plans)

	budget := r.config.OperationsPerRun
	var work []Plan
	for _, plan := range plans {
		if r.observer != nil {
			r.observer.ObserveEntity(plan.State)
		}
		if len(plan.Actions) == 0 {
			summary.Entities = append(summary.Entities, EntityOutcome{ID: plan.Entity.ID, State: plan.State, Labeled: plan.Entity.HasStaleLabel})
			continue
		}
		if r.config.OperationsPerRun > 0 {
			if plan.operations() > budget {
				r.logger.WithField("entity", plan.Entity.ID).Info("Operations budget exhausted, leaving entity for the next run")
				summary.Skipped++
				summary.Entities = append(summary.Entities, EntityOutcome{ID: plan.Entity.ID, State: plan.State, Labeled: plan.Entity.HasStaleLabel, Skipped: true})
				continue
			}
			budget -= plan.operations()
		}
		work = append(work, plan)
	}

	var lock sync.Mutex
	executed := make([]bool, len(work))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for i, plan := range work {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			outcome := r.execute(groupCtx, plan)

			lock.Lock()
			defer lock.Unlock()
			executed[i] = true
			outcome.addTo(&summary, plan)
			return nil
		})
	}
	_ = group.Wait()

	// Batches the interrupted run never started stay as they were
	for i, plan := range work {
		if executed[i] {
			continue
		}
		summary.Skipped++
		summary.Entities = append(summary.Entities, EntityOutcome{ID: plan.Entity.ID, State: plan.State, Labeled: plan.Entity.HasStaleLabel, Skipped: true})
	}

	sort.Strings(summary.FailedEntities)
	sort.Slice(summary.Entities, func(i, j int) bool {
		return summary.Entities[i].ID < summary.Entities[j].ID
	})
	summary.Finished = r.now()

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("sweep interrupted: %w", err)
	}
	return summary, nil
}

type outcome struct {
	staled        bool
	closed        bool
	branchDeleted bool
	failed        bool
	applied       []string
}

func (o outcome) addTo(summary *Summary, plan Plan) {
	summary.Entities = append(summary.Entities, EntityOutcome{
		ID:      plan.Entity.ID,
		State:   plan.State,
		Applied: o.applied,
		Labeled: plan.Entity.HasStaleLabel || o.staled,
		Failed:  o.failed,
	})

	if o.staled {
		summary.Staled++
	}
	if o.closed {
		summary.Closed++
	}
	if o.branchDeleted {
		summary.BranchesDeleted++
	}
	if o.failed {
		summary.Failed++
		summary.FailedEntities = append(summary.FailedEntities, plan.Entity.ID)
	}
}

// execute runs the batch of one entity in order
func (r *Runner) execute(ctx context.Context, plan Plan) outcome {
	var result outcome
	logger := r.logger.WithField("entity", plan.Entity.ID)

	closed := false
	for _, action := range plan.Actions {
		if action.Type == ActionDeleteBranch && !closed {
			logger.WithField("branch", action.Branch).Info("Not deleting branch of an entity that was not closed")
			continue
		}

		actionLogger := logger.WithField("action", action.String())
		err := r.do(ctx, plan.Entity, action, actionLogger)
		if r.observer != nil {
			r.observer.ObserveAction(action.Type, err)
		}

		switch {
		case err == nil:
			actionLogger.Info("Action applied")
		case errors.Is(err, ErrNotFound):
			actionLogger.WithError(err).Info("Target no longer exists, nothing to do")
			return result
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			actionLogger.WithError(err).Warn("Sweep interrupted")
			result.failed = true
			return result
		default:
			actionLogger.WithError(err).Error("Action failed")
			result.failed = true
			continue
		}

		result.applied = append(result.applied, action.String())
		switch action.Type {
		case ActionApplyLabel:
			result.staled = true
		case ActionClose:
			closed = true
			result.closed = true
		case ActionDeleteBranch:
			result.branchDeleted = true
		}
	}

	return result
}

func (r *Runner) do(ctx context.Context, entity Entity, action Action, logger *logrus.Entry) error {
	return retry.Do(ctx, r.retry, IsTransient, logger, func() error {
		switch action.Type {
		case ActionApplyLabel:
			return r.platform.ApplyLabel(ctx, entity, action.Label)
		case ActionPostComment:
			return r.platform.PostComment(ctx, entity, action.Body)
		case ActionClose:
			return r.platform.Close(ctx, entity)
		case ActionDeleteBranch:
			return r.platform.DeleteBranch(ctx, entity, action.Branch)
		default:
			return fmt.Errorf("unknown action %q", action.Type)
		}
	})
}
