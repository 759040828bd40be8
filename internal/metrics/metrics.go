// Package metrics reports sweep runs as Prometheus metrics. The sweeper is a
// short-lived batch job, so metrics are pushed to a Pushgateway instead of scraped.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

const (
	namespace = "stale_sweeper"

	// JobName is the Pushgateway job the metrics are pushed under
	JobName = "stale_sweeper"

	resultSuccess          = "success"
	resultNotFound         = "not_found"
	resultPermissionDenied = "permission_denied"
	resultTransient        = "transient"
	resultError            = "error"
)

// Metrics implements sweep.Observer and records run summaries
type Metrics struct {
	registry *prometheus.Registry

	entities        *prometheus.CounterVec
	actions         *prometheus.CounterVec
	lastRun         *prometheus.GaugeVec
	lastRunDuration prometheus.Gauge
	lastRunTime     prometheus.Gauge
	lastRunSuccess  prometheus.Gauge
}

// New creates metrics registered in a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_total",
				Help:      "Number of evaluated entities by their state",
			},
			[]string{"state"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Number of executed actions by type and result",
			},
			[]string{"action", "result"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_entities",
				Help:      "Entity counts of the last run by outcome",
			},
			[]string{"outcome"},
		),
		lastRunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_duration_seconds",
				Help:      "Duration of the last run",
			},
		),
		lastRunTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
		lastRunSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_success",
				Help:      "1 if the last run completed without failures, 0 otherwise",
			},
		),
	}

	m.registry.MustRegister(
		m.entities,
		m.actions,
		m.lastRun,
		m.lastRunDuration,
		m.lastRunTime,
		m.lastRunSuccess,
	)

	return m
}

// ObserveEntity counts an evaluated entity
func (m *Metrics) ObserveEntity(state sweep.State) {
	m.entities.WithLabelValues(string(state)).Inc()
}

// ObserveAction counts an executed action
func (m *Metrics) ObserveAction(action sweep.ActionType, err error) {
	m.actions.WithLabelValues(string(action), result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, sweep.ErrNotFound):
		return resultNotFound
	case errors.Is(err, sweep.ErrPermission):
		return resultPermissionDenied
	case errors.Is(err, sweep.ErrTransient):
		return resultTransient
	default:
		return resultError
	}
}

// RecordSummary sets the last-run gauges
func (m *Metrics) RecordSummary(summary sweep.Summary, runErr error) {
	m.lastRun.WithLabelValues("evaluated").Set(float64(summary.Evaluated))
	m.lastRun.WithLabelValues("staled").Set(float64(summary.Staled))
	m.lastRun.WithLabelValues("closed").Set(float64(summary.Closed))
	m.lastRun.WithLabelValues("branches_deleted").Set(float64(summary.BranchesDeleted))
	m.lastRun.WithLabelValues("failed").Set(float64(summary.Failed))
	m.lastRun.WithLabelValues("skipped").Set(float64(summary.Skipped))

	m.lastRunDuration.Set(summary.Finished.Sub(summary.Started).Seconds())
	m.lastRunTime.Set(float64(summary.Finished.Unix()))
	if runErr == nil && summary.Failed == 0 {
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}
}

// Push sends the metrics to a Pushgateway, grouped by platform and target
func (m *Metrics) Push(ctx context.Context, url, platform, target string) error {
	pusher := push.New(url, JobName).
		Gatherer(m.registry).
		Grouping("platform", platform).
		Grouping("target", target)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
