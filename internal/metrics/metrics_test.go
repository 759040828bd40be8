package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

func TestObserveAction(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "success", expected: resultSuccess},
		{name: "not found", err: fmt.Errorf("%w: gone", sweep.ErrNotFound), expected: resultNotFound},
		{name: "permission", err: fmt.Errorf("%w: 403", sweep.ErrPermission), expected: resultPermissionDenied},
		{name: "transient", err: fmt.Errorf("%w: 502", sweep.ErrTransient), expected: resultTransient},
		{name: "other", err: errors.New("boom"), expected: resultError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			m.ObserveAction(sweep.ActionClose, tc.err)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("Close", tc.expected)))
			assert.Equal(t, 1, testutil.CollectAndCount(m.actions))
		})
	}
}

func TestObserveEntity(t *testing.T) {
	m := New()
	m.ObserveEntity(sweep.StateStale)
	m.ObserveEntity(sweep.StateStale)
	m.ObserveEntity(sweep.StateFresh)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.entities.WithLabelValues("Stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entities.WithLabelValues("Fresh")))
}

func TestRecordSummary(t *testing.T) {
	started := time.Date(2024, time.June, 15, 4, 0, 0, 0, time.UTC)
	summary := sweep.Summary{
		Started:   started,
		Finished:  started.Add(90 * time.Second),
		Evaluated: 10,
		Staled:    3,
		Closed:    2,
		Failed:    1,
	}

	m := New()
	m.RecordSummary(summary, nil)

	expected := `
# HELP stale_sweeper_last_run_entities Entity counts of the last run by outcome
# TYPE stale_sweeper_last_run_entities gauge
stale_sweeper_last_run_entities{outcome="branches_deleted"} 0
stale_sweeper_last_run_entities{outcome="closed"} 2
stale_sweeper_last_run_entities{outcome="evaluated"} 10
stale_sweeper_last_run_entities{outcome="failed"} 1
stale_sweeper_last_run_entities{outcome="skipped"} 0
stale_sweeper_last_run_entities{outcome="staled"} 3
`
	require.NoError(t, testutil.CollectAndCompare(m.lastRun, strings.NewReader(expected)))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.lastRunDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastRunSuccess), "a run with failures is not successful")

	summary.Failed = 0
	m.RecordSummary(summary, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastRunSuccess))

	m.RecordSummary(summary, context.DeadlineExceeded)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastRunSuccess))
}

func TestPush(t *testing.T) {
	var method, path, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m := New()
	m.ObserveEntity(sweep.StateStale)
	require.NoError(t, m.Push(context.Background(), server.URL, "github", "ota"))

	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/stale_sweeper/"), path)
	assert.Contains(t, path, "/platform/github")
	assert.Contains(t, path, "/target/ota")
	assert.NotEmpty(t, body)
}

func TestPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	assert.Error(t, New().Push(context.Background(), server.URL, "jira", "bugs"))
}
