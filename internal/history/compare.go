package history

import (
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

// Compare describes how the stale entities changed from the previous run to the current one
func Compare(previous, current Report) Changes {
	previousStale := staleEntities(previous)
	currentEntities := make(map[string]EntityRecord, len(current.Entities))
	for _, entity := range current.Entities {
		currentEntities[entity.ID] = entity
	}

	var changes Changes
	for _, entity := range current.Entities {
		switch {
		case applied(entity, sweep.ActionClose):
			changes.Closed = append(changes.Closed, entity.ID)
		case applied(entity, sweep.ActionApplyLabel):
			changes.NewlyStale = append(changes.NewlyStale, entity.ID)
		}
	}

	for id := range previousStale {
		entity, listed := currentEntities[id]
		switch {
		case !listed:
			changes.Gone = append(changes.Gone, id)
		case entity.State == string(sweep.StateFresh):
			changes.Unstaled = append(changes.Unstaled, id)
		}
	}

	sort.Strings(changes.Gone)
	sort.Strings(changes.Unstaled)
	return changes
}

// HasChanges returns true if anything moved between the runs
func (c Changes) HasChanges() bool {
	return len(c.NewlyStale) > 0 || len(c.Closed) > 0 || len(c.Unstaled) > 0 || len(c.Gone) > 0
}

// staleEntities are open entities that carried the stale label after the run
func staleEntities(report Report) sets.Set[string] {
	stale := sets.New[string]()
	for _, entity := range report.Entities {
		if entity.Labeled && !applied(entity, sweep.ActionClose) {
			stale.Insert(entity.ID)
		}
	}
	return stale
}

func applied(entity EntityRecord, action sweep.ActionType) bool {
	for _, done := range entity.Applied {
		if done == string(action) || strings.HasPrefix(done, string(action)+"(") {
			return true
		}
	}
	return false
}
