// Package sweep classifies issues and pull requests as fresh, stale or due for
// closure and carries out the resulting mutations against a Platform.
//
// The sweeper keeps no state of its own. Whether an entity is already stale is
// read from the stale label on every run, so a run can be interrupted at any
// point and the next one picks up where it left off.
package sweep

import (
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Sweep evaluates all entities and returns the actions to take, in entity order
func Sweep(entities []Entity, cfg Config, now time.Time) []Action {
	var actions []Action
	for _, entity := range entities {
		actions = append(actions, Evaluate(entity, cfg, now).Actions...)
	}
	return actions
}

// Evaluate classifies a single entity and computes its action batch. The result
// depends only on the entity itself, never on other entities.
func Evaluate(entity Entity, cfg Config, now time.Time) Plan {
	plan := Plan{Entity: entity, State: StateFresh}

	if entity.Closed {
		plan.State = StateClosed
		return plan
	}

	if !eligible(entity, cfg) {
		plan.State = StateIneligible
		return plan
	}

	action := func(t ActionType) Action {
		return Action{EntityID: entity.ID, Type: t}
	}

	switch {
	case !entity.HasStaleLabel:
		if !elapsed(entity.LastActivityAt, now, cfg.DaysBeforeStale) {
			return plan
		}
		label := action(ActionApplyLabel)
		label.Label = cfg.staleLabel()
		comment := action(ActionPostComment)
		comment.Body = cfg.StaleMessage
		plan.State = StateStale
		plan.Actions = []Action{label, comment}

	case elapsed(entity.markedAt(), now, cfg.DaysBeforeClose):
		comment := action(ActionPostComment)
		comment.Body = cfg.CloseMessage
		plan.State = StateDueForClosure
		plan.Actions = []Action{comment, action(ActionClose)}
		if entity.IsPullRequest() && cfg.DeleteBranchOnClose && entity.AssociatedBranch != "" {
			deleteBranch := action(ActionDeleteBranch)
			deleteBranch.Branch = entity.AssociatedBranch
			plan.Actions = append(plan.Actions, deleteBranch)
		}

	case !entity.HasStaleComment:
		// A previous run labeled the entity but did not get to comment
		comment := action(ActionPostComment)
		comment.Body = cfg.StaleMessage
		plan.State = StateStale
		plan.Actions = []Action{comment}

	default:
		plan.State = StateStale
	}

	return plan
}

// eligible applies the exempt and required label rules
func eligible(entity Entity, cfg Config) bool {
	labels := entity.Labels
	if labels == nil {
		labels = sets.New[string]()
	}

	if labels.HasAny(cfg.ExemptLabels...) {
		return false
	}

	if len(cfg.RequiredAnyOfLabels) == 0 {
		return true
	}
	if entity.IsPullRequest() && !cfg.ApplyLabelFilterToPRs {
		return true
	}
	return labels.HasAny(cfg.RequiredAnyOfLabels...)
}

// elapsed reports whether at least days whole days passed since the given time.
// Days are counted on the UTC calendar so that any threshold is representable.
func elapsed(since, now time.Time, days int) bool {
	if days <= 0 {
		return true
	}
	return !now.Before(since.UTC().AddDate(0, 0, days))
}

// operations returns the number of mutating calls a plan needs
func (p Plan) operations() int {
	return len(p.Actions)
}
