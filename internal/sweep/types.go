package sweep

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	// DefaultStaleLabel is the marker label used when the configuration does not name one
	DefaultStaleLabel = "stale"
)

// Kind is the kind of a trackable entity
type Kind string

const (
	KindIssue       Kind = "Issue"
	KindPullRequest Kind = "PullRequest"
)

// Entity is an issue or pull request as seen by the sweeper. It is owned by the
// platform; the sweeper only reads it and requests mutations.
type Entity struct {
	// ID is a human-readable key, e.g. "org/repo#123" or "OCPBUGS-123"
	ID string
	// Number is the platform-native number for platforms that address entities by one
	Number int
	Kind   Kind

	LastActivityAt time.Time
	Labels         sets.Set[string]

	HasStaleLabel   bool
	HasStaleComment bool
	// StaleMarkedAt is when the stale label was applied; zero when the platform could not tell
	StaleMarkedAt time.Time

	Closed bool

	// AssociatedBranch is the head branch of a pull request, empty when unknown or not deletable
	AssociatedBranch string
}

// IsPullRequest returns true if the entity is a pull request
func (e Entity) IsPullRequest() bool {
	return e.Kind == KindPullRequest
}

// markedAt returns the moment the stale marker counts from
func (e Entity) markedAt() time.Time {
	if e.StaleMarkedAt.IsZero() {
		return e.LastActivityAt
	}
	return e.StaleMarkedAt
}

// Config holds the parameters of one sweep run. It is not modified during a run.
type Config struct {
	DaysBeforeStale int `yaml:"daysBeforeStale"`
	DaysBeforeClose int `yaml:"daysBeforeClose"`

	// RequiredAnyOfLabels restricts eligibility to entities carrying at least one of
	// these labels. Empty means every entity qualifies.
	RequiredAnyOfLabels []string `yaml:"requiredAnyOfLabels,omitempty"`
	// ApplyLabelFilterToPRs makes RequiredAnyOfLabels apply to pull requests as well.
	// When false, pull requests are eligible regardless of their labels.
	ApplyLabelFilterToPRs bool     `yaml:"applyLabelFilterToPRs,omitempty"`
	ExemptLabels          []string `yaml:"exemptLabels,omitempty"`

	StaleLabel   string `yaml:"staleLabel,omitempty"`
	StaleMessage string `yaml:"staleMessage"`
	CloseMessage string `yaml:"closeMessage"`

	DeleteBranchOnClose bool `yaml:"deleteBranchOnClose,omitempty"`

	// OperationsPerRun caps the number of mutating calls in one run, 0 means unlimited
	OperationsPerRun int `yaml:"operationsPerRun,omitempty"`
}

// Validate checks that the configuration can drive a sweep
func (c Config) Validate() error {
	if c.DaysBeforeStale < 0 {
		return fmt.Errorf("days before stale must not be negative, got %d", c.DaysBeforeStale)
	}
	if c.DaysBeforeClose <= 0 {
		return fmt.Errorf("days before close must be positive, got %d", c.DaysBeforeClose)
	}
	if c.StaleMessage == "" {
		return fmt.Errorf("stale message must not be empty")
	}
	if c.CloseMessage == "" {
		return fmt.Errorf("close message must not be empty")
	}
	if c.OperationsPerRun < 0 {
		return fmt.Errorf("operations per run must not be negative, got %d", c.OperationsPerRun)
	}
	if label := c.staleLabel(); sets.New(c.ExemptLabels...).Has(label) {
		return fmt.Errorf("stale label %q cannot also be exempt", label)
	}
	return nil
}

func (c Config) staleLabel() string {
	if c.StaleLabel == "" {
		return DefaultStaleLabel
	}
	return c.StaleLabel
}

// State is the classification of an entity within one sweep
type State string

const (
	StateFresh         State = "Fresh"
	StateStale         State = "Stale"
	StateDueForClosure State = "DueForClosure"
	StateClosed        State = "Closed"
	StateIneligible    State = "Ineligible"
)

// ActionType names a mutation the sweeper requests from the platform
type ActionType string

const (
	ActionApplyLabel   ActionType = "ApplyLabel"
	ActionPostComment  ActionType = "PostComment"
	ActionClose        ActionType = "Close"
	ActionDeleteBranch ActionType = "DeleteBranch"
)

// Action is a single requested mutation of one entity
type Action struct {
	EntityID string
	Type     ActionType
	Label    string
	Body     string
	Branch   string
}

func (a Action) String() string {
	switch a.Type {
	case ActionApplyLabel:
		return fmt.Sprintf("%s(%s)", a.Type, a.Label)
	case ActionDeleteBranch:
		return fmt.Sprintf("%s(%s)", a.Type, a.Branch)
	default:
		return string(a.Type)
	}
}

// Plan is the batch of actions computed for a single entity
type Plan struct {
	Entity  Entity
	State   State
	Actions []Action
}

// Summary aggregates the outcome of a run
type Summary struct {
	Platform        string
	Started         time.Time
	Finished        time.Time
	Evaluated       int
	Staled          int
	Closed          int
	BranchesDeleted int
	Failed          int
	Skipped         int
	FailedEntities  []string
	// Entities holds the per-entity outcomes ordered by ID
	Entities []EntityOutcome
}

// EntityOutcome records what a run did to a single entity
type EntityOutcome struct {
	ID    string
	State State
	// Applied lists the actions that succeeded, in order
	Applied []string
	// Labeled is set when the entity carries the stale label after the run
	Labeled bool
	Failed  bool
	Skipped bool
}

func (s Summary) String() string {
	return fmt.Sprintf("evaluated %d, staled %d, closed %d, deleted %d branches, failed %d, skipped %d",
		s.Evaluated, s.Staled, s.Closed, s.BranchesDeleted, s.Failed, s.Skipped)
}
