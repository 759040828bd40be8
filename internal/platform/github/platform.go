// Package github exposes the open issues and pull requests of a single GitHub
// repository to the sweeper, using the Prow GitHub client.
package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
	prowgithub "sigs.k8s.io/prow/pkg/github"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

const (
	labeledEvent = "labeled"
	stateClosed  = "closed"
)

// commentSkew tolerates the stale comment being created slightly before the label event
const commentSkew = time.Minute

// Client is the subset of the Prow GitHub client the platform uses
type Client interface {
	FindIssuesWithOrg(org, query, sort string, asc bool) ([]prowgithub.Issue, error)
	ListIssueEvents(org, repo string, num int) ([]prowgithub.ListedIssueEvent, error)
	ListIssueComments(org, repo string, number int) ([]prowgithub.IssueComment, error)
	GetPullRequest(org, repo string, number int) (*prowgithub.PullRequest, error)
	AddLabel(org, repo string, number int, label string) error
	CreateComment(org, repo string, number int, comment string) error
	CloseIssue(org, repo string, number int) error
	ClosePullRequest(org, repo string, number int) error
	DeleteRef(org, repo, ref string) error
}

// Options tune how the platform reads entities
type Options struct {
	// StaleLabel is the marker label; entities carrying it get their marker time resolved
	StaleLabel string
	// StaleMessage is used to recognize the stale comment posted by earlier runs
	StaleMessage string
	// ResolveBranches looks up head branches of stale pull requests
	ResolveBranches bool
}

// Platform implements sweep.Platform for one GitHub repository
type Platform struct {
	client Client
	org    string
	repo   string
	opts   Options
	logger *logrus.Entry
}

// classify maps a raw client error to the sweeper's error taxonomy
func classify(err error) error {
	if prowgithub.IsNotFound(err) {
		return fmt.Errorf("%w: %w", sweep.ErrNotFound, err)
	}
	return sweep.Classify(err)
}

// ParseRepo splits "org/repo" into its parts
func ParseRepo(orgRepo string) (string, string, error) {
	parts := strings.Split(orgRepo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be in org/repo form, got %q", orgRepo)
	}
	return parts[0], parts[1], nil
}

// NewPlatform creates a platform for the given org/repo
func NewPlatform(client Client, orgRepo string, opts Options, logger *logrus.Entry) (*Platform, error) {
	org, repo, err := ParseRepo(orgRepo)
	if err != nil {
		return nil, err
	}
	if opts.StaleLabel == "" {
		opts.StaleLabel = sweep.DefaultStaleLabel
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Platform{
		client: client,
		org:    org,
		repo:   repo,
		opts:   opts,
		logger: logger.WithField("repo", orgRepo),
	}, nil
}

// Name returns the platform name used in logs and metrics
func (p *Platform) Name() string {
	return "github"
}

// ListEntities returns all open issues and pull requests of the repository
func (p *Platform) ListEntities(ctx context.Context) ([]sweep.Entity, error) {
	query := fmt.Sprintf("repo:%s/%s is:open", p.org, p.repo)
	p.logger.Infof("Searching for %q", query)

	issues, err := p.client.FindIssuesWithOrg(p.org, query, "updated", true)
	if err != nil {
		return nil, fmt.Errorf("cannot search issues: %w", classify(err))
	}

	entities := make([]sweep.Entity, 0, len(issues))
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entity, err := p.convertIssue(issue)
		if errors.Is(err, sweep.ErrNotFound) {
			p.logger.WithError(err).Infof("Issue #%d disappeared while listing, skipping it", issue.Number)
			continue
		}
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	p.logger.Infof("Found %d open issues and pull requests", len(entities))
	return entities, nil
}

func (p *Platform) convertIssue(issue prowgithub.Issue) (sweep.Entity, error) {
	labels := sets.New[string]()
	for _, label := range issue.Labels {
		labels.Insert(label.Name)
	}

	entity := sweep.Entity{
		ID:             fmt.Sprintf("%s/%s#%d", p.org, p.repo, issue.Number),
		Number:         issue.Number,
		Kind:           sweep.KindIssue,
		LastActivityAt: issue.UpdatedAt,
		Labels:         labels,
		HasStaleLabel:  labels.Has(p.opts.StaleLabel),
		Closed:         issue.State == stateClosed,
	}
	if issue.IsPullRequest() {
		entity.Kind = sweep.KindPullRequest
	}

	// Marker details are only needed for entities that are already stale
	if !entity.HasStaleLabel || entity.Closed {
		return entity, nil
	}

	markedAt, err := p.staleMarkedAt(issue.Number)
	if err != nil {
		return sweep.Entity{}, err
	}
	entity.StaleMarkedAt = markedAt

	commentedAt, err := p.staleCommentedAt(issue.Number, markedAt)
	if err != nil {
		return sweep.Entity{}, err
	}
	if !commentedAt.IsZero() {
		entity.HasStaleComment = true
		if entity.StaleMarkedAt.IsZero() {
			entity.StaleMarkedAt = commentedAt
		}
	}

	if entity.IsPullRequest() && p.opts.ResolveBranches {
		branch, err := p.headBranch(issue.Number)
		if err != nil {
			return sweep.Entity{}, err
		}
		entity.AssociatedBranch = branch
	}

	return entity, nil
}

// staleMarkedAt returns the time of the most recent application of the stale label
func (p *Platform) staleMarkedAt(number int) (time.Time, error) {
	events, err := p.client.ListIssueEvents(p.org, p.repo, number)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot list events of #%d: %w", number, classify(err))
	}

	var markedAt time.Time
	for _, event := range events {
		if string(event.Event) != labeledEvent || event.Label.Name != p.opts.StaleLabel {
			continue
		}
		if event.CreatedAt.After(markedAt) {
			markedAt = event.CreatedAt
		}
	}
	return markedAt, nil
}

// staleCommentedAt returns the time of the latest stale comment not older than the marker
func (p *Platform) staleCommentedAt(number int, markedAt time.Time) (time.Time, error) {
	if p.opts.StaleMessage == "" {
		return time.Time{}, nil
	}

	comments, err := p.client.ListIssueComments(p.org, p.repo, number)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot list comments of #%d: %w", number, classify(err))
	}

	message := strings.TrimSpace(p.opts.StaleMessage)
	var commentedAt time.Time
	for _, comment := range comments {
		if strings.TrimSpace(comment.Body) != message {
			continue
		}
		if !markedAt.IsZero() && comment.CreatedAt.Before(markedAt.Add(-commentSkew)) {
			continue
		}
		if comment.CreatedAt.After(commentedAt) {
			commentedAt = comment.CreatedAt
		}
	}
	return commentedAt, nil
}

// headBranch returns the head branch of a pull request if it lives in the swept repository
func (p *Platform) headBranch(number int) (string, error) {
	pr, err := p.client.GetPullRequest(p.org, p.repo, number)
	if err != nil {
		return "", fmt.Errorf("cannot get pull request #%d: %w", number, classify(err))
	}

	head := pr.Head.Repo
	if !strings.EqualFold(head.Owner.Login, p.org) || !strings.EqualFold(head.Name, p.repo) {
		p.logger.Debugf("Pull request #%d comes from %s/%s, not touching its branch", number, head.Owner.Login, head.Name)
		return "", nil
	}
	if pr.Head.Ref == pr.Base.Repo.DefaultBranch {
		return "", nil
	}
	return pr.Head.Ref, nil
}

// ApplyLabel adds a label to the issue or pull request
func (p *Platform) ApplyLabel(_ context.Context, entity sweep.Entity, label string) error {
	if err := p.client.AddLabel(p.org, p.repo, entity.Number, label); err != nil {
		return fmt.Errorf("cannot add label %q to %s: %w", label, entity.ID, classify(err))
	}
	return nil
}

// PostComment comments on the issue or pull request
func (p *Platform) PostComment(_ context.Context, entity sweep.Entity, body string) error {
	if err := p.client.CreateComment(p.org, p.repo, entity.Number, body); err != nil {
		return fmt.Errorf("cannot comment on %s: %w", entity.ID, classify(err))
	}
	return nil
}

// Close closes the issue or pull request
func (p *Platform) Close(_ context.Context, entity sweep.Entity) error {
	var err error
	if entity.IsPullRequest() {
		err = p.client.ClosePullRequest(p.org, p.repo, entity.Number)
	} else {
		err = p.client.CloseIssue(p.org, p.repo, entity.Number)
	}
	if err != nil {
		return fmt.Errorf("cannot close %s: %w", entity.ID, classify(err))
	}
	return nil
}

// DeleteBranch removes the head branch of a closed pull request
func (p *Platform) DeleteBranch(_ context.Context, entity sweep.Entity, branch string) error {
	if err := p.client.DeleteRef(p.org, p.repo, "heads/"+branch); err != nil {
		return fmt.Errorf("cannot delete branch %q of %s: %w", branch, entity.ID, classify(err))
	}
	return nil
}
