// Package jira exposes the issues matched by a JQL query to the sweeper
package jira

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
	prowjira "sigs.k8s.io/prow/pkg/jira"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

const (
	// timeLayout is how Jira renders timestamps in comments and changelogs
	timeLayout = "2006-01-02T15:04:05.000-0700"

	doneCategory = "done"
	labelsField  = "labels"

	// DefaultCloseStatus is the status stale issues are moved to
	DefaultCloseStatus = "Closed"

	defaultPageSize = 100
)

var searchFields = []string{"labels", "updated", "comment", "status", "issuetype", "summary"}

// Client is the subset of the Prow Jira client the platform uses
type Client interface {
	SearchWithContext(ctx context.Context, jql string, options *jira.SearchOptions) ([]jira.Issue, *jira.Response, error)
	UpdateIssue(*jira.Issue) (*jira.Issue, error)
	AddComment(issueID string, comment *jira.Comment) (*jira.Comment, error)
	UpdateStatus(issueID, statusName string) error
	JiraURL() string
}

// Options tune how the platform reads and closes issues
type Options struct {
	StaleLabel   string
	StaleMessage string
	// CloseStatus is the workflow status closing transitions the issue to
	CloseStatus string
	PageSize    int
}

// Platform implements sweep.Platform for issues matched by a JQL query
type Platform struct {
	client Client
	jql    string
	opts   Options
	logger *logrus.Entry
}

// classify maps a raw client error to the sweeper's error taxonomy
func classify(err error) error {
	if prowjira.IsNotFound(err) {
		return fmt.Errorf("%w: %w", sweep.ErrNotFound, err)
	}
	if code := prowjira.JiraErrorStatusCode(err); code > 0 {
		return sweep.ClassifyStatus(code, err)
	}
	return sweep.Classify(err)
}

// NewPlatform creates a platform sweeping issues matched by jql
func NewPlatform(client Client, jql string, opts Options, logger *logrus.Entry) (*Platform, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, errors.New("JQL query must not be empty")
	}
	if opts.StaleLabel == "" {
		opts.StaleLabel = sweep.DefaultStaleLabel
	}
	if opts.CloseStatus == "" {
		opts.CloseStatus = DefaultCloseStatus
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Platform{
		client: client,
		jql:    jql,
		opts:   opts,
		logger: logger.WithField("jira", client.JiraURL()),
	}, nil
}

// Name returns the platform name used in logs and metrics
func (p *Platform) Name() string {
	return "jira"
}

// ListEntities pages through all issues matching the query
func (p *Platform) ListEntities(ctx context.Context) ([]sweep.Entity, error) {
	p.logger.Infof("Executing JQL query: %s", p.jql)

	var entities []sweep.Entity
	for startAt := 0; ; {
		options := &jira.SearchOptions{
			StartAt:    startAt,
			MaxResults: p.opts.PageSize,
			Fields:     searchFields,
			Expand:     "changelog",
		}
		issues, response, err := p.client.SearchWithContext(ctx, p.jql, options)
		if err != nil {
			return nil, fmt.Errorf("failed to execute JQL query: %w", classify(err))
		}

		for _, issue := range issues {
			entities = append(entities, p.convertIssue(issue))
		}

		startAt += len(issues)
		if len(issues) == 0 || response == nil || startAt >= response.Total {
			break
		}
	}

	p.logger.Infof("Query matched %d issues", len(entities))
	return entities, nil
}

func (p *Platform) convertIssue(issue jira.Issue) sweep.Entity {
	entity := sweep.Entity{
		ID:     issue.Key,
		Kind:   sweep.KindIssue,
		Labels: sets.New[string](),
	}
	fields := issue.Fields
	if fields == nil {
		return entity
	}

	entity.Labels.Insert(fields.Labels...)
	entity.HasStaleLabel = entity.Labels.Has(p.opts.StaleLabel)
	entity.LastActivityAt = time.Time(fields.Updated)
	if status := fields.Status; status != nil {
		entity.Closed = status.StatusCategory.Key == doneCategory || strings.EqualFold(status.Name, p.opts.CloseStatus)
	}

	if !entity.HasStaleLabel || entity.Closed {
		return entity
	}

	entity.StaleMarkedAt = p.labeledAt(issue)
	if commentedAt := p.staleCommentedAt(issue, entity.StaleMarkedAt); !commentedAt.IsZero() {
		entity.HasStaleComment = true
		if entity.StaleMarkedAt.IsZero() {
			entity.StaleMarkedAt = commentedAt
		}
	}
	return entity
}

// labeledAt finds the latest changelog entry that added the stale label
func (p *Platform) labeledAt(issue jira.Issue) time.Time {
	var labeledAt time.Time
	if issue.Changelog == nil {
		return labeledAt
	}
	for _, history := range issue.Changelog.Histories {
		for _, item := range history.Items {
			if item.Field != labelsField {
				continue
			}
			before := sets.New(strings.Fields(item.FromString)...)
			after := sets.New(strings.Fields(item.ToString)...)
			if before.Has(p.opts.StaleLabel) || !after.Has(p.opts.StaleLabel) {
				continue
			}
			created, err := time.Parse(timeLayout, history.Created)
			if err != nil {
				p.logger.WithError(err).Debugf("%s: cannot parse changelog timestamp", issue.Key)
				continue
			}
			if created.After(labeledAt) {
				labeledAt = created
			}
		}
	}
	return labeledAt
}

func (p *Platform) staleCommentedAt(issue jira.Issue, markedAt time.Time) time.Time {
	var commentedAt time.Time
	if p.opts.StaleMessage == "" || issue.Fields.Comments == nil {
		return commentedAt
	}

	message := strings.TrimSpace(p.opts.StaleMessage)
	for _, comment := range issue.Fields.Comments.Comments {
		if comment == nil || strings.TrimSpace(comment.Body) != message {
			continue
		}
		created, err := time.Parse(timeLayout, comment.Created)
		if err != nil {
			p.logger.WithError(err).Debugf("%s: cannot parse comment timestamp", issue.Key)
			continue
		}
		if !markedAt.IsZero() && created.Before(markedAt.Add(-time.Minute)) {
			continue
		}
		if created.After(commentedAt) {
			commentedAt = created
		}
	}
	return commentedAt
}

// ApplyLabel adds the label, keeping the labels the issue already has
func (p *Platform) ApplyLabel(_ context.Context, entity sweep.Entity, label string) error {
	labels := sets.New[string](label)
	if entity.Labels != nil {
		labels = entity.Labels.Clone().Insert(label)
	}
	if _, err := p.client.UpdateIssue(&jira.Issue{
		Key:    entity.ID,
		Fields: &jira.IssueFields{Labels: sets.List(labels)},
	}); err != nil {
		return fmt.Errorf("cannot add label %q to %s: %w", label, entity.ID, classify(err))
	}
	return nil
}

// PostComment comments on the issue
func (p *Platform) PostComment(_ context.Context, entity sweep.Entity, body string) error {
	if _, err := p.client.AddComment(entity.ID, &jira.Comment{Body: body}); err != nil {
		return fmt.Errorf("cannot comment on %s: %w", entity.ID, classify(err))
	}
	return nil
}

// Close transitions the issue to the close status
func (p *Platform) Close(_ context.Context, entity sweep.Entity) error {
	if err := p.client.UpdateStatus(entity.ID, p.opts.CloseStatus); err != nil {
		return fmt.Errorf("cannot move %s to %s: %w", entity.ID, p.opts.CloseStatus, classify(err))
	}
	return nil
}

// DeleteBranch does nothing: Jira issues have no branches
func (p *Platform) DeleteBranch(_ context.Context, entity sweep.Entity, branch string) error {
	p.logger.Debugf("%s: ignoring request to delete branch %q", entity.ID, branch)
	return nil
}
