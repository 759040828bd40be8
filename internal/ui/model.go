// Package ui renders planned sweeps, either as a static table or as an
// interactive Bubble Tea program.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

const maxVisibleRows = 15

var columnTitles = []string{"Entity", "Kind", "State", "Last Activity", "Labels", "Actions"}

// stateColors are used for the selection background and the static table
var stateColors = map[sweep.State]lipgloss.Color{
	sweep.StateFresh:         lipgloss.Color("240"), // Grey
	sweep.StateStale:         lipgloss.Color("130"), // Dark yellow/orange
	sweep.StateDueForClosure: lipgloss.Color("52"),  // Dark red
	sweep.StateClosed:        lipgloss.Color("236"),
	sweep.StateIneligible:    lipgloss.Color("236"),
}

// formatAge formats how long ago something happened into a short string
func formatAge(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// PlanLoader computes the plans to display
type PlanLoader func(ctx context.Context) ([]sweep.Plan, error)

type plansMsg struct {
	plans []sweep.Plan
	err   error
}

// Model is the TUI model for browsing a planned sweep
type Model struct {
	ctx     context.Context
	load    PlanLoader
	target  string
	now     time.Time
	loaded  bool
	err     error
	plans   []sweep.Plan
	table   table.Model
	spinner spinner.Model
	width   int
	height  int
}

// NewModel creates a model that loads plans on start
func NewModel(ctx context.Context, target string, load PlanLoader, now time.Time) Model {
	t := table.New(
		table.WithColumns(columns(nil)),
		table.WithFocused(true),
		table.WithHeight(2),
	)

	m := Model{
		ctx:     ctx,
		load:    load,
		target:  target,
		now:     now,
		table:   t,
		spinner: spinner.New(spinner.WithSpinner(spinner.Points)),
	}
	m.updateSelectionStyle()
	return m
}

// Init starts loading the plans
func (m Model) Init() tea.Cmd {
	load, ctx := m.load, m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		plans, err := load(ctx)
		return plansMsg{plans: plans, err: err}
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case plansMsg:
		m.loaded = true
		m.err = msg.err
		m.setPlans(msg.plans)
		return m, nil
	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateTableSize()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	m.updateSelectionStyle()

	return m, cmd
}

// View renders the model
func (m Model) View() string {
	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)
	s.WriteString(headerStyle.Render(fmt.Sprintf("Planned sweep: %s", m.target)))
	s.WriteString("\n")

	if !m.loaded {
		s.WriteString(m.spinner.View())
		s.WriteString(" Listing entities...\n")
		return s.String()
	}
	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		s.WriteString(errStyle.Render(fmt.Sprintf("Failed to plan the sweep: %v", m.err)))
		s.WriteString("\n")
		return s.String()
	}

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("33")).
		MarginBottom(1)
	s.WriteString(summaryStyle.Render(Summarize(m.plans)))
	s.WriteString("\n")

	s.WriteString(m.table.View())
	s.WriteString("\n")

	if len(m.plans) > maxVisibleRows {
		scrollStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
		s.WriteString(scrollStyle.Render(fmt.Sprintf("Showing %d of %d items - use arrow keys to scroll", maxVisibleRows, len(m.plans))))
		s.WriteString("\n")
	}

	s.WriteString(m.renderSelected())

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginTop(1)
	s.WriteString(helpStyle.Render("Press 'q' to quit, arrow keys to navigate"))

	return s.String()
}

// setPlans shows actionable entities first, then the rest by ID
func (m *Model) setPlans(plans []sweep.Plan) {
	m.plans = append([]sweep.Plan{}, plans...)
	sort.SliceStable(m.plans, func(i, j int) bool {
		if (len(m.plans[i].Actions) > 0) != (len(m.plans[j].Actions) > 0) {
			return len(m.plans[i].Actions) > 0
		}
		return m.plans[i].Entity.ID < m.plans[j].Entity.ID
	})

	rows := make([]table.Row, 0, len(m.plans))
	for _, plan := range m.plans {
		rows = append(rows, table.Row(planRow(plan, m.now)))
	}
	m.table.SetColumns(columns(m.plans))
	m.table.SetRows(rows)
	m.updateTableSize()
	m.updateSelectionStyle()
}

func (m *Model) selected() (sweep.Plan, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.plans) {
		return sweep.Plan{}, false
	}
	return m.plans[cursor], true
}

// renderSelected shows the planned actions of the selected entity in full
func (m *Model) renderSelected() string {
	plan, ok := m.selected()
	if !ok {
		return ""
	}

	var s strings.Builder
	stateStyle := lipgloss.NewStyle().Foreground(stateColors[plan.State]).Bold(true)
	s.WriteString(stateStyle.Render(strings.ToUpper(string(plan.State))))
	s.WriteString("\n")
	for _, action := range plan.Actions {
		s.WriteString(fmt.Sprintf("  • %s", action))
		if action.Body != "" {
			s.WriteString(fmt.Sprintf(": %q", action.Body))
		}
		s.WriteString("\n")
	}
	return s.String()
}

// updateTableSize updates the table size based on terminal dimensions
func (m *Model) updateTableSize() {
	if m.height <= 0 {
		return
	}
	// header row plus at least one data row
	m.table.SetHeight(max(min(len(m.plans), maxVisibleRows), 1) + 1)
	if m.width > 0 {
		m.table.SetWidth(m.width)
	}
}

// updateSelectionStyle colors the selection by the selected entity's state
func (m *Model) updateSelectionStyle() {
	background := lipgloss.Color("240")
	if plan, ok := m.selected(); ok {
		background = stateColors[plan.State]
	}

	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(background).
		Bold(true)
	m.table.SetStyles(styles)
}

func planRow(plan sweep.Plan, now time.Time) []string {
	actions := make([]string, 0, len(plan.Actions))
	for _, action := range plan.Actions {
		actions = append(actions, action.String())
	}
	lastActivity := "-"
	if !plan.Entity.LastActivityAt.IsZero() {
		lastActivity = formatAge(now.Sub(plan.Entity.LastActivityAt)) + " ago"
	}
	var labels []string
	if plan.Entity.Labels != nil {
		labels = sortedLabels(plan.Entity)
	}

	return []string{
		plan.Entity.ID,
		string(plan.Entity.Kind),
		string(plan.State),
		lastActivity,
		strings.Join(labels, ", "),
		strings.Join(actions, ", "),
	}
}

func sortedLabels(entity sweep.Entity) []string {
	labels := entity.Labels.UnsortedList()
	sort.Strings(labels)
	return labels
}

// columns sizes every column to its widest cell
func columns(plans []sweep.Plan) []table.Column {
	widths := make([]int, len(columnTitles))
	for i, title := range columnTitles {
		widths[i] = len(title)
	}
	for _, plan := range plans {
		for i, cell := range planRow(plan, time.Time{}) {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	// ages are rendered against the real clock, leave room for them
	widths[3] = max(widths[3], len("9999d ago"))

	result := make([]table.Column, len(columnTitles))
	for i, title := range columnTitles {
		result[i] = table.Column{Title: title, Width: widths[i] + 2}
	}
	return result
}

// Summarize counts plans by state and pending actions
func Summarize(plans []sweep.Plan) string {
	counts := map[sweep.State]int{}
	actions := 0
	for _, plan := range plans {
		counts[plan.State]++
		actions += len(plan.Actions)
	}
	return fmt.Sprintf("%d entities: %d fresh, %d to mark stale or already stale, %d due for closure, %d ineligible, %d closed; %d actions planned",
		len(plans), counts[sweep.StateFresh], counts[sweep.StateStale], counts[sweep.StateDueForClosure],
		counts[sweep.StateIneligible], counts[sweep.StateClosed], actions)
}
