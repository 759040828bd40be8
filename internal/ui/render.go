package ui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

// RenderPlans renders actionable plans as a static table for non-interactive output
func RenderPlans(plans []sweep.Plan, now time.Time) string {
	var rows [][]string
	var states []sweep.State
	for _, plan := range plans {
		if len(plan.Actions) == 0 {
			continue
		}
		rows = append(rows, planRow(plan, now))
		states = append(states, plan.State)
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(columnTitles...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(states) {
				return cellStyle.Foreground(stateColors[states[row]])
			}
			return cellStyle
		})

	return t.Render() + "\n" + Summarize(plans)
}
