package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/petr-muller/stale-sweeper/internal/ui"
)

var timeNow = time.Now

func browsePlan(ctx context.Context, target string, load ui.PlanLoader) error {
	model := ui.NewModel(ctx, target, load, timeNow())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("cannot run TUI: %w", err)
	}

	return nil
}
