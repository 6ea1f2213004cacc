package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hlsx/internal/ui"
)

// runTUI launches the now-playing view for controller until it quits or ctx is done.
func (r *Runner) runTUI(ctx context.Context, controller ui.Controller) error {
	model := ui.NewModel(ctx, controller)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
