package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/lbx-tui.log"

// TUI launches the interactive playlist picker.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.engine == nil {
		return fmt.Errorf("%w: sync engine not initialized", shared.ErrServiceUnavailable)
	}
	if len(r.config.Playlists) == 0 {
		return fmt.Errorf("%w: no [[playlists]] configured", shared.ErrMissingConfig)
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	if err := r.redirectLogs(); err != nil {
		return err
	}

	_, err := r.runProgram(ui.NewModel(ctx, r.engine, r.config.Playlists))
	return err
}

// syncTUI syncs a single playlist with a progress view instead of line output.
func (r *Runner) syncTUI(ctx context.Context, pl shared.PlaylistConfig) error {
	if err := r.redirectLogs(); err != nil {
		return err
	}

	model, err := r.runProgram(ui.NewModel(ctx, r.engine, nil).Start(pl))
	if err != nil {
		return err
	}
	_, err = model.Result()
	return err
}

// redirectLogs sends logging to a file so it does not interfere with rendering
func (r *Runner) redirectLogs() error {
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	return nil
}

func (r *Runner) runProgram(model *ui.Model) (*ui.Model, error) {
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	if m, ok := final.(*ui.Model); ok {
		return m, nil
	}
	return model, nil
}
