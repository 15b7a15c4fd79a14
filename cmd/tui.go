package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/desertthunder/rdex/internal/tasks"
	"github.com/desertthunder/rdex/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive token dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Paths.Resolve("rdex-tui.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	var fetcher ui.DatasetFetcher
	if r.api != nil {
		fetcher = tasks.NewFetcher(r.api, r.snapshots, fileLogger)
	}
	opts := tasks.BulkFetchOpts{Workers: r.config.API.Workers, RateLimit: r.config.API.RateLimit}

	model := ui.NewModel(ctx, r.tokens, fetcher, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive token dashboard",
		Action:  r.TUI,
	}
}
