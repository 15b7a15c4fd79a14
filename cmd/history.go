package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

func criteria(cmd *cli.Command) models.Criteria {
	c := models.Criteria{
		Failed: cmd.Bool("failed"),
		Limit:  int(cmd.Int("limit")),
	}
	if since := cmd.Duration("since"); since > 0 {
		c.Since = time.Now().Add(-since)
	}
	return c
}

func (r *Runner) requireHistory() error {
	if r.calls == nil || r.results == nil {
		return fmt.Errorf("%w: history database not available (run 'rdex setup init')", shared.ErrServiceUnavailable)
	}
	return nil
}

// HistoryCalls prints recorded API calls, newest first.
func (r *Runner) HistoryCalls(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireHistory(); err != nil {
		return err
	}
	c := criteria(cmd)
	c.Host = cmd.String("host")

	calls, err := r.calls.List(c)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(calls, true)
	}
	if len(calls) == 0 {
		return r.writePlain("No API calls recorded\n")
	}

	for _, call := range calls {
		mark := "✓"
		if !call.Success {
			mark = "✗"
		}
		r.writePlain("%s %s %-6s %3d %6dms %s\n",
			mark, call.Created.Local().Format(time.DateTime), call.Method, call.Status, call.Elapsed.Milliseconds(), call.URL)
		if call.ErrorMessage != "" {
			r.writePlain("    %s\n", call.ErrorMessage)
		}
	}
	return nil
}

// HistoryAI prints recorded AI results, newest first.
func (r *Runner) HistoryAI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireHistory(); err != nil {
		return err
	}
	c := criteria(cmd)
	c.Provider = cmd.String("provider")

	results, err := r.results.List(c)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	if len(results) == 0 {
		return r.writePlain("No AI results recorded\n")
	}

	for _, res := range results {
		mark := "✓"
		if !res.Success {
			mark = "✗"
		}
		label := res.Provider + "/" + res.Model
		if res.Template != "" {
			label += " [" + res.Template + "]"
		}
		r.writePlain("%s %s %s %dms\n", mark, res.Created.Local().Format(time.DateTime), label, res.ResponseTime.Milliseconds())
		if res.ErrorMessage != "" {
			r.writePlain("    %s\n", res.ErrorMessage)
		}
	}
	return nil
}

// HistoryClear deletes recorded history. With neither flag both logs are cleared.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireHistory(); err != nil {
		return err
	}
	onlyCalls, onlyAI := cmd.Bool("calls"), cmd.Bool("ai")
	both := !onlyCalls && !onlyAI

	var errs []error
	if both || onlyCalls {
		n, err := r.calls.Clear()
		if err != nil {
			errs = append(errs, err)
		} else {
			r.writePlain("✓ Removed %d API call records\n", n)
		}
	}
	if both || onlyAI {
		n, err := r.results.Clear()
		if err != nil {
			errs = append(errs, err)
		} else {
			r.writePlain("✓ Removed %d AI result records\n", n)
		}
	}
	return errors.Join(errs...)
}
