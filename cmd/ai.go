package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/ai"
	"github.com/desertthunder/rdex/internal/repositories"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

// AIProviders lists providers, optionally sending a test prompt to each enabled one.
func (r *Runner) AIProviders(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAI(); err != nil {
		return err
	}
	providers := r.ai.Providers()

	results := map[string]*ai.Result{}
	if cmd.Bool("test") {
		for _, p := range providers {
			if !p.Enabled {
				continue
			}
			res, err := r.ai.TestConnection(ctx, p.Name)
			if res == nil {
				res = &ai.Result{Provider: p.Name, Error: err.Error()}
			}
			results[p.Name] = res
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"providers": providers, "tests": results}, true)
	}

	r.writePlainHeader("AI providers")
	for _, p := range providers {
		state := "disabled"
		if p.Enabled {
			state = "enabled"
		}
		r.writePlain("%s (%s)\n", p.Name, state)
		r.writePlain("  default: %s\n", p.DefaultModel)
		if len(p.Models) > 0 {
			r.writePlain("  models:  %s\n", strings.Join(p.Models, ", "))
		}
		if res, ok := results[p.Name]; ok {
			if res.Success {
				r.writePlain("  ✓ connected in %s\n", res.ResponseTime.Round(time.Millisecond))
			} else {
				r.writePlain("  ✗ %s\n", res.Error)
			}
		}
	}
	return nil
}

// AIAsk sends a prompt given as arguments or read from --file.
func (r *Runner) AIAsk(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAI(); err != nil {
		return err
	}

	prompt := strings.Join(cmd.StringArgs("prompt"), " ")
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read prompt file: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt", shared.ErrMissingArgument)
	}

	res, err := r.ai.Send(ctx, prompt, cmd.String("provider"), cmd.String("model"))
	return r.writeAIResult(cmd, res, err)
}

// AIRender renders a named template. Values come from --dataset and then --set, which wins.
func (r *Runner) AIRender(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("templates")
	if path == "" {
		path = r.config.Paths.Resolve("prompts.toml")
	}
	templates, err := ai.LoadTemplates(path)
	if err != nil {
		return err
	}

	if cmd.Bool("list") {
		for _, name := range slices.Sorted(maps.Keys(templates)) {
			t := templates[name]
			r.writePlain("%-24s %s\n", name, t.Description)
			r.writePlain("%-24s keys: %s\n", "", strings.Join(t.Keys, ", "))
		}
		return nil
	}

	name := cmd.StringArg("template")
	tpl, ok := templates[name]
	if !ok {
		return fmt.Errorf("%w: unknown template %q (use --list)", shared.ErrInvalidArgument, name)
	}

	values := map[string]string{}
	if id := cmd.String("dataset"); id != "" {
		doc, err := r.loadDataset(ctx, id, r.snapshots.Exists(repositories.KindDatasets, id))
		if err != nil {
			return err
		}
		if values, err = ai.DatasetContext(doc); err != nil {
			return err
		}
	}
	set, err := keyValues(cmd.StringSlice("set"))
	if err != nil {
		return err
	}
	maps.Copy(values, set)

	if !cmd.Bool("send") {
		prompt, err := tpl.Render(values)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", prompt)
	}

	if err := r.requireAI(); err != nil {
		return err
	}
	res, err := r.ai.SendTemplate(ctx, tpl, values, cmd.String("provider"), cmd.String("model"))
	return r.writeAIResult(cmd, res, err)
}

func (r *Runner) writeAIResult(cmd *cli.Command, res *ai.Result, err error) error {
	if res == nil {
		return err
	}
	if cmd.Bool("json") {
		if werr := r.writeJSON(res, true); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		return err
	}

	r.writePlain("%s\n", strings.TrimSpace(res.Response))
	r.logger.Info("ai response", "provider", res.Provider, "model", res.Model, "elapsed", res.ResponseTime, "truncated", res.Truncated)
	return nil
}
