package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/rdex/internal/ai"
	"github.com/desertthunder/rdex/internal/formatter"
	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/repositories"
	"github.com/desertthunder/rdex/internal/services"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/desertthunder/rdex/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DatasetsList lists datasets, optionally filtered by search words.
func (r *Runner) DatasetsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}

	var resp *services.Response
	var err error
	if words := cmd.String("search"); words != "" {
		resp, err = r.api.SearchDatasets(ctx, words)
	} else {
		resp, err = r.api.ListDatasets(ctx, services.ListOptions{
			Limit:  int(cmd.Int("limit")),
			Offset: int(cmd.Int("offset")),
		})
	}
	if err != nil {
		return err
	}

	if cmd.Bool("save") {
		if err := r.snapshots.SaveList(repositories.ListDatasets, resp.Body); err != nil {
			return err
		}
		r.logger.Info("dataset list saved", "path", r.snapshots.ListPath(repositories.ListDatasets))
	}
	if cmd.Bool("json") {
		return r.writeRaw(resp.Body, false)
	}

	doc, err := resp.Document()
	if err != nil {
		return err
	}
	rows, err := formatter.DatasetRows(doc)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return r.writePlain("No datasets found\n")
	}

	out, err := formatter.ExportToText(rows)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if total, ok := doc.ResultCount(); ok && total > len(rows) {
		r.writePlainln("Showing %d of %d datasets (use --limit/--offset)", len(rows), total)
	}
	return nil
}

// loadDataset returns a dataset document from the snapshot cache when cached is set, otherwise
// from the API, saving the fresh snapshot.
func (r *Runner) loadDataset(ctx context.Context, id string, cached bool) (*models.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: dataset id", shared.ErrMissingArgument)
	}

	var body []byte
	if cached {
		var err error
		if body, err = r.snapshots.Load(repositories.KindDatasets, id); err != nil {
			return nil, err
		}
	} else {
		if err := r.requireAPI(); err != nil {
			return nil, err
		}
		resp, err := r.api.GetDataset(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := r.snapshots.Save(repositories.KindDatasets, id, resp.Body); err != nil {
			r.logger.Warn("failed to save dataset snapshot", "id", id, "error", err)
		}
		body = resp.Body
	}
	return models.ParseDocument(body)
}

// DatasetsShow prints one dataset's key fields, or the full document with --json.
func (r *Runner) DatasetsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	doc, err := r.loadDataset(ctx, id, cmd.Bool("cached"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(doc, true)
	}

	values, err := ai.DatasetContext(doc)
	if err != nil {
		return err
	}
	r.writePlainHeader(values["name"])
	r.writePlain("ID:           %s\n", id)
	r.writePlain("Grant number: %s\n", values["grant_number"])
	r.writePlain("Subject:      %s\n", values["subject_title"])
	r.writePlain("Type:         %s\n", values["dataset_type"])
	r.writePlain("Template:     %s\n", values["template_name"])
	r.writePlain("Instruments:  %s\n", values["instruments"])
	if d := strings.TrimSpace(values["description"]); d != "" {
		r.writePlainln("%s", d)
	}
	return nil
}

// DatasetsFetch caches dataset details concurrently, printing progress as it goes.
func (r *Runner) DatasetsFetch(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	fetcher := tasks.NewFetcher(r.api, r.snapshots, r.logger)

	if cmd.Bool("basics") {
		res, err := fetcher.FetchBasics(ctx, nil)
		if err != nil {
			return err
		}
		r.writePlain("✓ Collections cached: %d/%d\n", res.Fetched, res.Total)
		for _, f := range res.Failures {
			r.writePlain("  ✗ %s: %v\n", f.ID, f.Err)
		}
	}

	opts := tasks.BulkFetchOpts{
		Workers:     int(cmd.Int("workers")),
		RateLimit:   cmd.Float("rate"),
		WithEntries: cmd.Bool("entries"),
		Force:       cmd.Bool("force"),
	}
	if opts.Workers == 0 {
		opts.Workers = r.config.API.Workers
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = r.config.API.RateLimit
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Phase == tasks.FetchDetail {
				r.writePlain("[%d/%d] %s\n", update.Current, update.Total, update.Message)
			} else {
				r.logger.Info(update.Message, "phase", update.Phase)
			}
		}
	}()

	res, err := fetcher.FetchDatasets(ctx, progress, cmd.StringArgs("ids"), opts)
	close(progress)
	<-done
	if res == nil {
		return err
	}

	r.writePlainln("✓ Fetched: %d  Skipped: %d  Failed: %d  (of %d)", res.Fetched, res.Skipped, res.Failed, res.Total)
	r.writePlain("Snapshots: %s\n", r.snapshots.Dir())
	if err != nil {
		return err
	}
	return res.Err()
}

// DatasetsExport writes the dataset listing as a file.
func (r *Runner) DatasetsExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if format == "md" {
		format = formatter.FormatMarkdown
	}

	var body []byte
	if cmd.Bool("cached") {
		var err error
		if body, err = r.snapshots.LoadList(repositories.ListDatasets); err != nil {
			return err
		}
	} else {
		if err := r.requireAPI(); err != nil {
			return err
		}
		resp, err := r.api.ListDatasets(ctx, services.ListOptions{})
		if err != nil {
			return err
		}
		body = resp.Body
	}

	doc, err := models.ParseDocument(body)
	if err != nil {
		return err
	}
	rows, err := formatter.DatasetRows(doc)
	if err != nil {
		return err
	}

	dir := cmd.String("output")
	if dir == "" {
		dir = filepath.Join(r.config.Paths.Output(), "exports")
	}
	path, err := formatter.WriteExport(dir, format, cmd.String("title"), rows)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Exported %d datasets to %s\n", len(rows), path)
}

// DatasetsOpen opens a dataset page on the RDE site.
func (r *Runner) DatasetsOpen(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: dataset id", shared.ErrMissingArgument)
	}
	origin := strings.TrimRight(r.config.API.SiteOrigin, "/")
	if origin == "" {
		origin = services.DefaultSiteOrigin
	}
	target := origin + "/rde/datasets/" + id
	if err := shared.OpenBrowser(target); err != nil {
		r.writePlain("Open this URL in your browser:\n%s\n", target)
		return nil
	}
	return r.writePlain("Opened %s\n", target)
}
