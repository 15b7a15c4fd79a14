package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/repositories"
	"github.com/desertthunder/rdex/internal/services"
	"github.com/desertthunder/rdex/internal/shared"
)

// API is the subset of [services.Client] the fetcher drives.
type API interface {
	Self(ctx context.Context) (*services.Response, error)
	RootGroup(ctx context.Context) (*services.Response, error)
	Instruments(ctx context.Context, programID string) (*services.Response, error)
	DatasetTemplates(ctx context.Context, opts services.ListOptions) (*services.Response, error)
	Licenses(ctx context.Context) (*services.Response, error)
	ListDatasets(ctx context.Context, opts services.ListOptions) (*services.Response, error)
	GetDataset(ctx context.Context, id string) (*services.Response, error)
	DataEntries(ctx context.Context, datasetID string, opts services.ListOptions) (*services.Response, error)
}

// Snapshots is where fetched responses are cached.
type Snapshots interface {
	SaveList(name string, raw []byte) error
	Save(kind, id string, raw []byte) error
	Exists(kind, id string) bool
}

// Fetcher mirrors RDE resources into the snapshot cache.
type Fetcher struct {
	api       API
	snapshots Snapshots
	logger    *log.Logger
}

// NewFetcher creates a new Fetcher.
func NewFetcher(api API, snapshots Snapshots, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Fetcher{api: api, snapshots: snapshots, logger: logger.WithPrefix("fetch")}
}

// ItemFailure records one resource that could not be fetched.
type ItemFailure struct {
	ID  string
	Err error
}

// FetchResult summarizes a fetch run.
type FetchResult struct {
	Total    int
	Fetched  int
	Skipped  int
	Failed   int
	Failures []ItemFailure
}

// Err joins every item failure, nil when none failed.
func (r *FetchResult) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

type basicOperation struct {
	name    string
	message string
	fetch   func(ctx context.Context) (*services.Response, error)
}

// FetchBasics caches the account-level collections: self, root group, instruments, templates and
// licenses. A failing collection is recorded and the rest still run.
func (f *Fetcher) FetchBasics(ctx context.Context, prog chan<- ProgressUpdate) (*FetchResult, error) {
	ops := []basicOperation{
		{name: repositories.ListSelf, message: "Fetching user info...", fetch: f.api.Self},
		{name: repositories.ListSubgroups, message: "Fetching groups...", fetch: f.api.RootGroup},
		{name: repositories.ListInstruments, message: "Fetching instruments...", fetch: func(ctx context.Context) (*services.Response, error) {
			return f.api.Instruments(ctx, services.DefaultProgramID)
		}},
		{name: repositories.ListTemplates, message: "Fetching dataset templates...", fetch: func(ctx context.Context) (*services.Response, error) {
			return f.api.DatasetTemplates(ctx, services.ListOptions{})
		}},
		{name: repositories.ListLicenses, message: "Fetching licenses...", fetch: f.api.Licenses},
	}

	result := &FetchResult{Total: len(ops)}
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(prog, basicsUpdate(i+1, len(ops), op))

		resp, err := op.fetch(ctx)
		if err == nil {
			err = f.snapshots.SaveList(op.name, resp.Body)
		}
		if err != nil {
			f.logger.Warn("failed to fetch collection", "name", op.name, "err", err)
			result.Failed++
			result.Failures = append(result.Failures, ItemFailure{ID: op.name, Err: err})
			continue
		}
		result.Fetched++
	}
	sendProgress(prog, doneUpdate(result))
	return result, nil
}

// ListDatasets fetches the dataset list, caches it as dataset.json and returns the dataset ids.
func (f *Fetcher) ListDatasets(ctx context.Context, prog chan<- ProgressUpdate) ([]string, error) {
	sendProgress(prog, listingUpdate())

	resp, err := f.api.ListDatasets(ctx, services.ListOptions{})
	if err != nil {
		return nil, err
	}
	if err := f.snapshots.SaveList(repositories.ListDatasets, resp.Body); err != nil {
		return nil, err
	}
	doc, err := models.ParseDocument(resp.Body)
	if err != nil {
		return nil, err
	}
	datasets, err := doc.Resources()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		ids = append(ids, ds.ID)
	}
	sendProgress(prog, listedUpdate(len(ids)))
	return ids, nil
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
