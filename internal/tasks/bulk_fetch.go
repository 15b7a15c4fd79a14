package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/rdex/internal/repositories"
	"github.com/desertthunder/rdex/internal/services"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 4
	MaxWorkers       = 10
	DefaultRateLimit = 5.0
)

// BulkFetchOpts contains configuration for bulk dataset fetches.
type BulkFetchOpts struct {
	Workers     int     // Concurrent workers (default: 4, max: 10)
	RateLimit   float64 // Requests per second across all workers (default: 5)
	WithEntries bool    // Also cache each dataset's data entries
	Force       bool    // Refetch datasets that already have a snapshot
}

func (o BulkFetchOpts) withDefaults() BulkFetchOpts {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Workers > MaxWorkers {
		o.Workers = MaxWorkers
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	return o
}

type detailResult struct {
	id      string
	skipped bool
	err     error
}

// FetchDatasets caches the detail of every dataset in ids, plus its data entries when requested.
// With no ids it lists the account's datasets first. One dataset failing never stops the others;
// failures are collected in the result. The returned error is non-nil only when the listing
// fails or ctx ends the run.
func (f *Fetcher) FetchDatasets(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkFetchOpts) (*FetchResult, error) {
	opts = opts.withDefaults()

	if len(ids) == 0 {
		listed, err := f.ListDatasets(ctx, prog)
		if err != nil {
			return nil, fmt.Errorf("failed to list datasets: %w", err)
		}
		ids = listed
	}

	result := &FetchResult{Total: len(ids)}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan string)
	results := make(chan detailResult, len(ids))

	var wg sync.WaitGroup
	for range opts.Workers {
		wg.Add(1)
		go f.detailWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		switch {
		case res.err != nil:
			result.Failed++
			result.Failures = append(result.Failures, ItemFailure{ID: res.id, Err: res.err})
			f.logger.Warn("failed to fetch dataset", "id", res.id, "err", res.err)
			sendProgress(prog, detailFailedUpdate(completed, len(ids), res.id, res.err))
		case res.skipped:
			result.Skipped++
			sendProgress(prog, detailCompletedUpdate(completed, len(ids), res.id, true))
		default:
			result.Fetched++
			sendProgress(prog, detailCompletedUpdate(completed, len(ids), res.id, false))
		}
	}

	sendProgress(prog, doneUpdate(result))
	f.logger.Info("bulk fetch finished", "total", result.Total, "fetched", result.Fetched, "skipped", result.Skipped, "failed", result.Failed)
	return result, ctx.Err()
}

func (f *Fetcher) detailWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan string,
	results chan<- detailResult,
	opts BulkFetchOpts,
) {
	defer wg.Done()

	for id := range jobs {
		if !opts.Force && f.snapshots.Exists(repositories.KindDatasets, id) {
			results <- detailResult{id: id, skipped: true}
			continue
		}
		results <- detailResult{id: id, err: f.fetchOne(ctx, limiter, id, opts)}
	}
}

func (f *Fetcher) fetchOne(ctx context.Context, limiter *rate.Limiter, id string, opts BulkFetchOpts) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := f.api.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	if err := f.snapshots.Save(repositories.KindDatasets, id, resp.Body); err != nil {
		return err
	}

	if !opts.WithEntries {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err = f.api.DataEntries(ctx, id, services.ListOptions{})
	if err != nil {
		return fmt.Errorf("data entries: %w", err)
	}
	return f.snapshots.Save(repositories.KindDataEntries, id, resp.Body)
}
