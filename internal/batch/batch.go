// Package batch executes per-item operations over large collections in
// rate-limit friendly batches.
//
// Items are partitioned into fixed-size batches processed in order. Within a
// batch, items run sequentially by default or through a bounded worker pool
// when concurrency is enabled. Every item gets the exponential-backoff retry
// treatment; item failures are recorded and never halt the run, and a panic
// from the operation is absorbed and recorded as a failure. Cancellation is
// only observed between batches so an interrupted run stops at a clean
// boundary.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AskChad/ClickUp-Monday-sync/internal/ratelimit"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// ErrSkip marks an item as intentionally not processed. Operations return it
// (wrapped or bare) to record a skip instead of a failure; skips are never
// retried.
var ErrSkip = errors.New("item skipped")

// DefaultBatchSize is the number of items per batch.
const DefaultBatchSize = 10

// DefaultBatchDelay is the pause between consecutive batches.
const DefaultBatchDelay = 650 * time.Millisecond

// ItemStatus is the outcome of one item.
type ItemStatus string

const (
	StatusSuccess ItemStatus = "success"
	StatusFailed  ItemStatus = "failed"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of one item's operation.
type Result struct {
	// ID identifies the item, as reported by the id function.
	ID string
	// Status is the item outcome.
	Status ItemStatus
	// Value is whatever the operation returned on success.
	Value any
	// Err is the final error for failed items, or the skip reason.
	Err error
	// Retries counts how many retry attempts the item consumed.
	Retries uint
}

// Summary aggregates a completed run.
type Summary struct {
	Successful int
	Failed     int
	Skipped    int
	// Results holds one entry per input item, in input order.
	Results []Result
	// Duration is the wall-clock time of the whole run.
	Duration time.Duration
}

// Progress is emitted after every finished item.
type Progress struct {
	BatchIndex int
	BatchCount int
	Completed  int
	Total      int
	Result     Result
}

// Operation processes one item and returns an arbitrary result value.
type Operation[T any] func(ctx context.Context, item T) (any, error)

// Config controls a runner.
type Config struct {
	// BatchSize is the number of items per batch (default 10).
	BatchSize int
	// BatchDelay is the pause between batches (default 650ms).
	BatchDelay time.Duration
	// Concurrency bounds the worker pool inside a batch. Zero or one means
	// sequential execution.
	Concurrency int
	// Backoff is the per-item retry schedule.
	Backoff ratelimit.BackoffConfig
}

// Runner executes operations over item collections.
type Runner[T any] struct {
	cfg    Config
	logger *log.Logger
	sink   func(Progress)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner with the given configuration.
func NewRunner[T any](cfg Config, logger *log.Logger) *Runner[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Runner[T]{cfg: cfg, logger: logger, sleep: sleepContext}
}

// OnProgress registers a callback invoked after every finished item. The
// callback runs on the runner's goroutine and must not block.
func (r *Runner[T]) OnProgress(sink func(Progress)) { r.sink = sink }

// Partition splits items into batches of the given size, preserving input
// order. A size of zero or less yields a single batch holding everything.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}

	count := (len(items) + size - 1) / size
	batches := make([][]T, 0, count)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Run processes every item and returns the aggregated summary. The id
// function labels items in results and logs.
//
// The returned error is non-nil only when the run was cut short by context
// cancellation; item failures live in the summary. The summary is valid
// either way and covers the items processed before the stop.
func (r *Runner[T]) Run(ctx context.Context, items []T, id func(T) string, op Operation[T]) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	batches := Partition(items, r.cfg.BatchSize)
	total := len(items)
	completed := 0

	for i, group := range batches {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		if i > 0 && r.cfg.BatchDelay > 0 {
			if err := r.sleep(ctx, r.cfg.BatchDelay); err != nil {
				summary.Duration = time.Since(start)
				return summary, err
			}
		}

		r.logger.Debug("processing batch", "batch", i+1, "of", len(batches), "size", len(group))

		results := r.runBatch(ctx, group, id, op)
		for _, res := range results {
			completed++
			switch res.Status {
			case StatusSuccess:
				summary.Successful++
			case StatusSkipped:
				summary.Skipped++
			default:
				summary.Failed++
				r.logger.Warn("item failed", "id", res.ID, "retries", res.Retries, "error", res.Err)
			}
			summary.Results = append(summary.Results, res)

			if r.sink != nil {
				r.sink(Progress{
					BatchIndex: i,
					BatchCount: len(batches),
					Completed:  completed,
					Total:      total,
					Result:     res,
				})
			}
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// runBatch executes one batch and returns results slot-indexed by item
// position, so output order matches input order even under concurrency.
//
// A batch-level panic marks every unfinished item in the batch failed; the
// run continues with the next batch.
func (r *Runner[T]) runBatch(ctx context.Context, group []T, id func(T) string, op Operation[T]) (results []Result) {
	results = make([]Result, len(group))
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("batch aborted by panic", "panic", rec)
			err := fmt.Errorf("batch aborted: %v", rec)
			for slot := range results {
				if results[slot].Status == "" {
					results[slot] = Result{Status: StatusFailed, Err: err}
				}
			}
		}
	}()

	if r.cfg.Concurrency <= 1 || len(group) == 1 {
		for slot, item := range group {
			results[slot] = r.runItem(ctx, item, id, op)
		}
		return results
	}

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	for slot, item := range group {
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[slot] = r.runItem(ctx, item, id, op)
		}(slot, item)
	}
	wg.Wait()

	return results
}

// runItem executes one item through the retry wrapper. A panicking operation
// is recorded as a failed result and never retried.
func (r *Runner[T]) runItem(ctx context.Context, item T, id func(T) string, op Operation[T]) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("operation panicked", "id", result.ID, "panic", rec)
			result.Status = StatusFailed
			result.Err = fmt.Errorf("operation panicked: %v", rec)
		}
	}()

	result.ID = id(item)

	var skip error
	retries, err := ratelimit.Do(ctx, r.cfg.Backoff, func() error {
		value, opErr := op(ctx, item)
		if opErr != nil {
			if errors.Is(opErr, ErrSkip) {
				skip = opErr
				return nil
			}
			return opErr
		}
		result.Value = value
		return nil
	})

	result.Retries = retries
	switch {
	case skip != nil:
		result.Status = StatusSkipped
		result.Err = skip
	case err != nil:
		result.Status = StatusFailed
		result.Err = err
	default:
		result.Status = StatusSuccess
	}
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
