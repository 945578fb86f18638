package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/ratelimit"
)

func fastBackoff() ratelimit.BackoffConfig {
	return ratelimit.BackoffConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func itemID(s string) string { return s }

func TestPartition(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	t.Run("Even Split With Remainder", func(t *testing.T) {
		batches := Partition(items, 2)
		if len(batches) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batches))
		}
		if len(batches[2]) != 1 || batches[2][0] != "e" {
			t.Errorf("expected trailing short batch, got %v", batches[2])
		}
	})

	t.Run("Preserves Order", func(t *testing.T) {
		var flat []string
		for _, b := range Partition(items, 2) {
			flat = append(flat, b...)
		}
		for i, v := range flat {
			if v != items[i] {
				t.Fatalf("order broken at %d: %v", i, flat)
			}
		}
	})

	t.Run("Zero Size Is One Batch", func(t *testing.T) {
		batches := Partition(items, 0)
		if len(batches) != 1 || len(batches[0]) != 5 {
			t.Errorf("expected single batch, got %v", batches)
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		if batches := Partition([]string{}, 3); batches != nil {
			t.Errorf("expected nil, got %v", batches)
		}
	})

	t.Run("Size Larger Than Input", func(t *testing.T) {
		batches := Partition(items, 100)
		if len(batches) != 1 {
			t.Errorf("expected single batch, got %d", len(batches))
		}
	})
}

func TestRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("All Successful", func(t *testing.T) {
		r := NewRunner[string](Config{BatchSize: 2, BatchDelay: time.Millisecond, Backoff: fastBackoff()}, nil)
		summary, err := r.Run(ctx, []string{"a", "b", "c"}, itemID, func(ctx context.Context, item string) (any, error) {
			return "done:" + item, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if summary.Successful != 3 || summary.Failed != 0 || summary.Skipped != 0 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if summary.Results[1].Value != "done:b" {
			t.Errorf("expected result values in input order, got %v", summary.Results[1].Value)
		}
	})

	t.Run("Failure Recorded Without Halting", func(t *testing.T) {
		r := NewRunner[string](Config{BatchSize: 2, BatchDelay: 0, Backoff: fastBackoff()}, nil)
		summary, err := r.Run(ctx, []string{"a", "bad", "c"}, itemID, func(ctx context.Context, item string) (any, error) {
			if item == "bad" {
				return nil, errors.New("boom")
			}
			return item, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if summary.Successful != 2 || summary.Failed != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}

		res := summary.Results[1]
		if res.ID != "bad" || res.Status != StatusFailed {
			t.Errorf("unexpected failed result %+v", res)
		}
		var exhausted *ratelimit.ExhaustedError
		if !errors.As(res.Err, &exhausted) {
			t.Errorf("expected exhaustion error after retries, got %v", res.Err)
		}
		if res.Retries != 2 {
			t.Errorf("expected 2 retries, got %d", res.Retries)
		}
	})

	t.Run("Retry Then Succeed", func(t *testing.T) {
		var calls int
		r := NewRunner[string](Config{BatchSize: 1, BatchDelay: 0, Backoff: fastBackoff()}, nil)
		summary, err := r.Run(ctx, []string{"flaky"}, itemID, func(ctx context.Context, item string) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if summary.Successful != 1 {
			t.Errorf("expected success after retries, got %+v", summary)
		}
		if summary.Results[0].Retries != 2 {
			t.Errorf("expected 2 retries counted, got %d", summary.Results[0].Retries)
		}
	})

	t.Run("Skip Sentinel", func(t *testing.T) {
		var calls int
		r := NewRunner[string](Config{BatchSize: 5, BatchDelay: 0, Backoff: fastBackoff()}, nil)
		summary, err := r.Run(ctx, []string{"a", "dup"}, itemID, func(ctx context.Context, item string) (any, error) {
			calls++
			if item == "dup" {
				return nil, fmt.Errorf("already present: %w", ErrSkip)
			}
			return item, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if summary.Skipped != 1 || summary.Successful != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if calls != 2 {
			t.Errorf("skips must not be retried, got %d calls", calls)
		}
		if summary.Results[1].Status != StatusSkipped {
			t.Errorf("unexpected result %+v", summary.Results[1])
		}
	})

	t.Run("Panic Recorded Without Halting", func(t *testing.T) {
		r := NewRunner[string](Config{BatchSize: 2, BatchDelay: 0, Backoff: fastBackoff()}, nil)
		summary, err := r.Run(ctx, []string{"a", "explode", "c"}, itemID, func(ctx context.Context, item string) (any, error) {
			if item == "explode" {
				panic("nil map write")
			}
			return item, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if summary.Successful != 2 || summary.Failed != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}

		res := summary.Results[1]
		if res.ID != "explode" || res.Status != StatusFailed {
			t.Errorf("unexpected result %+v", res)
		}
		if res.Err == nil || !strings.Contains(res.Err.Error(), "panicked") {
			t.Errorf("expected panic recorded on the result, got %v", res.Err)
		}
		// The batch after the panic still ran.
		if summary.Results[2].Status != StatusSuccess {
			t.Errorf("expected later batch processed, got %+v", summary.Results[2])
		}
	})

	t.Run("Parallel Panic Recorded", func(t *testing.T) {
		r := NewRunner[string](Config{BatchSize: 4, BatchDelay: 0, Concurrency: 2, Backoff: fastBackoff()}, nil)
		summary, err := r.Run(ctx, []string{"a", "explode", "c", "d"}, itemID, func(ctx context.Context, item string) (any, error) {
			if item == "explode" {
				panic("worker blew up")
			}
			return item, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if summary.Successful != 3 || summary.Failed != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if summary.Results[1].Status != StatusFailed {
			t.Errorf("expected panicking slot failed, got %+v", summary.Results[1])
		}
	})

	t.Run("Parallel Keeps Slot Order", func(t *testing.T) {
		items := []string{"a", "b", "c", "d", "e", "f"}
		r := NewRunner[string](Config{BatchSize: 6, BatchDelay: 0, Concurrency: 3, Backoff: fastBackoff()}, nil)
		summary, err := r.Run(ctx, items, itemID, func(ctx context.Context, item string) (any, error) {
			if item == "a" {
				// Let later slots finish first.
				time.Sleep(10 * time.Millisecond)
			}
			return "v:" + item, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for i, res := range summary.Results {
			if res.ID != items[i] {
				t.Fatalf("slot %d holds %s, want %s", i, res.ID, items[i])
			}
		}
	})

	t.Run("Parallel Bounded By Concurrency", func(t *testing.T) {
		var mu sync.Mutex
		var active, peak int
		r := NewRunner[string](Config{BatchSize: 8, BatchDelay: 0, Concurrency: 2, Backoff: fastBackoff()}, nil)
		items := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		_, err := r.Run(ctx, items, itemID, func(ctx context.Context, item string) (any, error) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return nil, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if peak > 2 {
			t.Errorf("expected at most 2 concurrent workers, saw %d", peak)
		}
	})

	t.Run("Progress Callback", func(t *testing.T) {
		var events []Progress
		r := NewRunner[string](Config{BatchSize: 2, BatchDelay: time.Millisecond, Backoff: fastBackoff()}, nil)
		r.OnProgress(func(p Progress) { events = append(events, p) })

		_, err := r.Run(ctx, []string{"a", "b", "c"}, itemID, func(ctx context.Context, item string) (any, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 progress events, got %d", len(events))
		}
		last := events[2]
		if last.Completed != 3 || last.Total != 3 || last.BatchIndex != 1 {
			t.Errorf("unexpected final event %+v", last)
		}
	})

	t.Run("Cancellation At Batch Boundary", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		r := NewRunner[string](Config{BatchSize: 2, BatchDelay: time.Millisecond, Backoff: fastBackoff()}, nil)

		var processed int
		summary, err := r.Run(cctx, []string{"a", "b", "c", "d"}, itemID, func(ctx context.Context, item string) (any, error) {
			processed++
			if item == "b" {
				cancel()
			}
			return nil, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if processed != 2 {
			t.Errorf("expected the in-flight batch to finish, got %d items", processed)
		}
		if len(summary.Results) != 2 {
			t.Errorf("expected partial summary, got %d results", len(summary.Results))
		}
	})
}
