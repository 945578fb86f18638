package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// fakeClock drives a governor deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func newFakeGovernor(cfg Config) (*Governor, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 8, 28, 12, 0, 0, 0, time.UTC)}
	g := NewGovernor(cfg)
	g.now = func() time.Time { return clock.t }
	g.sleep = func(ctx context.Context, d time.Duration) error {
		clock.slept = append(clock.slept, d)
		clock.t = clock.t.Add(d)
		return nil
	}
	return g, clock
}

func TestGovernor(t *testing.T) {
	t.Run("requests under the cap need no wait", func(t *testing.T) {
		g, clock := newFakeGovernor(Config{MaxRequests: 5, Window: time.Minute})

		for range 3 {
			if err := g.WaitForReset(context.Background()); err != nil {
				t.Fatalf("unexpected wait error: %v", err)
			}
			g.RecordRequest()
		}

		if len(clock.slept) != 0 {
			t.Errorf("expected no sleeps under the cap, got %v", clock.slept)
		}
		if !g.CheckLimit() {
			t.Error("expected capacity remaining")
		}
		if got := g.RemainingQuota(); got != 2 {
			t.Errorf("expected 2 remaining, got %d", got)
		}
	})

	t.Run("full window forces a wait until rollover", func(t *testing.T) {
		g, clock := newFakeGovernor(Config{
			MaxRequests:  2,
			Window:       time.Minute,
			SafetyBuffer: 2 * time.Second,
		})

		g.RecordRequest()
		clock.t = clock.t.Add(10 * time.Second)
		g.RecordRequest()

		if g.CheckLimit() {
			t.Error("expected window to be full")
		}
		if got := g.RemainingQuota(); got != 0 {
			t.Errorf("expected 0 remaining, got %d", got)
		}

		if err := g.WaitForReset(context.Background()); err != nil {
			t.Fatalf("unexpected wait error: %v", err)
		}

		// The oldest timestamp is 10s old, so rollover needs 50s plus the buffer.
		if len(clock.slept) == 0 {
			t.Fatal("expected a sleep for the full window")
		}
		if clock.slept[0] != 52*time.Second {
			t.Errorf("expected first sleep of 52s, got %v", clock.slept[0])
		}
		if !g.CheckLimit() {
			t.Error("expected capacity after rollover")
		}
	})

	t.Run("window expiry restores quota", func(t *testing.T) {
		g, clock := newFakeGovernor(Config{MaxRequests: 3, Window: time.Minute})

		for range 3 {
			g.RecordRequest()
		}
		clock.t = clock.t.Add(61 * time.Second)

		if got := g.RemainingQuota(); got != 3 {
			t.Errorf("expected full quota after expiry, got %d", got)
		}
	})

	t.Run("budget threshold sleeps until reported reset", func(t *testing.T) {
		g, clock := newFakeGovernor(Config{
			MaxRequests:     100,
			Window:          time.Minute,
			SafetyBuffer:    time.Second,
			BudgetPerWindow: 1000,
			BudgetThreshold: 0.8,
		})

		g.RecordCost(900, 30*time.Second)
		if got := g.BudgetUsed(); got != 900 {
			t.Fatalf("expected 900 budget used, got %d", got)
		}

		if err := g.WaitForReset(context.Background()); err != nil {
			t.Fatalf("unexpected wait error: %v", err)
		}

		if len(clock.slept) == 0 {
			t.Fatal("expected a budget sleep")
		}
		if clock.slept[0] != 31*time.Second {
			t.Errorf("expected sleep of 31s, got %v", clock.slept[0])
		}
	})

	t.Run("budget below threshold does not block", func(t *testing.T) {
		g, clock := newFakeGovernor(Config{
			MaxRequests:     100,
			Window:          time.Minute,
			BudgetPerWindow: 1000,
			BudgetThreshold: 0.8,
		})

		g.RecordCost(500, 30*time.Second)
		if err := g.WaitForReset(context.Background()); err != nil {
			t.Fatalf("unexpected wait error: %v", err)
		}
		if len(clock.slept) != 0 {
			t.Errorf("expected no sleep below threshold, got %v", clock.slept)
		}
	})

	t.Run("budget resets after the reported deadline", func(t *testing.T) {
		g, clock := newFakeGovernor(Config{
			MaxRequests:     100,
			Window:          time.Minute,
			BudgetPerWindow: 1000,
			BudgetThreshold: 0.8,
		})

		g.RecordCost(900, 10*time.Second)
		clock.t = clock.t.Add(11 * time.Second)
		g.RecordCost(50, 60*time.Second)

		if got := g.BudgetUsed(); got != 50 {
			t.Errorf("expected stale budget dropped, got %d", got)
		}
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		g := NewGovernor(Config{MaxRequests: 1, Window: time.Minute, SafetyBuffer: time.Second})
		g.RecordRequest()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := g.WaitForReset(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("service presets clamp their inputs", func(t *testing.T) {
		if got := NewClickUpGovernor(500).RemainingQuota(); got != 90 {
			t.Errorf("expected clickup cap clamped to 90, got %d", got)
		}
		if got := NewClickUpGovernor(0).RemainingQuota(); got != 90 {
			t.Errorf("expected clickup default of 90, got %d", got)
		}
		if got := NewMondayGovernor(0, 0, 0).RemainingQuota(); got != 40 {
			t.Errorf("expected monday default of 40, got %d", got)
		}
	})
}

func TestBackoff(t *testing.T) {
	quick := BackoffConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("success on first attempt", func(t *testing.T) {
		calls := 0
		retries, err := Do(context.Background(), quick, func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if retries != 0 || calls != 1 {
			t.Errorf("expected 1 call and 0 retries, got %d calls, %d retries", calls, retries)
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		retries, err := Do(context.Background(), quick, func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("transient failure %d", calls)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected eventual success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		if retries != 2 {
			t.Errorf("expected 2 retries, got %d", retries)
		}
	})

	t.Run("exhaustion wraps the last error", func(t *testing.T) {
		calls := 0
		retries, err := Do(context.Background(), quick, func() error {
			calls++
			return fmt.Errorf("persistent failure %d", calls)
		})
		if err == nil {
			t.Fatal("expected error after exhaustion")
		}

		var exhausted *ExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("expected ExhaustedError, got %T", err)
		}
		if exhausted.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", exhausted.Attempts)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		if retries != 2 {
			t.Errorf("expected 2 retries, got %d", retries)
		}
		if exhausted.Unwrap().Error() != "persistent failure 3" {
			t.Errorf("expected last cause preserved, got %v", exhausted.Unwrap())
		}
	})

	t.Run("non-retryable errors propagate immediately", func(t *testing.T) {
		cfg := quick
		cfg.Retryable = []string{"timeout"}

		calls := 0
		retries, err := Do(context.Background(), cfg, func() error {
			calls++
			return errors.New("bad request")
		})
		if err == nil {
			t.Fatal("expected error")
		}

		var exhausted *ExhaustedError
		if errors.As(err, &exhausted) {
			t.Error("expected the original error, not exhaustion")
		}
		if calls != 1 {
			t.Errorf("expected a single call, got %d", calls)
		}
		if retries != 0 {
			t.Errorf("expected 0 retries, got %d", retries)
		}
	})

	t.Run("matching signatures are retried", func(t *testing.T) {
		cfg := quick
		cfg.Retryable = []string{"timeout"}

		calls := 0
		_, err := Do(context.Background(), cfg, func() error {
			calls++
			if calls < 2 {
				return errors.New("connection timeout")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected eventual success, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("rate limit errors are always retryable", func(t *testing.T) {
		cfg := quick
		cfg.Retryable = []string{"timeout"}

		calls := 0
		retries, err := Do(context.Background(), cfg, func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: retry after 1", shared.ErrRateLimited)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected eventual success, got %v", err)
		}
		if retries != 2 {
			t.Errorf("expected 2 retries, got %d", retries)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cfg := BackoffConfig{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := Do(ctx, cfg, func() error {
			return errors.New("always failing")
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
	})
}
