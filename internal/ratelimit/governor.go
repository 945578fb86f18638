// package ratelimit throttles outbound calls to the two external services.
//
// Each service gets its own [Governor] instance; governor state is
// process-wide, so concurrent jobs against the same service share one
// throttle budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config describes one service's request limits.
type Config struct {
	// MaxRequests is the cap on requests inside one sliding Window.
	MaxRequests int
	// Window is the sliding window size, typically one minute.
	Window time.Duration
	// SafetyBuffer pads every computed wait so the window has demonstrably
	// rolled over before the next request fires.
	SafetyBuffer time.Duration
	// MinInterval is the minimum spacing between any two consecutive
	// requests, enforced regardless of window occupancy.
	MinInterval time.Duration
	// BudgetPerWindow enables complexity-cost accounting when > 0: each
	// response reports points consumed and seconds until the budget resets.
	BudgetPerWindow int
	// BudgetThreshold is the fraction of BudgetPerWindow at which the
	// governor proactively sleeps until the reset (default 0.85).
	BudgetThreshold float64
}

// Governor is a sliding-window throttle for one external service.
//
// Callers must bracket every remote call with [Governor.WaitForReset] and
// [Governor.RecordRequest]. The window lives in memory only and is rebuilt
// empty on process restart.
type Governor struct {
	mu         sync.Mutex
	cfg        Config
	spacing    *rate.Limiter
	timestamps []time.Time

	budgetUsed  int
	budgetReset time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor creates a governor for the given limits.
func NewGovernor(cfg Config) *Governor {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.BudgetThreshold <= 0 || cfg.BudgetThreshold > 1 {
		cfg.BudgetThreshold = 0.85
	}

	var spacing *rate.Limiter
	if cfg.MinInterval > 0 {
		spacing = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}

	return &Governor{
		cfg:     cfg,
		spacing: spacing,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// NewClickUpGovernor returns a governor tuned for the ClickUp API: a
// conservative cap under the published 100 requests/minute quota, a safety
// buffer, and a small minimum spacing between calls.
func NewClickUpGovernor(requestsPerMinute int) *Governor {
	if requestsPerMinute <= 0 || requestsPerMinute > 95 {
		requestsPerMinute = 90
	}
	return NewGovernor(Config{
		MaxRequests:  requestsPerMinute,
		Window:       time.Minute,
		SafetyBuffer: 2 * time.Second,
		MinInterval:  150 * time.Millisecond,
	})
}

// NewMondayGovernor returns a governor tuned for the Monday API: a
// conservative request cap plus complexity-point budget accounting.
func NewMondayGovernor(requestsPerMinute, complexityPerMinute int, threshold float64) *Governor {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 40
	}
	if complexityPerMinute <= 0 {
		complexityPerMinute = 1_000_000
	}
	return NewGovernor(Config{
		MaxRequests:     requestsPerMinute,
		Window:          time.Minute,
		SafetyBuffer:    time.Second,
		MinInterval:     250 * time.Millisecond,
		BudgetPerWindow: complexityPerMinute,
		BudgetThreshold: threshold,
	})
}

// CheckLimit reports whether a request could fire right now without waiting.
// Non-blocking; does not consume capacity.
func (g *Governor) CheckLimit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(g.now())
	return len(g.timestamps) < g.cfg.MaxRequests
}

// RemainingQuota returns how many requests fit in the current window.
func (g *Governor) RemainingQuota() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(g.now())
	remaining := g.cfg.MaxRequests - len(g.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WaitForReset suspends until capacity is available, honoring the window
// cap, the complexity budget, and the configured minimum spacing.
func (g *Governor) WaitForReset(ctx context.Context) error {
	for {
		wait := g.nextWait()
		if wait <= 0 {
			break
		}
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}

	if g.spacing != nil {
		return g.spacing.Wait(ctx)
	}
	return nil
}

// RecordRequest records that one request actually fired. Must be called
// exactly once per remote call, after WaitForReset.
func (g *Governor) RecordRequest() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	g.timestamps = append(g.timestamps, now)
}

// RecordCost feeds one response's complexity cost and reported reset
// countdown into the budget accounting layer. No-op when budgeting is off.
func (g *Governor) RecordCost(cost int, resetIn time.Duration) {
	if g.cfg.BudgetPerWindow <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.budgetReset.IsZero() && now.After(g.budgetReset) {
		g.budgetUsed = 0
	}
	g.budgetUsed += cost
	if resetIn > 0 {
		g.budgetReset = now.Add(resetIn)
	}
}

// BudgetUsed returns the complexity points consumed in the current budget window.
func (g *Governor) BudgetUsed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.budgetUsed
}

// nextWait computes how long the caller must sleep before a request may
// fire, or zero when capacity is available.
func (g *Governor) nextWait() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	if g.cfg.BudgetPerWindow > 0 {
		if !g.budgetReset.IsZero() && now.After(g.budgetReset) {
			g.budgetUsed = 0
		}
		threshold := int(float64(g.cfg.BudgetPerWindow) * g.cfg.BudgetThreshold)
		if g.budgetUsed >= threshold && g.budgetReset.After(now) {
			return g.budgetReset.Sub(now) + g.cfg.SafetyBuffer
		}
	}

	if len(g.timestamps) >= g.cfg.MaxRequests {
		oldest := g.timestamps[0]
		return g.cfg.Window - now.Sub(oldest) + g.cfg.SafetyBuffer
	}

	return 0
}

// prune drops timestamps that have slid out of the window. Callers hold g.mu.
func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.cfg.Window)
	i := 0
	for i < len(g.timestamps) && !g.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.timestamps = g.timestamps[i:]
	}
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
