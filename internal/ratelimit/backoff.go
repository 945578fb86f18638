package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// BackoffConfig controls the exponential-backoff retry wrapper.
type BackoffConfig struct {
	// MaxAttempts is the total number of tries, including the first (default 3).
	MaxAttempts uint
	// BaseDelay is the delay before the first retry; subsequent delays
	// double until MaxDelay (default 1s).
	BaseDelay time.Duration
	// MaxDelay caps the per-retry delay (default 30s).
	MaxDelay time.Duration
	// Retryable, when non-empty, restricts retries to errors whose message
	// contains one of these signatures; anything else propagates
	// immediately. Rate-limit errors are always retryable.
	Retryable []string
}

// DefaultBackoff returns the standard three-attempt doubling schedule.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// ExhaustedError is returned when an operation keeps failing after every
// configured attempt. It wraps the last cause.
type ExhaustedError struct {
	Attempts uint
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do invokes op with exponential backoff, returning the number of retries
// performed and the final error, if any.
//
// A nil error means op eventually succeeded; retries counts the failures
// before that success. Exhausting every attempt yields an [ExhaustedError].
func Do(ctx context.Context, cfg BackoffConfig, op func() error) (uint, error) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}

	var retries uint
	err := retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxAttempts),
		retry.Delay(cfg.BaseDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(cfg.shouldRetry),
		retry.OnRetry(func(n uint, err error) { retries = n + 1 }),
	)
	if err == nil {
		return retries, nil
	}

	if ctx.Err() != nil {
		return retries, ctx.Err()
	}
	if !cfg.shouldRetry(err) {
		// Propagated without retry; do not dress it up as exhaustion.
		return retries, err
	}
	// OnRetry fires on the final failed attempt too; a retry is an attempt
	// beyond the first, so exhaustion means MaxAttempts-1 retries.
	if retries >= cfg.MaxAttempts {
		retries = cfg.MaxAttempts - 1
	}
	return retries, &ExhaustedError{Attempts: cfg.MaxAttempts, Err: err}
}

// shouldRetry applies the retryable-signature filter.
func (cfg BackoffConfig) shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrRateLimited) {
		return true
	}
	if len(cfg.Retryable) == 0 {
		return true
	}
	msg := err.Error()
	for _, sig := range cfg.Retryable {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
