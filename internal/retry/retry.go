package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/glefebvre/housou/internal/errors"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	// Retryable decides whether an error triggers another attempt.
	// Defaults to apperrors.IsRetryable.
	Retryable func(error) bool

	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultConfig returns the backoff used for config fetches
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoWithResult is Do for functions that produce a value
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = apperrors.IsRetryable
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, apperrors.FromContext(ctx, err)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || attempt == attempts {
			break
		}

		wait := Backoff(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, apperrors.FromContext(ctx, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// Backoff returns the jittered wait after the given 1-based attempt
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if cfg.MaxBackoff > 0 && base > float64(cfg.MaxBackoff) {
		base = float64(cfg.MaxBackoff)
	}

	return withJitter(time.Duration(base), cfg.JitterFraction)
}

func withJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}

	jitter := float64(d) * fraction
	out := float64(d) + (rand.Float64()*2-1)*jitter
	if out < 0 {
		out = 0
	}
	return time.Duration(out)
}
