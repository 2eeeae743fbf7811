// Package retry runs Slack API calls with a bounded number of attempts and a pause between them.
package retry

import (
	"context"
	"time"

	perrors "github.com/p-blackswan/channel-reaper/internal/errors"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	// Delay is the fixed pause before each extra attempt.
	Delay time.Duration

	// OnRetry, when set, is called before each pause.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig is one retry after a fixed ten second pause.
func DefaultConfig() Config {
	return Fixed(10 * time.Second)
}

// Fixed returns a config that makes a single extra attempt after delay.
func Fixed(delay time.Duration) Config {
	return Config{
		MaxAttempts: 2,
		Delay:       delay,
	}
}

// Do executes fn, retrying only retryable errors, and returns the last error.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !perrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr, cfg.Delay)
		}

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
