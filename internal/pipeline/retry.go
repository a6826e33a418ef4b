package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig defines how often an operation is attempted and how long to
// wait in between.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// connectRetry builds the config used for primary destination connects.
func connectRetry(attempts int, delay time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialDelay:      delay,
		MaxDelay:          10 * delay,
		BackoffMultiplier: 2.0,
	}
}

// delay returns the wait after the given failed attempt (1-based).
func (c RetryConfig) delay(attempt int) time.Duration {
	multiplier := c.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := time.Duration(float64(c.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// retry runs fn until it succeeds, MaxAttempts is reached or ctx ends.
func retry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, op string, fn func(context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		wait := cfg.delay(attempt)
		logger.Warn("attempt failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), err)
		case <-time.After(wait):
		}
	}
	if attempts > 1 {
		return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
	}
	return err
}
