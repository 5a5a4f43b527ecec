package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config holds retry configuration
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts after the first call
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier (exponential)
	MaxElapsed     time.Duration // Overall deadline, zero means unbounded
}

// PollConfig returns a config for polling a condition until a deadline
func PollConfig(timeout time.Duration) Config {
	return Config{
		MaxRetries:     -1,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Multiplier:     1.5,
		MaxElapsed:     timeout,
	}
}

// ErrExhausted wraps the last error once retries are used up
var ErrExhausted = errors.New("retries exhausted")

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do executes fn with exponential backoff retries.
// A negative MaxRetries retries until MaxElapsed or ctx ends.
func Do(ctx context.Context, config Config, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialBackoff
	b.MaxInterval = config.MaxBackoff
	b.Multiplier = config.Multiplier
	b.RandomizationFactor = 0

	opts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if config.MaxRetries >= 0 {
		opts = append(opts, backoff.WithMaxTries(uint(config.MaxRetries+1)))
	}
	if config.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(config.MaxElapsed))
	}

	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		lastErr = fn()
		return struct{}{}, lastErr
	}, opts...)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("retry cancelled: %w", ctxErr)
	}
	var permanent *backoff.PermanentError
	if errors.As(lastErr, &permanent) {
		return permanent.Err
	}
	return fmt.Errorf("%w: %w", ErrExhausted, err)
}
