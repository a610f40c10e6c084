// Package resilience retries transient failures while connecting to the
// store and cache.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/posture/internal/config"
)

// Backoff controls retry behavior with exponential backoff and jitter.
type Backoff struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// JitterFraction adds up to ±fraction of the computed delay.
	JitterFraction float64

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool
}

// DefaultBackoff returns the retry policy used when opening connections.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// FromConfig builds a Backoff from the connect section, falling back to
// DefaultBackoff for unset values.
func FromConfig(c config.ConnectConfig) Backoff {
	b := DefaultBackoff()
	if c.MaxAttempts > 0 {
		b.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		b.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		b.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		b.Multiplier = c.Multiplier
	}
	return b
}

// Do runs fn until it succeeds, returns a non-transient error, exhausts the
// attempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, b Backoff, op string, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, b, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for operations that produce a value.
func DoVal[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b = applyDefaults(b)
	shouldRetry := b.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt >= b.MaxAttempts-1 {
			break
		}

		delay := computeBackoff(attempt, b)
		zap.L().Warn("retrying connection",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func applyDefaults(b Backoff) Backoff {
	d := DefaultBackoff()
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = d.MaxAttempts
	}
	if b.InitialBackoff <= 0 {
		b.InitialBackoff = d.InitialBackoff
	}
	if b.MaxBackoff <= 0 {
		b.MaxBackoff = d.MaxBackoff
	}
	if b.Multiplier <= 0 {
		b.Multiplier = d.Multiplier
	}
	if b.JitterFraction < 0 {
		b.JitterFraction = 0
	}
	return b
}

func computeBackoff(attempt int, b Backoff) time.Duration {
	delay := float64(b.InitialBackoff) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.MaxBackoff) {
		delay = float64(b.MaxBackoff)
	}
	if b.JitterFraction > 0 {
		spread := delay * b.JitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
