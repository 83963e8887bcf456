// Package retrier implements exponential backoff with jitter.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultJitter          = 0.1
)

// Retrier retries an operation with exponentially growing pauses.
// MaxAttempts of zero means retry until the context is cancelled, which is
// what the rate feed uses for its silent infinite reconnect.
type Retrier struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	MaxAttempts     int
}

// New returns a Retrier with the default backoff curve and the given
// attempt budget (zero for unlimited).
func New(maxAttempts int) *Retrier {
	return &Retrier{
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		Multiplier:      defaultMultiplier,
		Jitter:          defaultJitter,
		MaxAttempts:     maxAttempts,
	}
}

// Do executes fn until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. The last error is returned.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	interval := r.InitialInterval
	if interval <= 0 {
		interval = defaultInitialInterval
	}

	var err error
	for attempt := 0; r.MaxAttempts == 0 || attempt < r.MaxAttempts; attempt++ {
		if attempt > 0 {
			jitter := (rand.Float64()*2 - 1) * r.Jitter * float64(interval)
			sleep := time.Duration(float64(interval) + jitter)
			if sleep < 0 {
				sleep = 0
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}

			interval = time.Duration(float64(interval) * r.Multiplier)
			if r.MaxInterval > 0 && interval > r.MaxInterval {
				interval = r.MaxInterval
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return err
}
