package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between consecutive permits, with
// optional jitter on top of the floor. It is safe for concurrent use by
// multiple goroutines: callers queue on an internal mutex, so permits are
// handed out one at a time and always at least interval apart.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	last     time.Time
}

// NewLimiter creates a limiter with the given minimum interval and jitter
// factor. Jitter is clamped to [0, 1]. An interval <= 0 never blocks.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Limiter{
		interval: interval,
		jitter:   jitter,
	}
}

// Interval returns the configured minimum spacing between permits.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Enforce blocks until at least the configured interval has elapsed since the
// previous Enforce returned, then records the current time. The first call
// never blocks. If ctx is done first, ctx.Err() is returned and no permit is
// recorded.
func (l *Limiter) Enforce(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		wait := l.interval - time.Since(l.last)
		if l.jitter > 0 {
			// Jitter only ever extends the wait; the interval is a floor.
			wait += time.Duration(float64(l.interval) * l.jitter * rand.Float64())
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	l.last = time.Now()
	return nil
}
