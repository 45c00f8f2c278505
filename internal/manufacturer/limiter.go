package manufacturer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the default minimum spacing between outbound
// provider calls.
const DefaultMinInterval = 500 * time.Millisecond

// Limiter paces outbound provider calls to a minimum wall-clock interval,
// shared across all concurrently running lookup tasks.
//
// The check-and-update of the last-call time is atomic: two tasks that both
// observe "enough time elapsed" cannot both proceed, because rate.Limiter
// serialises reservations under its own lock. With a burst of one, N
// back-to-back Acquire calls take at least (N-1) * interval in total.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter that allows one call per interval.
// A non-positive interval disables pacing.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Acquire blocks until the caller may start an outbound call, then records
// the call slot. Returns the context's error if it is cancelled while
// waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
