package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces out repeated work, such as rebuilds triggered by a burst
// of file saves. The first call always passes.
type Throttle struct {
	inner *rate.Limiter
}

// NewThrottle allows perSecond events per second with no burst beyond one.
func NewThrottle(perSecond float64) *Throttle {
	return &Throttle{inner: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Allow reports whether an event may happen now, consuming the slot if so.
func (t *Throttle) Allow() bool {
	return t.inner.AllowN(time.Now(), 1)
}

// Wait blocks until the next event may happen or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.inner.Wait(ctx)
}

// Interval is the minimum spacing between two events.
func (t *Throttle) Interval() time.Duration {
	limit := t.inner.Limit()
	if limit <= 0 || limit == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
