// Package gate enforces the process-wide outbound send budget.
// Every automated message, directed or public, passes through one
// Gate before it reaches the platform.
package gate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autodms/funnel/pkg/logging"
)

// Gate throttles sends with two token buckets, one per minute and one
// per hour, and honors platform-requested suspensions.
type Gate struct {
	minute *rate.Limiter
	hour   *rate.Limiter
	logger *zap.Logger

	mu           sync.Mutex
	suspendUntil time.Time

	now func() time.Time
}

// New creates a Gate allowing at most perMinute sends per minute and
// perHour sends per hour.
func New(perMinute, perHour int) *Gate {
	return &Gate{
		minute: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		hour:   rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour),
		logger: logging.GetLogger().With(zap.String("component", "gate")),
		now:    time.Now,
	}
}

// Acquire blocks until a send slot is available or ctx is done. It
// waits out any active suspension first, then takes a token from both
// buckets.
func (g *Gate) Acquire(ctx context.Context) error {
	for {
		g.mu.Lock()
		wait := g.suspendUntil.Sub(g.now())
		g.mu.Unlock()

		if wait <= 0 {
			break
		}

		g.logger.Debug("Waiting out send suspension", zap.Duration("remaining", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := g.minute.Wait(ctx); err != nil {
		return err
	}
	return g.hour.Wait(ctx)
}

// Suspend pauses all sends for d. Called when the platform reports a
// rate limit. Overlapping suspensions keep the later deadline.
func (g *Gate) Suspend(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	until := g.now().Add(d)
	if until.After(g.suspendUntil) {
		g.suspendUntil = until
		g.logger.Warn("Suspending sends", zap.Duration("duration", d))
	}
}

// Suspended reports whether sends are currently paused.
func (g *Gate) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Before(g.suspendUntil)
}
