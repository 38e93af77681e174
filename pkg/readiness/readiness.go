// Package readiness decides whether a page document has finished loading and
// schedules retries of operations that need it to.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtnitsch/consent-audit/pkg/dom"
)

// DefaultInterval is the fixed re-poll delay between readiness checks.
const DefaultInterval = 1000 * time.Millisecond

// IsReady reports whether the document reached the complete state.
// A read error counts as not ready.
func IsReady(doc dom.Document) bool {
	state, err := doc.ReadyState()
	if err != nil {
		return false
	}
	return state == dom.StateComplete
}

// Gate schedules deferred retries for a single page.
// Retries are unbounded; cancelling the context passed to Defer or Wait is the only limit.
type Gate struct {
	Interval time.Duration
	// Locker, when set, is held while a deferred retry runs so it cannot
	// interleave with other operations on the same page.
	Locker sync.Locker
	Logger *slog.Logger

	pending atomic.Int64
}

// NewGate returns a gate polling at interval (DefaultInterval when zero).
func NewGate(interval time.Duration, logger *slog.Logger) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{Interval: interval, Logger: logger}
}

func (g *Gate) interval() time.Duration {
	if g.Interval <= 0 {
		return DefaultInterval
	}
	return g.Interval
}

// Defer runs fn once after the gate interval. It is fire-and-forget: nothing is
// returned to the caller and fn's effects are its only result. The retry is
// dropped if ctx is done before it fires.
func (g *Gate) Defer(ctx context.Context, fn func()) {
	g.pending.Add(1)
	go func() {
		defer g.pending.Add(-1)

		t := time.NewTimer(g.interval())
		defer t.Stop()

		select {
		case <-ctx.Done():
			if g.Logger != nil {
				g.Logger.Debug("deferred retry dropped", "error", ctx.Err())
			}
			return
		case <-t.C:
		}

		if g.Locker != nil {
			g.Locker.Lock()
			defer g.Locker.Unlock()
		}
		// The context may have ended while waiting for the lock.
		if ctx.Err() != nil {
			return
		}
		fn()
	}()
}

// Pending is the number of scheduled retries that have not fired yet.
func (g *Gate) Pending() int {
	return int(g.pending.Load())
}

// Wait blocks until the document is ready or ctx is done.
func (g *Gate) Wait(ctx context.Context, doc dom.Document) error {
	if IsReady(doc) {
		return nil
	}

	ticker := time.NewTicker(g.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("page not ready: %w", ctx.Err())
		case <-ticker.C:
			if IsReady(doc) {
				return nil
			}
		}
	}
}
