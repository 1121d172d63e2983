// Package pacing provides the inter-call delays used between consecutive
// requests to the external systems. The delays are a rate-limit courtesy,
// not a correctness mechanism, so the pacer is injectable and tests swap
// in None.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks until the next external call may proceed.
type Pacer interface {
	Wait(ctx context.Context) error
}

type limiterPacer struct {
	l *rate.Limiter
}

// Fixed returns a pacer that allows one call per interval, with one
// initial call passing immediately.
func Fixed(interval time.Duration) Pacer {
	return &limiterPacer{l: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *limiterPacer) Wait(ctx context.Context) error {
	return p.l.Wait(ctx)
}

type nopPacer struct{}

func (nopPacer) Wait(context.Context) error { return nil }

// None never waits. Intended for tests.
var None Pacer = nopPacer{}
