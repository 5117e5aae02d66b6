package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// requestGate serializes network calls to the target host and enforces the
// randomized inter-request delay band. The target's access policy caps
// concurrency at effectively one in-flight request, so the slot channel has
// a single entry even though today's callers are already sequential.
type requestGate struct {
	slot    chan struct{}
	limiter *rate.Limiter
	delay   time.Duration
}

func newRequestGate(delay time.Duration) *requestGate {
	g := &requestGate{
		slot:  make(chan struct{}, 1),
		delay: delay,
	}
	if delay > 0 {
		// The limiter enforces the hard floor of the band; the jitter sleep
		// in acquire supplies the randomized remainder.
		g.limiter = rate.NewLimiter(rate.Every(delay/2), 1)
	}
	return g
}

// acquire blocks until the caller holds the single request slot and the
// politeness delay has elapsed. The returned release must be called after
// the network round trip, success or failure.
func (g *requestGate) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-g.slot }

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}
	if err := pause(ctx, randomJitter(g.delay)); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
