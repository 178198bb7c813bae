package outreach

import (
	"context"
	"math/rand"
	"time"

	xrate "golang.org/x/time/rate"
)

// DefaultMinDelay is the floor between consecutive sends when pacing is
// enabled. Three seconds is roughly the fastest a person clicks through
// a send form.
const DefaultMinDelay = 3 * time.Second

// sleepFunc blocks for d or until ctx is cancelled. Injectable so tests
// observe requested delays instead of serving them.
type sleepFunc func(ctx context.Context, d time.Duration) error

// pacer spaces sends out so a run does not look like automation to the
// directory service's abuse defenses.
//
// The delay before each send is min + uniform(0, min*jitter): a rate
// limiter provides the fixed floor and the random component is added on
// top, so consecutive sends land between min and min*(1+jitter) apart.
// A jitter factor of zero disables pacing entirely.
type pacer struct {
	jitter  float64
	min     time.Duration
	limiter *xrate.Limiter
	sleep   sleepFunc
	randFn  func() float64
}

func newPacer(jitter float64, min time.Duration, sleep sleepFunc, randFn func() float64) *pacer {
	if min <= 0 {
		min = DefaultMinDelay
	}
	if sleep == nil {
		sleep = sleepContext
	}
	if randFn == nil {
		randFn = rand.Float64
	}

	p := &pacer{jitter: jitter, min: min, sleep: sleep, randFn: randFn}
	if jitter > 0 {
		// Burst 1 with a full initial token: the first send goes out
		// immediately, later sends are spaced at least min apart.
		p.limiter = xrate.NewLimiter(xrate.Every(min), 1)
	}
	return p
}

// Wait blocks for the pre-send delay. Returns early with the context
// error on cancellation; the caller treats that as a run abort at a
// candidate boundary.
func (p *pacer) Wait(ctx context.Context) error {
	if p.jitter <= 0 {
		return ctx.Err()
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	extra := time.Duration(p.randFn() * p.jitter * float64(p.min))
	return p.sleep(ctx, extra)
}

// sleepContext is the production sleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
