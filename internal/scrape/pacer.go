package scrape

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces browser actions out so the scraper stays polite. The delay
// starts at the configured request delay and can only be raised, which is how
// a robots.txt crawl-delay takes effect.
type Pacer struct {
	mu      sync.Mutex
	delay   time.Duration
	limiter *rate.Limiter
}

// NewPacer creates a pacer with the given minimum gap between actions.
// A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	p := &Pacer{}
	p.set(delay)
	return p
}

func (p *Pacer) set(delay time.Duration) {
	p.delay = delay
	if delay <= 0 {
		p.limiter = nil
		return
	}
	p.limiter = rate.NewLimiter(rate.Every(delay), 1)
}

// Raise increases the gap to at least d. A smaller d is ignored.
func (p *Pacer) Raise(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d > p.delay {
		p.set(d)
	}
}

// Delay reports the current gap.
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}

// Wait blocks until the next action is due or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	limiter := p.limiter
	p.mu.Unlock()

	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}
