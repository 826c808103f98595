// Package ratelimit paces calls to remote services with a fixed minimum
// interval between the start of consecutive calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between successive Wait returns.
// It is safe for concurrent use; waiters are served one at a time.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces the time source and the sleep function.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pacer) {
		p.now = now
		p.sleep = sleep
	}
}

// New creates a Pacer. An interval <= 0 disables pacing.
func New(interval time.Duration, opts ...Option) *Pacer {
	p := &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the configured minimum interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until at least the interval has elapsed since the previous
// call returned. The first call never blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval > 0 && !p.last.IsZero() {
		if wait := p.interval - p.now().Sub(p.last); wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	p.last = p.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
