// Package ratelimit throttles calls to the enrichment API: at most
// maxConcurrent calls in flight and a minimum spacing between call starts,
// shared across every caller in the process.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter struct {
	slots chan struct{}

	mu          sync.Mutex
	next        time.Time
	minInterval time.Duration
}

func New(maxConcurrent int, minInterval time.Duration) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if minInterval < 0 {
		minInterval = 0
	}
	return &Limiter{
		slots:       make(chan struct{}, maxConcurrent),
		minInterval: minInterval,
	}
}

// Do runs fn once a concurrency slot is free and the spacing window has
// elapsed. A failing fn never blocks or poisons later calls; its error is
// returned to its own caller only.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.slots <- struct{}{}:
	}
	defer func() { <-l.slots }()

	if wait := l.reserve(); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fn(ctx)
}

// reserve claims the next start slot and returns how long the caller must
// wait for it. Claiming up front keeps spacing correct under concurrency.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	wait := l.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	l.next = now.Add(wait + l.minInterval)
	return wait
}
