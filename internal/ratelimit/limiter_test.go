package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_EnforcesSpacing(t *testing.T) {
	const n = 4
	const interval = 30 * time.Millisecond

	l := New(1, interval)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(context.Context) error { return nil })
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < (n-1)*interval {
		t.Fatalf("%d calls finished in %v, want at least %v", n, elapsed, (n-1)*interval)
	}
}

func TestDo_BoundsConcurrency(t *testing.T) {
	l := New(1, 0)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(context.Context) error {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt32(&peak); p != 1 {
		t.Fatalf("expected at most 1 in-flight call, saw %d", p)
	}
}

func TestDo_FailureDoesNotPoisonQueue(t *testing.T) {
	l := New(1, 0)
	boom := errors.New("boom")

	if err := l.Do(context.Background(), func(context.Context) error { return boom }); err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := l.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Errorf("follow-up call failed: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("limiter blocked after a failed task")
	}
}

func TestDo_RespectsContext(t *testing.T) {
	l := New(1, time.Hour)
	// First call claims the spacing window.
	_ = l.Do(context.Background(), func(context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(context.Context) error { return nil })
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
