// Package refresher keeps persisted scores and popularity ranks current for
// titles that are still airing.
package refresher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/mal"
	"github.com/example/shiki-proxy/internal/metrics"
	"github.com/example/shiki-proxy/internal/store"
)

// Summary reports one refresh cycle.
type Summary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ScoreRefresher re-reads mean score and airing status for currently airing
// titles in small concurrent batches, pacing between batches so one cycle
// never bursts the upstream quota.
type ScoreRefresher struct {
	Log     *zap.Logger
	Catalog mal.Provider
	Store   store.Store

	SelectLimit int
	BatchSize   int
	BatchDelay  time.Duration

	// Per-title retry: MaxAttempts tries with a linear backoff, the wait
	// after the n-th failure being n * RetryDelay.
	MaxAttempts int
	RetryDelay  time.Duration

	// Timeout bounds a whole cycle. A cycle that overruns stops issuing
	// work and reports context.DeadlineExceeded; rows already written stay.
	Timeout time.Duration
}

func NewScoreRefresher(log *zap.Logger, catalog mal.Provider, st store.Store) *ScoreRefresher {
	return &ScoreRefresher{
		Log:         log,
		Catalog:     catalog,
		Store:       st,
		SelectLimit: 50,
		BatchSize:   5,
		BatchDelay:  time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Second,
		Timeout:     25 * time.Second,
	}
}

// Run executes one full refresh cycle.
func (r *ScoreRefresher) Run(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	ids, err := r.Store.AiringIDs(ctx, r.SelectLimit)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Total: len(ids)}
	if len(ids) == 0 {
		return sum, nil
	}

	var (
		mu      sync.Mutex
		success int
	)
	for start := 0; start < len(ids); start += r.BatchSize {
		if start > 0 {
			if err := sleep(ctx, r.BatchDelay); err != nil {
				sum.Success = success
				sum.Failed = sum.Total - success
				return sum, err
			}
		}

		end := start + r.BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				if err := r.refreshOne(ctx, id); err != nil {
					r.Log.Warn("score refresh failed", zap.Int("id", id), zap.Error(err))
					metrics.ScoreRefreshes.WithLabelValues("failed").Inc()
					return
				}
				metrics.ScoreRefreshes.WithLabelValues("ok").Inc()
				mu.Lock()
				success++
				mu.Unlock()
			}(id)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	sum.Success = success
	sum.Failed = sum.Total - success
	r.Log.Info("score refresh cycle done",
		zap.Int("total", sum.Total),
		zap.Int("success", sum.Success),
		zap.Int("failed", sum.Failed))
	return sum, ctx.Err()
}

func (r *ScoreRefresher) refreshOne(ctx context.Context, id int) error {
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, time.Duration(attempt-1)*r.RetryDelay); err != nil {
				return err
			}
		}
		node, err := r.Catalog.AnimeDetail(ctx, id, mal.ScoreFields)
		if err != nil {
			lastErr = err
			continue
		}
		return r.Store.UpdateScore(ctx, id, node.Mean, node.Status)
	}
	return lastErr
}

// PopularityRefresher fills in popularity ranks for rows that are missing
// one, with a wider concurrency window than the score cycle since the
// fallback source is not quota-bound the same way.
type PopularityRefresher struct {
	Log    *zap.Logger
	Lookup PopularityLookup
	Store  store.Store

	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

type PopularityLookup interface {
	Popularity(ctx context.Context, id int) (int, error)
}

func NewPopularityRefresher(log *zap.Logger, lookup PopularityLookup, st store.Store) *PopularityRefresher {
	return &PopularityRefresher{
		Log:         log,
		Lookup:      lookup,
		Store:       st,
		Concurrency: 10,
		MaxAttempts: 5,
		RetryDelay:  time.Second,
	}
}

// Run backfills popularity for every row missing it.
func (r *PopularityRefresher) Run(ctx context.Context) (Summary, error) {
	ids, err := r.Store.MissingPopularityIDs(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Total: len(ids)}
	if len(ids) == 0 {
		return sum, nil
	}

	var (
		mu      sync.Mutex
		success int
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, r.Concurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := r.refreshOne(ctx, id); err != nil {
				r.Log.Warn("popularity refresh failed", zap.Int("id", id), zap.Error(err))
				return
			}
			mu.Lock()
			success++
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	sum.Success = success
	sum.Failed = sum.Total - success
	r.Log.Info("popularity refresh done",
		zap.Int("total", sum.Total),
		zap.Int("success", sum.Success),
		zap.Int("failed", sum.Failed))
	return sum, ctx.Err()
}

func (r *PopularityRefresher) refreshOne(ctx context.Context, id int) error {
	delay := r.RetryDelay
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
		rank, err := r.Lookup.Popularity(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		return r.Store.UpdatePopularity(ctx, id, rank)
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
