// Package backfill drives the full (year × season) catalog sweep: page
// fetch, normalization and persistence per partition, with partition-level
// retry and inter-request pacing.
package backfill

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/mal"
	"github.com/example/shiki-proxy/internal/metrics"
	"github.com/example/shiki-proxy/internal/store"
)

// Partition lifecycle states, logged as each partition progresses.
type State string

const (
	StatePending     State = "pending"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StatePersisting  State = "persisting"
	StateRetrying    State = "retrying"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

type Orchestrator struct {
	Log        *zap.Logger
	Fetcher    *mal.PageFetcher
	Normalizer *catalog.Normalizer
	Store      store.Store

	StartYear int
	EndYear   int

	// Partition retry: MaxAttempts tries with the delay doubling from
	// InitialRetryDelay. The growth is deliberately uncapped; with the
	// default 5 attempts the last wait is 8x the initial delay.
	MaxAttempts       int
	InitialRetryDelay time.Duration

	// PageDelay is enforced between successive page requests within a
	// partition regardless of upstream latency.
	PageDelay time.Duration
}

type Summary struct {
	Partitions int
	Failed     int
	Stored     int
}

func New(log *zap.Logger, fetcher *mal.PageFetcher, norm *catalog.Normalizer, st store.Store) *Orchestrator {
	return &Orchestrator{
		Log:               log,
		Fetcher:           fetcher,
		Normalizer:        norm,
		Store:             st,
		StartYear:         1980,
		EndYear:           time.Now().Year(),
		MaxAttempts:       5,
		InitialRetryDelay: time.Second,
		PageDelay:         500 * time.Millisecond,
	}
}

// Run sweeps every partition in (StartYear..EndYear) × seasons. A failed
// partition is logged and skipped; it never halts the sweep. Only context
// cancellation stops the run early.
func (o *Orchestrator) Run(ctx context.Context) Summary {
	var sum Summary
	for year := o.StartYear; year <= o.EndYear; year++ {
		for _, season := range catalog.Seasons {
			if ctx.Err() != nil {
				return sum
			}
			sum.Partitions++
			stored, err := o.RunPartition(ctx, year, season)
			sum.Stored += stored
			if err != nil {
				sum.Failed++
			}
		}
	}
	return sum
}

// RunPartition backfills one (year, season) with up to MaxAttempts tries.
func (o *Orchestrator) RunPartition(ctx context.Context, year int, season string) (int, error) {
	if !catalog.ValidSeason(season) {
		return 0, fmt.Errorf("backfill: invalid season %q", season)
	}

	log := o.Log.With(zap.Int("year", year), zap.String("season", season))
	log.Info("partition scheduled", zap.String("state", string(StatePending)))

	delay := o.InitialRetryDelay
	var lastErr error
	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		stored, err := o.sweep(ctx, log, year, season)
		if err == nil {
			log.Info("partition complete",
				zap.String("state", string(StateDone)),
				zap.Int("stored", stored),
				zap.Int("attempt", attempt))
			metrics.PartitionsCompleted.WithLabelValues("done").Inc()
			return stored, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == o.MaxAttempts {
			break
		}

		log.Warn("partition attempt failed",
			zap.String("state", string(StateRetrying)),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		metrics.PartitionRetries.Inc()
		if err := sleep(ctx, delay); err != nil {
			break
		}
		delay *= 2
	}

	log.Error("partition failed",
		zap.String("state", string(StateFailed)),
		zap.Int("attempts", o.MaxAttempts),
		zap.Error(lastErr))
	metrics.PartitionsCompleted.WithLabelValues("failed").Inc()
	return 0, lastErr
}

// sweep pages through one partition once, normalizing and persisting each
// page as it arrives. Enrichment failures degrade inside the normalizer;
// fetch and persist failures abort the sweep and surface to the retry loop.
func (o *Orchestrator) sweep(ctx context.Context, log *zap.Logger, year int, season string) (int, error) {
	cursor := o.Fetcher.Partition(year, season)
	total := 0

	for pageNum := 0; ; pageNum++ {
		if pageNum > 0 {
			if err := sleep(ctx, o.PageDelay); err != nil {
				return total, err
			}
		}

		log.Debug("fetching page", zap.String("state", string(StateFetching)), zap.Int("offset", cursor.Offset()))
		page, err := cursor.Next(ctx)
		if err != nil {
			return total, err
		}
		if page == nil {
			return total, nil
		}
		metrics.PagesFetched.WithLabelValues(season).Inc()

		log.Debug("normalizing page", zap.String("state", string(StateNormalizing)), zap.Int("raw", len(page.Data)))
		entries := o.Normalizer.Normalize(ctx, page, year, season)
		if len(entries) == 0 {
			continue
		}

		log.Debug("persisting page", zap.String("state", string(StatePersisting)), zap.Int("entries", len(entries)))
		if err := o.Store.UpsertEntries(ctx, entries); err != nil {
			return total, err
		}
		total += len(entries)
	}
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
