// Command backfill runs the catalog pipeline from the shell: a full
// historical sweep by default, one partition with -year/-season, or a
// popularity fill with -popularity.
package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/backfill"
	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/config"
	"github.com/example/shiki-proxy/internal/enrich"
	"github.com/example/shiki-proxy/internal/mal"
	platformcfg "github.com/example/shiki-proxy/internal/platform/config"
	"github.com/example/shiki-proxy/internal/platform/db"
	"github.com/example/shiki-proxy/internal/platform/logging"
	"github.com/example/shiki-proxy/internal/platform/run"
	"github.com/example/shiki-proxy/internal/ratelimit"
	"github.com/example/shiki-proxy/internal/refresher"
	"github.com/example/shiki-proxy/internal/retryhttp"
	"github.com/example/shiki-proxy/internal/store"
)

func main() {
	var (
		year       = flag.Int("year", 0, "backfill a single year (requires -season)")
		season     = flag.String("season", "", "backfill a single season: winter, spring, summer or fall")
		popularity = flag.Bool("popularity", false, "fill missing popularity ranks instead of backfilling")
	)
	flag.Parse()

	app := platformcfg.Load()
	log, err := logging.New("shiki-backfill", app.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", zap.Error(err))
		run.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connect", zap.Error(err))
		run.Exit(1)
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool)

	jikanClient := enrich.NewClient(cfg.JikanBaseURL,
		retryhttp.New(log, cfg.JikanTimeout, cfg.FetchMaxAttempts, cfg.FetchBaseDelay))

	if *popularity {
		pop := refresher.NewPopularityRefresher(log, jikanClient, st)
		pop.Concurrency = cfg.PopularityConcurrency
		pop.MaxAttempts = cfg.PopularityMaxAttempts
		sum, err := pop.Run(ctx)
		if err != nil {
			log.Error("popularity fill failed", zap.Error(err))
			run.Exit(1)
		}
		log.Info("popularity fill done", zap.Int("total", sum.Total), zap.Int("failed", sum.Failed))
		return
	}

	malClient := mal.New(cfg.MALBaseURL, cfg.MALClientID,
		retryhttp.New(log, cfg.MALTimeout, cfg.FetchMaxAttempts, cfg.FetchBaseDelay))
	limiter := ratelimit.New(cfg.EnrichMaxConcurrent, cfg.EnrichMinInterval)
	enricher := enrich.New(log, enrich.NewCache(), limiter, jikanClient)

	orch := backfill.New(log, mal.NewPageFetcher(malClient, cfg.PageSize),
		catalog.NewNormalizer(cfg.MinScore, enricher.Enrich), st)
	orch.StartYear = cfg.BackfillStartYear
	orch.MaxAttempts = cfg.PartitionMaxAttempts
	orch.InitialRetryDelay = cfg.PartitionInitialDelay
	orch.PageDelay = cfg.PageDelay

	if *year != 0 || *season != "" {
		if *year == 0 || !catalog.ValidSeason(*season) {
			log.Error("single-partition mode needs -year and a valid -season")
			run.Exit(2)
		}
		stored, err := orch.RunPartition(ctx, *year, *season)
		if err != nil {
			log.Error("partition backfill failed", zap.Error(err))
			run.Exit(1)
		}
		log.Info("partition backfill done", zap.Int("stored", stored))
		return
	}

	sum := orch.Run(ctx)
	log.Info("full backfill done",
		zap.Int("partitions", sum.Partitions),
		zap.Int("failed", sum.Failed),
		zap.Int("stored", sum.Stored))
	if sum.Failed > 0 {
		run.Exit(1)
	}
}
