package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/backfill"
	"github.com/example/shiki-proxy/internal/cache"
	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/config"
	"github.com/example/shiki-proxy/internal/enrich"
	"github.com/example/shiki-proxy/internal/handlers"
	"github.com/example/shiki-proxy/internal/mal"
	platformcfg "github.com/example/shiki-proxy/internal/platform/config"
	"github.com/example/shiki-proxy/internal/platform/db"
	"github.com/example/shiki-proxy/internal/platform/httpserver"
	"github.com/example/shiki-proxy/internal/platform/logging"
	"github.com/example/shiki-proxy/internal/platform/natsconn"
	"github.com/example/shiki-proxy/internal/platform/run"
	"github.com/example/shiki-proxy/internal/queue"
	"github.com/example/shiki-proxy/internal/ratelimit"
	"github.com/example/shiki-proxy/internal/refresher"
	"github.com/example/shiki-proxy/internal/retryhttp"
	"github.com/example/shiki-proxy/internal/store"
)

func main() {
	app := platformcfg.Load()
	log, err := logging.New(app.ServiceName, app.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", zap.Error(err))
		run.Exit(1)
	}

	pool, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Error("database connect", zap.Error(err))
		run.Exit(1)
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool)

	// Upstream clients share the retry policy but not the transport, so a
	// stall on one API never queues behind the other.
	malClient := mal.New(cfg.MALBaseURL, cfg.MALClientID,
		retryhttp.New(log, cfg.MALTimeout, cfg.FetchMaxAttempts, cfg.FetchBaseDelay))
	jikanClient := enrich.NewClient(cfg.JikanBaseURL,
		retryhttp.New(log, cfg.JikanTimeout, cfg.FetchMaxAttempts, cfg.FetchBaseDelay))

	limiter := ratelimit.New(cfg.EnrichMaxConcurrent, cfg.EnrichMinInterval)
	enricher := enrich.New(log, enrich.NewCache(), limiter, jikanClient)

	norm := catalog.NewNormalizer(cfg.MinScore, enricher.Enrich)

	orch := backfill.New(log, mal.NewPageFetcher(malClient, cfg.PageSize), norm, st)
	orch.StartYear = cfg.BackfillStartYear
	orch.MaxAttempts = cfg.PartitionMaxAttempts
	orch.InitialRetryDelay = cfg.PartitionInitialDelay
	orch.PageDelay = cfg.PageDelay

	scores := refresher.NewScoreRefresher(log, malClient, st)
	scores.SelectLimit = cfg.RefreshSelectLimit
	scores.BatchSize = cfg.RefreshBatchSize
	scores.BatchDelay = cfg.RefreshBatchDelay
	scores.MaxAttempts = cfg.RefreshMaxAttempts
	scores.RetryDelay = cfg.RefreshRetryDelay
	scores.Timeout = cfg.RefreshTimeout

	popularity := refresher.NewPopularityRefresher(log, jikanClient, st)
	popularity.Concurrency = cfg.PopularityConcurrency
	popularity.MaxAttempts = cfg.PopularityMaxAttempts

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = natsconn.Connect(natsconn.Options{URL: cfg.NATSURL})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			run.Exit(1)
		}
		defer nc.Close()
	}

	var respCache cache.ResponseCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.ResponseCacheTTL)
		if err != nil {
			log.Error("redis connect", zap.Error(err))
			run.Exit(1)
		}
		defer rc.Close()
		respCache = rc
	} else {
		respCache = cache.NewMemoryCache(cfg.ResponseCacheTTL, nc, "cache.invalidate")
	}

	// Read endpoints serve one page straight through; enrichment only runs
	// inside the persisting pipeline.
	readNorm := catalog.NewNormalizer(cfg.MinScore, nil)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.ParseOrigins(cfg.AllowedOrigins))
	r.Handle("/metrics", promhttp.Handler())
	handlers.Mount(r, handlers.Deps{
		Log:          log,
		Catalog:      malClient,
		Normalizer:   readNorm,
		Orchestrator: orch,
		Scores:       scores,
		Popularity:   popularity,
		Store:        st,
		Cache:        respCache,
		PageSize:     cfg.PageSize,
		AdminSecret:  cfg.AdminJWTSecret,
	})

	srv := httpserver.New(httpserver.Options{Addr: app.HTTP.Addr, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		startSchedules(ctx, log, cfg, nc, scores, popularity, orch)

		if nc != nil {
			wrk, err := queue.NewWorker(log, nc, queue.Handlers{
				Partition: func(ctx context.Context, year int, season string) error {
					_, err := orch.RunPartition(ctx, year, season)
					return err
				},
				Popularity: func(ctx context.Context) error {
					_, err := popularity.Run(ctx)
					return err
				},
			})
			if err != nil {
				return err
			}
			go func() {
				if err := wrk.Run(ctx); err != nil {
					log.Error("backfill worker stopped", zap.Error(err))
				}
			}()
		}

		go func() {
			<-ctx.Done()
			run.Shutdown(srv.Shutdown)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// startSchedules registers the recurring jobs: periodic score refresh and the
// daily sync of the current year's partitions.
func startSchedules(ctx context.Context, log *zap.Logger, cfg *config.Config, nc *nats.Conn,
	scores *refresher.ScoreRefresher, popularity *refresher.PopularityRefresher, orch *backfill.Orchestrator) {

	c := cron.New()

	if cfg.RefreshCron != "" {
		_, err := c.AddFunc(cfg.RefreshCron, func() {
			if sum, err := scores.Run(ctx); err != nil {
				log.Warn("scheduled score refresh failed", zap.Error(err))
			} else {
				log.Info("scheduled score refresh done", zap.Int("success", sum.Success), zap.Int("failed", sum.Failed))
			}
			if _, err := popularity.Run(ctx); err != nil {
				log.Warn("scheduled popularity refresh failed", zap.Error(err))
			}
		})
		if err != nil {
			log.Warn("invalid refresh cron spec", zap.String("spec", cfg.RefreshCron), zap.Error(err))
		}
	}

	if cfg.SeasonSyncCron != "" {
		_, err := c.AddFunc(cfg.SeasonSyncCron, func() {
			year := time.Now().Year()
			if nc != nil {
				pub, err := queue.NewPublisher(nc)
				if err == nil {
					if err := pub.EnqueueYear(year); err != nil {
						log.Warn("season sync enqueue failed", zap.Error(err))
					}
					return
				}
				log.Warn("jetstream unavailable, running season sync inline", zap.Error(err))
			}
			for _, season := range catalog.Seasons {
				if _, err := orch.RunPartition(ctx, year, season); err != nil {
					log.Warn("season sync partition failed",
						zap.Int("year", year), zap.String("season", season), zap.Error(err))
				}
			}
		})
		if err != nil {
			log.Warn("invalid season sync cron spec", zap.String("spec", cfg.SeasonSyncCron), zap.Error(err))
		}
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}
