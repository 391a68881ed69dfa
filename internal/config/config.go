package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every knob of the fetch-enrich-persist pipeline.
type Config struct {
	// Upstream catalog API (MyAnimeList v2)
	MALBaseURL  string        `envconfig:"MAL_BASE_URL" default:"https://api.myanimelist.net/v2"`
	MALClientID string        `envconfig:"MAL_CLIENT_ID" required:"true"`
	MALTimeout  time.Duration `envconfig:"MAL_TIMEOUT" default:"10s"`

	// Enrichment API (Jikan)
	JikanBaseURL string        `envconfig:"JIKAN_BASE_URL" default:"https://api.jikan.moe/v4"`
	JikanTimeout time.Duration `envconfig:"JIKAN_TIMEOUT" default:"10s"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Retry policy for single HTTP fetches
	FetchMaxAttempts int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"5"`
	FetchBaseDelay   time.Duration `envconfig:"FETCH_BASE_DELAY" default:"1s"`

	// Enrichment rate limiting
	EnrichMinInterval   time.Duration `envconfig:"ENRICH_MIN_INTERVAL" default:"350ms"`
	EnrichMaxConcurrent int           `envconfig:"ENRICH_MAX_CONCURRENT" default:"1"`

	// Backfill sweep
	BackfillStartYear     int           `envconfig:"BACKFILL_START_YEAR" default:"1980"`
	PageSize              int           `envconfig:"PAGE_SIZE" default:"100"`
	PageDelay             time.Duration `envconfig:"PAGE_DELAY" default:"500ms"`
	PartitionMaxAttempts  int           `envconfig:"PARTITION_MAX_ATTEMPTS" default:"5"`
	PartitionInitialDelay time.Duration `envconfig:"PARTITION_INITIAL_DELAY" default:"1s"`
	MinScore              float64       `envconfig:"MIN_SCORE" default:"7"`

	// Score refresher
	RefreshSelectLimit int           `envconfig:"REFRESH_SELECT_LIMIT" default:"50"`
	RefreshBatchSize   int           `envconfig:"REFRESH_BATCH_SIZE" default:"5"`
	RefreshBatchDelay  time.Duration `envconfig:"REFRESH_BATCH_DELAY" default:"1s"`
	RefreshMaxAttempts int           `envconfig:"REFRESH_MAX_ATTEMPTS" default:"3"`
	RefreshRetryDelay  time.Duration `envconfig:"REFRESH_RETRY_DELAY" default:"1s"`
	RefreshTimeout     time.Duration `envconfig:"REFRESH_TIMEOUT" default:"25s"`

	// Popularity refresher
	PopularityConcurrency int `envconfig:"POPULARITY_CONCURRENCY" default:"10"`
	PopularityMaxAttempts int `envconfig:"POPULARITY_MAX_ATTEMPTS" default:"5"`

	// Schedules (cron specs); empty disables the job
	RefreshCron    string `envconfig:"REFRESH_CRON" default:"0 */6 * * *"`
	SeasonSyncCron string `envconfig:"SEASON_SYNC_CRON" default:"0 3 * * *"`

	// Optional infrastructure
	NATSURL          string        `envconfig:"NATS_URL" default:""`
	RedisURL         string        `envconfig:"REDIS_URL" default:""`
	ResponseCacheTTL time.Duration `envconfig:"RESPONSE_CACHE_TTL" default:"5m"`

	// Public surface
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:""`
	AdminJWTSecret string `envconfig:"ADMIN_JWT_SECRET" default:""`
}

// Load reads the pipeline configuration from the environment, honoring a
// local .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.FetchMaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1, got %d", c.FetchMaxAttempts)
	}
	if c.EnrichMaxConcurrent < 1 {
		return fmt.Errorf("ENRICH_MAX_CONCURRENT must be at least 1, got %d", c.EnrichMaxConcurrent)
	}
	if c.BackfillStartYear < 1900 {
		return fmt.Errorf("BACKFILL_START_YEAR looks wrong: %d", c.BackfillStartYear)
	}
	return nil
}
