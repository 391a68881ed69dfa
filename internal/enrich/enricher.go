package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/metrics"
	"github.com/example/shiki-proxy/internal/ratelimit"
)

// Lookup is the port the Enricher fetches through; satisfied by *Client.
type Lookup interface {
	Streaming(ctx context.Context, id int) ([]catalog.StreamingService, error)
}

// Enricher resolves streaming services through the cache and the shared rate
// limiter. Failures are logged and swallowed.
type Enricher struct {
	Log     *zap.Logger
	Cache   *Cache
	Limiter *ratelimit.Limiter
	Client  Lookup
}

func New(log *zap.Logger, cache *Cache, limiter *ratelimit.Limiter, client Lookup) *Enricher {
	return &Enricher{Log: log, Cache: cache, Limiter: limiter, Client: client}
}

// Enrich returns the streaming services for id, or an empty slice when the
// lookup fails for any reason. Successful lookups are cached for the rest of
// the run.
func (e *Enricher) Enrich(ctx context.Context, id int) []catalog.StreamingService {
	if cached, ok := e.Cache.Get(id); ok {
		metrics.EnrichCacheHits.Inc()
		return cached
	}
	metrics.EnrichCacheMisses.Inc()

	var services []catalog.StreamingService
	err := e.Limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		services, err = e.Client.Streaming(ctx, id)
		return err
	})
	if err != nil {
		metrics.EnrichFailures.Inc()
		if e.Log != nil {
			e.Log.Warn("streaming lookup failed", zap.Int("anime_id", id), zap.Error(err))
		}
		return []catalog.StreamingService{}
	}
	if services == nil {
		services = []catalog.StreamingService{}
	}

	e.Cache.Set(id, services)
	return services
}
