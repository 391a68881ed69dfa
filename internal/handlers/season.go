package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/platform/api"
	"github.com/example/shiki-proxy/internal/platform/httpserver"
)

// GetSeason handles GET /api/anime/{year}/{season}. It serves one upstream
// page straight through (filtered and sorted, no enrichment) so clients can
// browse seasons that were never backfilled.
func GetSeason(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := strconv.Atoi(chi.URLParam(r, "year"))
		if err != nil || year < 1900 {
			api.BadRequest(w, "Invalid year", chi.URLParam(r, "year"))
			return
		}
		season := chi.URLParam(r, "season")
		if !catalog.ValidSeason(season) {
			api.BadRequest(w, "Invalid season", "use winter, spring, summer or fall")
			return
		}

		limit := parseIntParam(r, "limit", d.PageSize, 1, 500)
		offset := parseIntParam(r, "offset", 0, 0, 10000)

		key := fmt.Sprintf("season:%d:%s:%d:%d", year, season, limit, offset)
		var cached []catalog.Entry
		if ok, _ := d.Cache.Get(r.Context(), key, &cached); ok {
			api.WriteJSON(w, http.StatusOK, cached)
			return
		}

		page, err := d.Catalog.SeasonPage(r.Context(), year, season, limit, offset)
		if err != nil {
			d.Log.Error("seasonal fetch failed",
				zap.String("request_id", httpserver.RequestIDFromContext(r.Context())),
				zap.Int("year", year),
				zap.String("season", season),
				zap.Error(err))
			api.Internal(w, "Failed to fetch seasonal anime", err.Error())
			return
		}

		entries := d.Normalizer.Normalize(r.Context(), page, year, season)
		if entries == nil {
			entries = []catalog.Entry{}
		}

		if err := d.Cache.Set(r.Context(), key, entries); err != nil {
			d.Log.Warn("response cache write failed", zap.String("key", key), zap.Error(err))
		}
		api.WriteJSON(w, http.StatusOK, entries)
	}
}

func parseIntParam(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
