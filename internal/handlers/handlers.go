// Package handlers wires the public HTTP surface: seasonal reads, the
// populate and refresh triggers, and the keepalive probe.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/backfill"
	"github.com/example/shiki-proxy/internal/cache"
	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/mal"
	"github.com/example/shiki-proxy/internal/platform/api"
	"github.com/example/shiki-proxy/internal/platform/auth"
	"github.com/example/shiki-proxy/internal/refresher"
	"github.com/example/shiki-proxy/internal/store"
)

type Deps struct {
	Log          *zap.Logger
	Catalog      mal.Provider
	Normalizer   *catalog.Normalizer
	Orchestrator *backfill.Orchestrator
	Scores       *refresher.ScoreRefresher
	Popularity   *refresher.PopularityRefresher
	Store        store.Store
	Cache        cache.ResponseCache
	PageSize     int

	// AdminSecret guards the mutating trigger routes; empty disables the
	// guard for local runs.
	AdminSecret string
}

// Mount attaches every route under /api and installs the NOT_FOUND fallback.
func Mount(r chi.Router, d Deps) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/anime/{year}/{season}", GetSeason(d))
		r.Get("/keepalive", KeepAlive(d))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(d.AdminSecret))
			r.Get("/populate", Populate(d))
			r.Get("/populate/{year}/{season}", Populate(d))
			r.Get("/update-scores", RefreshScores(d))
			r.Get("/update-popularity", RefreshPopularity(d))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.NotFoundRoute(w, r.URL.Path)
	})
}
