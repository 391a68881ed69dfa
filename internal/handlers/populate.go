package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/platform/api"
)

// Populate handles GET /api/populate and GET /api/populate/{year}/{season}.
// The run is synchronous; a full sweep over every season can take a long
// time, so callers are expected to use the scoped form for anything
// interactive.
func Populate(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawYear := chi.URLParam(r, "year")
		if rawYear == "" {
			sum := d.Orchestrator.Run(r.Context())
			d.Log.Info("full backfill finished",
				zap.Int("partitions", sum.Partitions),
				zap.Int("failed", sum.Failed),
				zap.Int("stored", sum.Stored))
			api.WriteJSON(w, http.StatusOK, map[string]any{
				"status":     "completed",
				"partitions": sum.Partitions,
				"failed":     sum.Failed,
				"stored":     sum.Stored,
			})
			return
		}

		year, err := strconv.Atoi(rawYear)
		if err != nil || year < 1900 {
			api.BadRequest(w, "Invalid year", rawYear)
			return
		}
		season := chi.URLParam(r, "season")
		if !catalog.ValidSeason(season) {
			api.BadRequest(w, "Invalid season", "use winter, spring, summer or fall")
			return
		}

		stored, err := d.Orchestrator.RunPartition(r.Context(), year, season)
		if err != nil {
			api.Internal(w, "Population failed", err.Error())
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "completed",
			"year":   year,
			"season": season,
			"stored": stored,
		})
	}
}
