package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/platform/api"
)

// RefreshScores handles GET /api/update-scores. A cycle that overruns its
// deadline maps to 504; rows refreshed before the deadline keep their
// updates either way.
func RefreshScores(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := d.Scores.Run(r.Context())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				d.Log.Warn("score refresh deadline exceeded",
					zap.Int("total", sum.Total),
					zap.Int("success", sum.Success))
				api.GatewayTimeout(w, "Score update timed out", "partial results were persisted")
				return
			}
			api.Internal(w, "Score update failed", err.Error())
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "completed",
			"summary": sum,
		})
	}
}

// RefreshPopularity handles GET /api/update-popularity.
func RefreshPopularity(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := d.Popularity.Run(r.Context())
		if err != nil {
			api.Internal(w, "Popularity update failed", err.Error())
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "completed",
			"summary": sum,
		})
	}
}
