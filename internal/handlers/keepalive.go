package handlers

import (
	"net/http"
	"time"

	"github.com/example/shiki-proxy/internal/platform/api"
)

// KeepAlive handles GET /api/keepalive. It issues a trivial read so hosting
// platforms that pause idle databases see regular activity.
func KeepAlive(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.KeepAlive(r.Context()); err != nil {
			api.Internal(w, "Keepalive query failed", err.Error())
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
