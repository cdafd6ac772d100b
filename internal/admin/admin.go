// Package admin serves the proxy's read-only operator endpoints: cache and
// queue statistics, a listing of cached objects, and pprof.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/die-net/proxycache/internal/cache"
	"github.com/die-net/proxycache/internal/proxy"
)

// Source is the part of the proxy the admin endpoints read from.
type Source interface {
	Stats() proxy.Stats
	Cache() *cache.Cache
}

// NewHandler returns the admin router.
func NewHandler(src Source, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, src.Stats())
	})
	r.Get("/cache", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, src.Cache().Snapshot())
	})
	r.Mount("/debug", middleware.Profiler())

	return r
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("admin: encode response")
	}
}
