package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/recallhq/deepmemory/internal/ratelimit"
	"github.com/recallhq/deepmemory/internal/store"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Memory  *MemoryHandler
	Health  *HealthHandler
	Audit   *store.AuditStore
	Limiter *ratelimit.Limiter
	APIKey  string
	Logger  *slog.Logger
}

// NewRouter builds the chi router. /health is open; the memory endpoints
// sit behind bearer auth, rate limiting, and the audit trail.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(deps.Logger))
	r.Use(Recovery(deps.Logger))
	r.Use(CORS)

	r.Get("/health", deps.Health.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.APIKey))
		r.Use(RateLimit(deps.Limiter))
		r.Use(Audit(deps.Audit, deps.Logger))

		r.Post("/memory/update", deps.Memory.Update)
		r.Post("/memory/retrieve", deps.Memory.Retrieve)
	})

	return r
}
