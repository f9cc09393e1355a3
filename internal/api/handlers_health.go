package api

import (
	"context"
	"net/http"
	"time"

	"github.com/recallhq/deepmemory/internal/graphstore"
	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/store"
	"github.com/recallhq/deepmemory/internal/vectorstore"
)

// HealthChecker is satisfied by the embedding providers that expose a
// health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db       *store.DB
	embedder HealthChecker
	qdrant   *vectorstore.QdrantClient
	graph    *graphstore.Neo4jClient
}

func NewHealthHandler(db *store.DB, embedder HealthChecker, qdrant *vectorstore.QdrantClient, graph *graphstore.Neo4jClient) *HealthHandler {
	return &HealthHandler{db: db, embedder: embedder, qdrant: qdrant, graph: graph}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := models.HealthResponse{Status: "ok"}

	resp.DB = check(h.db.Ping())
	if h.embedder != nil {
		resp.Embedder = check(h.embedder.HealthCheck(ctx))
	} else {
		resp.Embedder = models.ServiceCheck{Status: "ok"}
	}
	resp.Qdrant = check(h.qdrant.HealthCheck(ctx))
	resp.Graph = check(h.graph.HealthCheck(ctx))

	status := http.StatusOK
	for _, c := range []models.ServiceCheck{resp.DB, resp.Embedder, resp.Qdrant, resp.Graph} {
		if c.Status != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, resp)
}

func check(err error) models.ServiceCheck {
	if err != nil {
		return models.ServiceCheck{Status: "error", Message: err.Error()}
	}
	return models.ServiceCheck{Status: "ok"}
}
