package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/recallhq/deepmemory/internal/models"
	"github.com/recallhq/deepmemory/internal/retrieval"
	"github.com/recallhq/deepmemory/internal/updater"
)

// MemoryHandler exposes the ingestion and retrieval operations.
type MemoryHandler struct {
	updater       *updater.Updater
	retriever     *retrieval.Retriever
	updateTimeout time.Duration
	logger        *slog.Logger
}

func NewMemoryHandler(u *updater.Updater, r *retrieval.Retriever, updateTimeout time.Duration, logger *slog.Logger) *MemoryHandler {
	return &MemoryHandler{
		updater:       u,
		retriever:     r,
		updateTimeout: updateTimeout,
		logger:        logger,
	}
}

// Update handles POST /memory/update.
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateMemoryIndexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	if req.Async {
		// Fire-and-forget with its own deadline, detached from the
		// request connection.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), h.updateTimeout)
			defer cancel()
			resp := h.updater.Update(ctx, &req)
			if resp.Status == models.StatusError {
				h.logger.Error("async update failed", "session", req.SessionID, "error", resp.Error)
			}
		}()
		writeJSON(w, http.StatusAccepted, models.UpdateMemoryIndexResponse{Status: models.StatusProcessed})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.updateTimeout)
	defer cancel()

	resp := h.updater.Update(ctx, &req)
	status := http.StatusOK
	if resp.Status == models.StatusError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// Retrieve handles POST /memory/retrieve.
func (h *MemoryHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrieveContextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserInput == "" {
		writeError(w, http.StatusBadRequest, "user_input is required")
		return
	}

	resp, err := h.retriever.Retrieve(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
