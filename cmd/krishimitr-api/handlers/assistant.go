// Package handlers provides HTTP handlers for the assistant dev backend.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/krishimitr/assistant/internal/domain"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/remote"
)

const maxBodyBytes = 64 << 10

// Service answers queries and serves the knowledge base.
type Service interface {
	Ask(ctx context.Context, query string) (*remote.AskResponse, error)
	Snapshot(ctx context.Context) ([]remote.SnapshotItem, error)
	Count(ctx context.Context) (int, error)
}

// AssistantHandler serves the assistant API.
type AssistantHandler struct {
	logger  *observability.Logger
	service Service
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(logger *observability.Logger, service Service) *AssistantHandler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &AssistantHandler{
		logger:  logger.WithComponent("api"),
		service: service,
	}
}

// Health handles GET /health.
func (h *AssistantHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "healthy",
		"service": "krishimitr-api",
	}
	if n, err := h.service.Count(r.Context()); err == nil {
		resp["records"] = n
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// KnowledgeBase handles GET /api/knowledge-base.
func (h *AssistantHandler) KnowledgeBase(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Snapshot failed")
		h.writeError(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// Ask handles POST /api/ask.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req remote.AskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.Ask(r.Context(), req.Query)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Type == domain.ErrorTypeValidation {
			h.writeError(w, http.StatusBadRequest, de.Message)
			return
		}
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Ask failed")
		h.writeError(w, http.StatusInternalServerError, "Backend services unavailable.")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *AssistantHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *AssistantHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, remote.ErrorResponse{Error: message})
}
