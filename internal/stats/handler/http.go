// Package handler exposes the coordinator statistics over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/platform/rbac"
	policydomain "alumni-tracker/internal/policy/domain"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/stats"
)

// Service defines the statistics operations used by the handler.
type Service interface {
	Summary(ctx context.Context) (*stats.Summary, error)
}

// Handler serves GET /v1/stats.
type Handler struct {
	service Service
	gate    engine.Gate
	logger  *slog.Logger
}

// New constructs a stats handler.
func New(svc Service, gate engine.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, gate: gate, logger: logger}
}

// Register mounts the stats endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/stats", h.HandleSummary)
}

// HandleSummary handles GET /v1/stats.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionStatsRead); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	s, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stats summary failed", "error", err)
		httputil.WriteError(w, httputil.Internal())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}
