// Package handler exposes the audit trail to coordinators over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"alumni-tracker/internal/audit/domain"
	auditrepo "alumni-tracker/internal/audit/repository"
	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/platform/rbac"
	policydomain "alumni-tracker/internal/policy/domain"
	"alumni-tracker/internal/policy/engine"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Lister returns recent audit entries.
type Lister interface {
	ListRecent(ctx context.Context, filter auditrepo.ListFilter) ([]*domain.AuditLog, error)
}

// Handler serves GET /v1/audit-logs.
type Handler struct {
	repo   Lister
	gate   engine.Gate
	logger *slog.Logger
}

// New constructs an audit handler.
func New(repo Lister, gate engine.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, gate: gate, logger: logger}
}

// Register mounts the audit endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/audit-logs", h.HandleList)
}

// HandleList handles GET /v1/audit-logs?actor_id=&action=&resource=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionAuditRead); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	q := r.URL.Query()
	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}
	logs, err := h.repo.ListRecent(r.Context(), auditrepo.ListFilter{
		ActorID:  q.Get("actor_id"),
		Action:   q.Get("action"),
		Resource: q.Get("resource"),
		Limit:    limit,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit logs failed", "error", err)
		httputil.WriteError(w, httputil.Internal())
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
