// Package handler exposes the account lifecycle over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"alumni-tracker/internal/account/domain"
	"alumni-tracker/internal/account/service"
	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/platform/rbac"
	policydomain "alumni-tracker/internal/policy/domain"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/server/interceptors"
)

// Service defines the account operations used by the handler.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.Account, error)
	Decide(ctx context.Context, accountID string, decision domain.Decision, actingRole domain.Role) error
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	List(ctx context.Context, f service.ListFilter) ([]*domain.Account, error)
	UpdateProfile(ctx context.Context, accountID string, upd service.ProfileUpdate) (*domain.Account, error)
	Delete(ctx context.Context, accountID string, actingRole domain.Role) error
}

// Handler wires account endpoints to the account service.
type Handler struct {
	service           Service
	gate              engine.Gate
	logger            *slog.Logger
	coordinatorSignup bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithCoordinatorSignup lets the public registration endpoint create coordinator accounts.
// Coordinators are approved on registration, so this is off unless explicitly enabled.
func WithCoordinatorSignup(allow bool) Option {
	return func(h *Handler) { h.coordinatorSignup = allow }
}

// New constructs an account handler.
func New(svc Service, gate engine.Gate, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{service: svc, gate: gate, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts account endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/accounts", h.HandleRegister)
	r.Get("/v1/accounts", h.HandleList)
	r.Get("/v1/accounts/me", h.HandleMe)
	r.Patch("/v1/accounts/me/profile", h.HandleUpdateProfile)
	r.Get("/v1/accounts/{id}", h.HandleGet)
	r.Delete("/v1/accounts/{id}", h.HandleDelete)
	r.Post("/v1/accounts/{id}/decision", h.HandleDecide)
}

// HandleRegister handles POST /v1/accounts. It is public; coordinator registrations are
// refused unless enabled with WithCoordinatorSignup.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	if domain.Role(req.Role) == domain.RoleCoordinator && !h.coordinatorSignup {
		h.logger.WarnContext(r.Context(), "coordinator self-registration refused", "ip", interceptors.GetClientIP(r.Context()))
		httputil.WriteError(w, &httputil.APIError{
			Status:      http.StatusForbidden,
			Code:        "coordinator_signup_disabled",
			Description: "coordinator accounts are provisioned by an administrator",
		})
		return
	}
	a, err := h.service.Register(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(a))
}

// HandleMe handles GET /v1/accounts/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionAccountSelf)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	a, err := h.service.Get(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(a))
}

// HandleUpdateProfile handles PATCH /v1/accounts/me/profile.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionProfileUpdate)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	var req ProfileRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	a, err := h.service.UpdateProfile(r.Context(), accountID, service.ProfileUpdate{
		Profile:    req.Profile,
		Employment: req.Employment,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(a))
}

// HandleList handles GET /v1/accounts?role=&status=&q=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionAccountList); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	q := r.URL.Query()
	f := service.ListFilter{
		Role:   domain.Role(q.Get("role")),
		Status: domain.Status(q.Get("status")),
		Query:  q.Get("q"),
	}
	if f.Role != "" && !f.Role.Valid() {
		httputil.WriteError(w, &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: "unknown role"})
		return
	}
	if f.Status != "" && !f.Status.Valid() {
		httputil.WriteError(w, &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: "unknown status"})
		return
	}
	accounts, err := h.service.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := ListResponse{Accounts: make([]AccountResponse, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/accounts/{id}. Coordinators only.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionAccountList); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(a))
}

// HandleDecide handles POST /v1/accounts/{id}/decision. The service consults the gate
// itself, so an applicant gets 403 whether or not the account exists.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	role, ok := interceptors.GetRole(r.Context())
	if !ok {
		httputil.WriteError(w, rbac.HTTPError(rbac.ErrUnauthenticated))
		return
	}
	var req DecisionRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	accountID := chi.URLParam(r, "id")
	if err := h.service.Decide(r.Context(), accountID, domain.Decision(req.Decision), domain.Role(role)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /v1/accounts/{id}. Like decisions, the gate is consulted by
// the service before the account is looked up.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	role, ok := interceptors.GetRole(r.Context())
	if !ok {
		httputil.WriteError(w, rbac.HTTPError(rbac.ErrUnauthenticated))
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), domain.Role(role)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "account request failed", "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, apiErr)
}

// ToAPIError maps account service errors to HTTP responses.
func ToAPIError(err error) *httputil.APIError {
	var notApproved *service.NotApprovedError
	switch {
	case errors.Is(err, service.ErrValidation):
		return &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: err.Error()}
	case errors.Is(err, service.ErrDuplicateEmail):
		return &httputil.APIError{Status: http.StatusConflict, Code: "duplicate_email", Description: "email already registered"}
	case errors.Is(err, service.ErrDuplicateNationalID):
		return &httputil.APIError{Status: http.StatusConflict, Code: "duplicate_national_id", Description: "national id already registered"}
	case errors.Is(err, service.ErrNotPending):
		return &httputil.APIError{Status: http.StatusConflict, Code: "not_pending", Description: "account already decided"}
	case errors.Is(err, service.ErrUnauthorized):
		return &httputil.APIError{Status: http.StatusForbidden, Code: httputil.CodeForbidden, Description: "operation requires the coordinator role"}
	case errors.Is(err, service.ErrNotFound):
		return &httputil.APIError{Status: http.StatusNotFound, Code: httputil.CodeNotFound, Description: "account not found"}
	case errors.Is(err, service.ErrBadSecret):
		return &httputil.APIError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Description: "invalid email or password"}
	case errors.As(err, &notApproved):
		return &httputil.APIError{
			Status:      http.StatusForbidden,
			Code:        "not_approved",
			Description: "account is " + string(notApproved.Status),
			Extra:       map[string]string{"status": string(notApproved.Status)},
		}
	}
	return httputil.Internal()
}
