// Package handler exposes login over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accounthandler "alumni-tracker/internal/account/handler"
	accountservice "alumni-tracker/internal/account/service"
	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/session/domain"
)

// Service defines the session operations used by the handler.
type Service interface {
	Login(ctx context.Context, email, secret string) (*domain.Session, error)
}

// Handler wires the login endpoint to the session manager.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a session handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the session endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/sessions", h.HandleLogin)
}

// LoginRequest is the body of POST /v1/sessions.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /v1/sessions. Unknown email and wrong password share one response.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: "email and password are required"})
		return
	}
	s, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accountservice.ErrNotFound) {
			err = accountservice.ErrBadSecret
		}
		apiErr := accounthandler.ToAPIError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		}
		httputil.WriteError(w, apiErr)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}
