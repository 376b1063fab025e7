// Package handler exposes trainings and enrollment over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"alumni-tracker/internal/activity/domain"
	"alumni-tracker/internal/activity/service"
	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/platform/rbac"
	policydomain "alumni-tracker/internal/policy/domain"
	"alumni-tracker/internal/policy/engine"
)

// Service defines the enrollment operations used by the handler.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*domain.Activity, error)
	Enroll(ctx context.Context, activityID, accountID string) error
	AvailableSeats(ctx context.Context, activityID string) (int, error)
	Get(ctx context.Context, activityID string) (*domain.Activity, error)
	List(ctx context.Context, f service.ListFilter) ([]*domain.Activity, error)
	Update(ctx context.Context, activityID string, u service.Update) (*domain.Activity, error)
	Delete(ctx context.Context, activityID string) error
}

// Handler wires activity endpoints to the enrollment service.
type Handler struct {
	service Service
	gate    engine.Gate
	logger  *slog.Logger
}

// New constructs an activity handler.
func New(svc Service, gate engine.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, gate: gate, logger: logger}
}

// Register mounts activity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/activities", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/seats", h.HandleSeats)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/enrollments", h.HandleEnroll)
	})
}

// CreateRequest is the body of POST /v1/activities.
type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Instructor  string `json:"instructor"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Modality    string `json:"modality"`
	Capacity    int    `json:"capacity"`
}

// UpdateRequest is the body of PATCH /v1/activities/{id}. Absent fields are left unchanged.
type UpdateRequest struct {
	Active   *bool `json:"active"`
	Capacity *int  `json:"capacity"`
}

// ActivityResponse is the public view of an activity. Enrolled ids are shown to
// coordinators only; applicants see whether they hold a seat.
type ActivityResponse struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Instructor     string          `json:"instructor,omitempty"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date,omitempty"`
	Modality       domain.Modality `json:"modality"`
	Capacity       int             `json:"capacity"`
	EnrolledCount  int             `json:"enrolled_count"`
	AvailableSeats int             `json:"available_seats"`
	Active         bool            `json:"active"`
	Enrolled       *bool           `json:"enrolled,omitempty"`
	Participants   []string        `json:"participants,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ListResponse is the body of GET /v1/activities.
type ListResponse struct {
	Activities []ActivityResponse `json:"activities"`
}

func toResponse(a *domain.Activity, viewerID, viewerRole string) ActivityResponse {
	resp := ActivityResponse{
		ID:             a.ID,
		Title:          a.Title,
		Description:    a.Description,
		Instructor:     a.Instructor,
		StartDate:      a.StartDate,
		EndDate:        a.EndDate,
		Modality:       a.Modality,
		Capacity:       a.Capacity,
		EnrolledCount:  len(a.Enrolled),
		AvailableSeats: a.AvailableSeats(),
		Active:         a.Active,
		CreatedAt:      a.CreatedAt,
	}
	if viewerRole == "coordinator" {
		resp.Participants = append([]string{}, a.Enrolled...)
	} else {
		enrolled := a.IsEnrolled(viewerID)
		resp.Enrolled = &enrolled
	}
	return resp
}

// HandleCreate handles POST /v1/activities.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := rbac.Require(r.Context(), h.gate, policydomain.ActionActivityCreate)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	var req CreateRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	a, err := h.service.Create(r.Context(), service.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Instructor:  req.Instructor,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Modality:    domain.Modality(req.Modality),
		Capacity:    req.Capacity,
		CreatedBy:   accountID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(a, accountID, role))
}

// HandleList handles GET /v1/activities. Applicants see active activities only;
// ?mine=true narrows to the caller's enrollments.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := rbac.Require(r.Context(), h.gate, policydomain.ActionActivityRead)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	f := service.ListFilter{ActiveOnly: role != "coordinator"}
	if r.URL.Query().Get("mine") == "true" {
		f.EnrolledAccountID = accountID
		f.ActiveOnly = false
	}
	activities, err := h.service.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := ListResponse{Activities: make([]ActivityResponse, 0, len(activities))}
	for _, a := range activities {
		resp.Activities = append(resp.Activities, toResponse(a, accountID, role))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/activities/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := rbac.Require(r.Context(), h.gate, policydomain.ActionActivityRead)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(a, accountID, role))
}

// HandleSeats handles GET /v1/activities/{id}/seats.
func (h *Handler) HandleSeats(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionActivityRead); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	seats, err := h.service.AvailableSeats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"available_seats": seats})
}

// HandleUpdate handles PATCH /v1/activities/{id}. Both fields are applied together or not at all.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := rbac.Require(r.Context(), h.gate, policydomain.ActionActivityManage)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	var req UpdateRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	a, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), service.Update{
		Active:   req.Active,
		Capacity: req.Capacity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(a, accountID, role))
}

// HandleDelete handles DELETE /v1/activities/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionActivityManage); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEnroll handles POST /v1/activities/{id}/enrollments. The caller enrolls itself.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionActivityEnroll)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	if err := h.service.Enroll(r.Context(), chi.URLParam(r, "id"), accountID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "activity request failed", "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, apiErr)
}

// ToAPIError maps enrollment service errors to HTTP responses.
func ToAPIError(err error) *httputil.APIError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return &httputil.APIError{Status: http.StatusNotFound, Code: httputil.CodeNotFound, Description: "activity not found"}
	case errors.Is(err, service.ErrInactive):
		return &httputil.APIError{Status: http.StatusConflict, Code: "activity_inactive", Description: "activity is not accepting enrollments"}
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return &httputil.APIError{Status: http.StatusConflict, Code: "already_enrolled", Description: "already enrolled in this activity"}
	case errors.Is(err, service.ErrCapacityExceeded):
		return &httputil.APIError{Status: http.StatusConflict, Code: "capacity_exceeded", Description: "no seats available"}
	case errors.Is(err, service.ErrCapacityLocked):
		return &httputil.APIError{Status: http.StatusConflict, Code: "capacity_locked", Description: "capacity cannot change once participants are enrolled"}
	}
	return httputil.Internal()
}
