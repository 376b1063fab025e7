// Package handler exposes surveys and survey responses over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/platform/rbac"
	policydomain "alumni-tracker/internal/policy/domain"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/survey/domain"
	"alumni-tracker/internal/survey/service"
)

// Service defines the survey operations used by the handler.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*domain.Survey, error)
	Get(ctx context.Context, surveyID string) (*domain.Survey, error)
	List(ctx context.Context, f service.ListFilter) ([]*domain.Survey, error)
	SetActive(ctx context.Context, surveyID string, active bool) (*domain.Survey, error)
	Delete(ctx context.Context, surveyID string) error
	Respond(ctx context.Context, surveyID, accountID string, answers []domain.Answer) (*domain.Response, error)
	Responses(ctx context.Context, surveyID string) ([]*domain.Response, error)
	RespondedSurveyIDs(ctx context.Context, accountID string) (map[string]bool, error)
	ResponseCounts(ctx context.Context) (map[string]int, error)
}

// Handler wires survey endpoints to the survey service.
type Handler struct {
	service Service
	gate    engine.Gate
	logger  *slog.Logger
}

// New constructs a survey handler.
func New(svc Service, gate engine.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, gate: gate, logger: logger}
}

// Register mounts survey endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/surveys", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/responses", h.HandleRespond)
		r.Get("/{id}/responses", h.HandleResponses)
	})
}

// HandleCreate handles POST /v1/surveys.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionSurveyManage)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	var req CreateRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	s, err := h.service.Create(r.Context(), req.toInput(accountID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSurveyView(s))
}

// HandleList handles GET /v1/surveys. Applicants see active surveys, each flagged with
// whether they responded; coordinators see every survey with its response count.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := rbac.Require(r.Context(), h.gate, policydomain.ActionSurveyRead)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	coordinator := role == "coordinator"
	surveys, err := h.service.List(r.Context(), service.ListFilter{ActiveOnly: !coordinator})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var (
		counts    map[string]int
		responded map[string]bool
	)
	if coordinator {
		counts, err = h.service.ResponseCounts(r.Context())
	} else {
		responded, err = h.service.RespondedSurveyIDs(r.Context(), accountID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := ListView{Surveys: make([]SurveyView, 0, len(surveys))}
	for _, s := range surveys {
		v := toSurveyView(s)
		if coordinator {
			n := counts[s.ID]
			v.ResponseCount = &n
		} else {
			done := responded[s.ID]
			v.Responded = &done
		}
		resp.Surveys = append(resp.Surveys, v)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/surveys/{id}. A closed survey is not found for applicants.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_, role, err := rbac.Require(r.Context(), h.gate, policydomain.ActionSurveyRead)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	s, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && !s.Active && role != "coordinator" {
		err = service.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSurveyView(s))
}

// HandleUpdate handles PATCH /v1/surveys/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionSurveyManage); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	var req UpdateRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	if req.Active == nil {
		httputil.WriteError(w, &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: "active is required"})
		return
	}
	s, err := h.service.SetActive(r.Context(), chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSurveyView(s))
}

// HandleDelete handles DELETE /v1/surveys/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionSurveyManage); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRespond handles POST /v1/surveys/{id}/responses. The caller answers for itself.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionSurveyRespond)
	if err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	var req RespondRequest
	if apiErr := httputil.DecodeJSON(r, &req); apiErr != nil {
		httputil.WriteError(w, apiErr)
		return
	}
	resp, err := h.service.Respond(r.Context(), chi.URLParam(r, "id"), accountID, req.answers())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponseView(resp))
}

// HandleResponses handles GET /v1/surveys/{id}/responses. Coordinators only.
func (h *Handler) HandleResponses(w http.ResponseWriter, r *http.Request) {
	if _, _, err := rbac.Require(r.Context(), h.gate, policydomain.ActionSurveyManage); err != nil {
		httputil.WriteError(w, rbac.HTTPError(err))
		return
	}
	responses, err := h.service.Responses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := ResponseListView{Responses: make([]ResponseView, 0, len(responses))}
	for _, resp := range responses {
		out.Responses = append(out.Responses, toResponseView(resp))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "survey request failed", "path", r.URL.Path, "error", err)
	}
	httputil.WriteError(w, apiErr)
}

// ToAPIError maps survey service errors to HTTP responses.
func ToAPIError(err error) *httputil.APIError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return &httputil.APIError{Status: http.StatusBadRequest, Code: httputil.CodeValidation, Description: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return &httputil.APIError{Status: http.StatusNotFound, Code: httputil.CodeNotFound, Description: "survey not found"}
	case errors.Is(err, service.ErrInactive):
		return &httputil.APIError{Status: http.StatusConflict, Code: "survey_inactive", Description: "survey is not accepting responses"}
	case errors.Is(err, service.ErrAlreadyResponded):
		return &httputil.APIError{Status: http.StatusConflict, Code: "already_responded", Description: "survey already answered"}
	}
	return httputil.Internal()
}
