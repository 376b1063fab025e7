// Package service implements survey publishing and the once-per-account response flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"alumni-tracker/internal/audit"
	auditdomain "alumni-tracker/internal/audit/domain"
	"alumni-tracker/internal/metrics"
	"alumni-tracker/internal/server/interceptors"
	"alumni-tracker/internal/survey/domain"
	"alumni-tracker/internal/survey/repository"
	"alumni-tracker/internal/telemetry"
	telemetrydomain "alumni-tracker/internal/telemetry/domain"
)

// Sentinel errors for the survey service; the HTTP handler maps them to status codes.
var (
	ErrValidation       = errors.New("survey: invalid input")
	ErrNotFound         = errors.New("survey: not found")
	ErrInactive         = errors.New("survey: not accepting responses")
	ErrAlreadyResponded = errors.New("survey: already responded")
)

const eventSource = "survey-service"

var tracer = otel.Tracer("alumni-tracker/internal/survey/service")

// QuestionInput is one question of a new survey.
type QuestionInput struct {
	Text     string
	Type     domain.QuestionType
	Options  []string
	Required bool
}

// CreateInput is the data for a new survey.
type CreateInput struct {
	Title       string
	Description string
	Questions   []QuestionInput
	CreatedBy   string
}

// ListFilter narrows List. ActiveOnly hides closed surveys.
type ListFilter struct {
	ActiveOnly bool
}

// SurveyService owns surveys and their responses.
type SurveyService struct {
	repo    repository.Repository
	audit   audit.AuditLogger
	events  telemetry.EventEmitter
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional collaborators of SurveyService.
type Option func(*SurveyService)

// WithAudit records successful state changes through l.
func WithAudit(l audit.AuditLogger) Option { return func(s *SurveyService) { s.audit = l } }

// WithEvents publishes domain events through e.
func WithEvents(e telemetry.EventEmitter) Option { return func(s *SurveyService) { s.events = e } }

// WithMetrics counts outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *SurveyService) { s.metrics = m } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *SurveyService) { s.logger = l } }

// NewSurveyService returns a SurveyService persisting through repo.
func NewSurveyService(repo repository.Repository, opts ...Option) *SurveyService {
	s := &SurveyService{repo: repo, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and stores an active survey. Every question gets a generated id.
func (s *SurveyService) Create(ctx context.Context, in CreateInput) (_ *domain.Survey, err error) {
	ctx, span := tracer.Start(ctx, "survey.Create")
	defer func() { endSpan(span, err) }()

	questions, err := normalizeCreate(&in)
	if err != nil {
		return nil, err
	}
	if in.CreatedBy == "" {
		in.CreatedBy, _ = interceptors.GetAccountID(ctx)
	}
	now := s.now().UTC()
	sv := &domain.Survey{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Questions:   questions,
		Active:      true,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, sv); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("survey.id", sv.ID))

	s.logger.InfoContext(ctx, "survey created", "survey_id", sv.ID, "questions", len(sv.Questions))
	if s.audit != nil {
		s.audit.LogEvent(ctx, sv.CreatedBy, auditdomain.ActionCreate, auditdomain.ResourceSurvey, sv.ID, sv.Title)
	}
	s.emit(ctx, telemetrydomain.EventSurveyCreated, sv.ID, "", sv.CreatedBy, map[string]any{
		"title":     sv.Title,
		"questions": len(sv.Questions),
	})
	return sv, nil
}

func normalizeCreate(in *CreateInput) ([]domain.Question, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return nil, validationError("title is required")
	}
	if len(in.Questions) == 0 {
		return nil, validationError("at least one question is required")
	}
	out := make([]domain.Question, 0, len(in.Questions))
	for i, qi := range in.Questions {
		q := domain.Question{
			ID:       uuid.New().String(),
			Text:     strings.TrimSpace(qi.Text),
			Type:     qi.Type,
			Required: qi.Required,
		}
		n := strconv.Itoa(i + 1)
		if q.Text == "" {
			return nil, validationError("question " + n + ": text is required")
		}
		if !q.Type.Valid() {
			return nil, validationError("question " + n + ": type must be text, choice, multiple or scale")
		}
		if q.Type.HasOptions() {
			opts, err := normalizeOptions(qi.Options)
			if err != nil {
				return nil, validationError("question " + n + ": " + err.Error())
			}
			q.Options = opts
		}
		out = append(out, q)
	}
	return out, nil
}

// normalizeOptions trims options and drops blanks. At least one option must remain and
// none may repeat.
func normalizeOptions(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, o := range in {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if seen[o] {
			return nil, fmt.Errorf("option %q is repeated", o)
		}
		seen[o] = true
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil, errors.New("options are required")
	}
	return out, nil
}

// Get returns the survey for id or ErrNotFound.
func (s *SurveyService) Get(ctx context.Context, surveyID string) (*domain.Survey, error) {
	sv, err := s.repo.GetByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return nil, ErrNotFound
	}
	return sv, nil
}

// List returns surveys matching f, newest first.
func (s *SurveyService) List(ctx context.Context, f ListFilter) ([]*domain.Survey, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Survey, 0, len(all))
	for _, sv := range all {
		if f.ActiveOnly && !sv.Active {
			continue
		}
		out = append(out, sv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SetActive opens or closes a survey for responses. Stored responses are kept.
func (s *SurveyService) SetActive(ctx context.Context, surveyID string, active bool) (_ *domain.Survey, err error) {
	ctx, span := tracer.Start(ctx, "survey.SetActive", trace.WithAttributes(attribute.String("survey.id", surveyID)))
	defer func() { endSpan(span, err) }()

	sv, err := s.repo.Update(ctx, surveyID, func(sv *domain.Survey) error {
		sv.Active = active
		sv.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	actorID, _ := interceptors.GetAccountID(ctx)
	change := "active=" + strconv.FormatBool(active)
	s.logger.InfoContext(ctx, "survey updated", "survey_id", surveyID, "change", change)
	if s.audit != nil {
		s.audit.LogEvent(ctx, actorID, auditdomain.ActionUpdate, auditdomain.ResourceSurvey, surveyID, change)
	}
	s.emit(ctx, telemetrydomain.EventSurveyUpdated, surveyID, "", actorID, map[string]any{"active": active})
	return sv, nil
}

// Delete removes a survey and then its responses.
func (s *SurveyService) Delete(ctx context.Context, surveyID string) (err error) {
	ctx, span := tracer.Start(ctx, "survey.Delete", trace.WithAttributes(attribute.String("survey.id", surveyID)))
	defer func() { endSpan(span, err) }()

	if err := s.repo.Delete(ctx, surveyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	removed, err := s.repo.DeleteResponses(ctx, surveyID)
	if err != nil {
		return fmt.Errorf("survey: delete responses of %s: %w", surveyID, err)
	}
	actorID, _ := interceptors.GetAccountID(ctx)
	s.logger.InfoContext(ctx, "survey deleted", "survey_id", surveyID, "responses", removed)
	if s.audit != nil {
		s.audit.LogEvent(ctx, actorID, auditdomain.ActionDelete, auditdomain.ResourceSurvey, surveyID, "")
	}
	s.emit(ctx, telemetrydomain.EventSurveyDeleted, surveyID, "", actorID, map[string]any{"responses": removed})
	return nil
}

// Respond records accountID's answers to a survey. Refusals come in this order: not found,
// inactive, invalid answers, already responded. The response is stored put-if-absent
// under the (survey, account) key, so of two concurrent submissions exactly one is kept.
func (s *SurveyService) Respond(ctx context.Context, surveyID, accountID string, answers []domain.Answer) (_ *domain.Response, err error) {
	ctx, span := tracer.Start(ctx, "survey.Respond", trace.WithAttributes(
		attribute.String("survey.id", surveyID), attribute.String("account.id", accountID)))
	defer func() {
		s.metrics.IncSurveyResponse(respondOutcome(err))
		endSpan(span, err)
	}()

	if accountID == "" {
		return nil, validationError("account id is required")
	}
	sv, err := s.Get(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if !sv.Active {
		return nil, ErrInactive
	}
	normalized, err := checkAnswers(sv, answers)
	if err != nil {
		return nil, err
	}
	resp := &domain.Response{
		ID:          domain.ResponseKey(surveyID, accountID),
		SurveyID:    surveyID,
		AccountID:   accountID,
		Answers:     normalized,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.repo.CreateResponse(ctx, resp); err != nil {
		if errors.Is(err, repository.ErrResponseExists) {
			return nil, ErrAlreadyResponded
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "survey answered", "survey_id", surveyID, "account_id", accountID, "answers", len(normalized))
	if s.audit != nil {
		s.audit.LogEvent(ctx, accountID, auditdomain.ActionRespond, auditdomain.ResourceSurvey, surveyID, "")
	}
	s.emit(ctx, telemetrydomain.EventSurveyResponded, surveyID, accountID, accountID, map[string]any{
		"answers": len(normalized),
	})
	return resp, nil
}

// Responses returns the responses to a survey, oldest first.
func (s *SurveyService) Responses(ctx context.Context, surveyID string) ([]*domain.Response, error) {
	if _, err := s.Get(ctx, surveyID); err != nil {
		return nil, err
	}
	all, err := s.repo.ListResponses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Response, 0)
	for _, r := range all {
		if r.SurveyID == surveyID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// RespondedSurveyIDs returns the ids of the surveys accountID has answered.
func (s *SurveyService) RespondedSurveyIDs(ctx context.Context, accountID string) (map[string]bool, error) {
	all, err := s.repo.ListResponses(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, r := range all {
		if r.AccountID == accountID {
			out[r.SurveyID] = true
		}
	}
	return out, nil
}

// ResponseCounts returns the number of responses per survey id.
func (s *SurveyService) ResponseCounts(ctx context.Context) (map[string]int, error) {
	all, err := s.repo.ListResponses(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	for _, r := range all {
		out[r.SurveyID]++
	}
	return out, nil
}

func (s *SurveyService) emit(ctx context.Context, t telemetrydomain.EventType, surveyID, accountID, actorID string, metadata any) {
	if s.events == nil {
		return
	}
	ev := telemetry.NewEvent(t, eventSource, metadata)
	ev.SurveyID = surveyID
	ev.AccountID = accountID
	ev.ActorID = actorID
	telemetry.EmitAsync(ctx, s.events, ev)
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInactive) || errors.Is(err, ErrAlreadyResponded)
}

func respondOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyResponded):
		return "already_responded"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}

// endSpan marks storage faults as span errors; refusals are business outcomes.
func endSpan(span trace.Span, err error) {
	if err != nil && !isDomainError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if err != nil {
		span.SetAttributes(attribute.String("outcome", respondOutcome(err)))
	}
	span.End()
}
