// Package service implements training creation and seat allocation.
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

	"alumni-tracker/internal/activity/domain"
	"alumni-tracker/internal/activity/repository"
	"alumni-tracker/internal/audit"
	auditdomain "alumni-tracker/internal/audit/domain"
	"alumni-tracker/internal/metrics"
	"alumni-tracker/internal/server/interceptors"
	"alumni-tracker/internal/telemetry"
	telemetrydomain "alumni-tracker/internal/telemetry/domain"
)

// Sentinel errors for the enrollment service; the HTTP handler maps them to status codes.
var (
	ErrValidation       = errors.New("activity: invalid input")
	ErrNotFound         = errors.New("activity: not found")
	ErrInactive         = errors.New("activity: not accepting enrollments")
	ErrAlreadyEnrolled  = errors.New("activity: already enrolled")
	ErrCapacityExceeded = errors.New("activity: no seats available")
	ErrCapacityLocked   = errors.New("activity: capacity cannot change once participants are enrolled")
)

const eventSource = "enrollment-service"

var tracer = otel.Tracer("alumni-tracker/internal/activity/service")

// CreateInput is the data for a new activity. Modality defaults to virtual.
type CreateInput struct {
	Title       string
	Description string
	Instructor  string
	StartDate   string
	EndDate     string
	Modality    domain.Modality
	Capacity    int
	CreatedBy   string
}

// ListFilter narrows List. ActiveOnly hides deactivated activities; EnrolledAccountID keeps
// only activities that account holds a seat in.
type ListFilter struct {
	ActiveOnly        bool
	EnrolledAccountID string
}

// EnrollmentService owns activities and their seat allocation.
type EnrollmentService struct {
	repo    repository.Repository
	audit   audit.AuditLogger
	events  telemetry.EventEmitter
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional collaborators of EnrollmentService.
type Option func(*EnrollmentService)

// WithAudit records successful state changes through l.
func WithAudit(l audit.AuditLogger) Option { return func(s *EnrollmentService) { s.audit = l } }

// WithEvents publishes domain events through e.
func WithEvents(e telemetry.EventEmitter) Option { return func(s *EnrollmentService) { s.events = e } }

// WithMetrics counts outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *EnrollmentService) { s.metrics = m } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *EnrollmentService) { s.logger = l } }

// NewEnrollmentService returns an EnrollmentService persisting through repo.
func NewEnrollmentService(repo repository.Repository, opts ...Option) *EnrollmentService {
	s := &EnrollmentService{repo: repo, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and stores an active activity with no participants.
func (s *EnrollmentService) Create(ctx context.Context, in CreateInput) (_ *domain.Activity, err error) {
	ctx, span := tracer.Start(ctx, "activity.Create")
	defer func() { endSpan(span, err) }()

	if err := normalizeCreate(&in); err != nil {
		return nil, err
	}
	if in.CreatedBy == "" {
		in.CreatedBy, _ = interceptors.GetAccountID(ctx)
	}
	now := s.now().UTC()
	a := &domain.Activity{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Instructor:  in.Instructor,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Modality:    in.Modality,
		Capacity:    in.Capacity,
		Enrolled:    []string{},
		Active:      true,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("activity.id", a.ID))

	s.metrics.IncActivityCreated()
	s.logger.InfoContext(ctx, "activity created", "activity_id", a.ID, "capacity", a.Capacity)
	if s.audit != nil {
		s.audit.LogEvent(ctx, a.CreatedBy, auditdomain.ActionCreate, auditdomain.ResourceActivity, a.ID, a.Title)
	}
	s.emit(ctx, telemetrydomain.EventActivityCreated, a.ID, a.CreatedBy, map[string]any{
		"title":    a.Title,
		"capacity": a.Capacity,
	})
	return a, nil
}

func normalizeCreate(in *CreateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Instructor = strings.TrimSpace(in.Instructor)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	if in.Title == "" {
		return validationError("title is required")
	}
	if in.Capacity <= 0 {
		return validationError("capacity must be a positive integer")
	}
	if in.StartDate == "" {
		return validationError("start date is required")
	}
	start, err := time.Parse(domain.DateLayout, in.StartDate)
	if err != nil {
		return validationError("start date must be YYYY-MM-DD")
	}
	if in.EndDate != "" {
		end, err := time.Parse(domain.DateLayout, in.EndDate)
		if err != nil {
			return validationError("end date must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return validationError("end date must not be before start date")
		}
	}
	if in.Modality == "" {
		in.Modality = domain.ModalityVirtual
	}
	if !in.Modality.Valid() {
		return validationError("modality must be in_person, virtual or hybrid")
	}
	return nil
}

// Enroll gives accountID a seat. The checks and the append happen in one atomic update of
// the activity record, in this order: not found, inactive, already enrolled, no seats.
// Two concurrent calls for the last seat see each other's writes, so at most Capacity succeed.
func (s *EnrollmentService) Enroll(ctx context.Context, activityID, accountID string) (err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "activity.Enroll", trace.WithAttributes(
		attribute.String("activity.id", activityID), attribute.String("account.id", accountID)))
	defer func() {
		s.metrics.ObserveEnroll(enrollOutcome(err), start)
		endSpan(span, err)
	}()

	if accountID == "" {
		return validationError("account id is required")
	}
	a, err := s.repo.Update(ctx, activityID, func(a *domain.Activity) error {
		if !a.Active {
			return ErrInactive
		}
		if a.IsEnrolled(accountID) {
			return ErrAlreadyEnrolled
		}
		if a.Full() {
			return ErrCapacityExceeded
		}
		a.Enrolled = append(a.Enrolled, accountID)
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if isDomainError(err) {
			s.logger.DebugContext(ctx, "enrollment refused", "activity_id", activityID, "account_id", accountID, "reason", err)
		}
		return err
	}

	s.logger.InfoContext(ctx, "enrolled", "activity_id", activityID, "account_id", accountID, "seats_left", a.AvailableSeats())
	if s.audit != nil {
		s.audit.LogEvent(ctx, accountID, auditdomain.ActionEnroll, auditdomain.ResourceActivity, activityID, "")
	}
	s.emit(ctx, telemetrydomain.EventEnrollmentAdded, activityID, accountID, map[string]any{
		"account_id":      accountID,
		"available_seats": a.AvailableSeats(),
	})
	return nil
}

// AvailableSeats returns capacity minus enrolled, never negative.
func (s *EnrollmentService) AvailableSeats(ctx context.Context, activityID string) (int, error) {
	a, err := s.Get(ctx, activityID)
	if err != nil {
		return 0, err
	}
	return a.AvailableSeats(), nil
}

// Get returns the activity for id or ErrNotFound.
func (s *EnrollmentService) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	a, err := s.repo.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// List returns activities matching f, ordered by start date then creation time.
func (s *EnrollmentService) List(ctx context.Context, f ListFilter) ([]*domain.Activity, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Activity, 0, len(all))
	for _, a := range all {
		if f.ActiveOnly && !a.Active {
			continue
		}
		if f.EnrolledAccountID != "" && !a.IsEnrolled(f.EnrolledAccountID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update is a partial change to an activity. Nil fields are left as stored.
type Update struct {
	Active   *bool
	Capacity *int
}

// Update applies u in one atomic update of the activity, so a rejected capacity change
// leaves the active flag untouched as well. Capacity may not change once anyone is
// enrolled (ErrCapacityLocked); restating the current capacity is allowed.
func (s *EnrollmentService) Update(ctx context.Context, activityID string, u Update) (_ *domain.Activity, err error) {
	ctx, span := tracer.Start(ctx, "activity.Update", trace.WithAttributes(attribute.String("activity.id", activityID)))
	defer func() { endSpan(span, err) }()

	if u.Active == nil && u.Capacity == nil {
		return nil, validationError("active or capacity is required")
	}
	if u.Capacity != nil && *u.Capacity <= 0 {
		return nil, validationError("capacity must be a positive integer")
	}
	a, err := s.repo.Update(ctx, activityID, func(a *domain.Activity) error {
		if u.Capacity != nil && *u.Capacity != a.Capacity {
			if len(a.Enrolled) > 0 {
				return ErrCapacityLocked
			}
			a.Capacity = *u.Capacity
		}
		if u.Active != nil {
			a.Active = *u.Active
		}
		a.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.recordUpdate(ctx, a, describeUpdate(u))
	return a, nil
}

func describeUpdate(u Update) string {
	var parts []string
	if u.Capacity != nil {
		parts = append(parts, "capacity="+strconv.Itoa(*u.Capacity))
	}
	if u.Active != nil {
		parts = append(parts, "active="+strconv.FormatBool(*u.Active))
	}
	return strings.Join(parts, ",")
}

// SetActive opens or closes an activity for enrollment. Existing participants keep their seats.
func (s *EnrollmentService) SetActive(ctx context.Context, activityID string, active bool) (*domain.Activity, error) {
	return s.Update(ctx, activityID, Update{Active: &active})
}

// Resize changes the capacity. It is refused with ErrCapacityLocked once anyone is enrolled.
func (s *EnrollmentService) Resize(ctx context.Context, activityID string, capacity int) (*domain.Activity, error) {
	return s.Update(ctx, activityID, Update{Capacity: &capacity})
}

// Delete removes an activity together with its enrollments.
func (s *EnrollmentService) Delete(ctx context.Context, activityID string) (err error) {
	ctx, span := tracer.Start(ctx, "activity.Delete", trace.WithAttributes(attribute.String("activity.id", activityID)))
	defer func() { endSpan(span, err) }()

	a, err := s.Get(ctx, activityID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, activityID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	actorID, _ := interceptors.GetAccountID(ctx)
	s.logger.InfoContext(ctx, "activity deleted", "activity_id", activityID, "enrolled", len(a.Enrolled))
	if s.audit != nil {
		s.audit.LogEvent(ctx, actorID, auditdomain.ActionDelete, auditdomain.ResourceActivity, activityID, a.Title)
	}
	s.emit(ctx, telemetrydomain.EventActivityDeleted, activityID, actorID, map[string]any{
		"title":    a.Title,
		"enrolled": len(a.Enrolled),
	})
	return nil
}

func (s *EnrollmentService) recordUpdate(ctx context.Context, a *domain.Activity, change string) {
	actorID, _ := interceptors.GetAccountID(ctx)
	s.logger.InfoContext(ctx, "activity updated", "activity_id", a.ID, "change", change)
	if s.audit != nil {
		s.audit.LogEvent(ctx, actorID, auditdomain.ActionUpdate, auditdomain.ResourceActivity, a.ID, change)
	}
	s.emit(ctx, telemetrydomain.EventActivityUpdated, a.ID, actorID, map[string]any{
		"active":   a.Active,
		"capacity": a.Capacity,
	})
}

func (s *EnrollmentService) emit(ctx context.Context, t telemetrydomain.EventType, activityID, actorID string, metadata any) {
	if s.events == nil {
		return
	}
	ev := telemetry.NewEvent(t, eventSource, metadata)
	ev.ActivityID = activityID
	ev.ActorID = actorID
	telemetry.EmitAsync(ctx, s.events, ev)
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrInactive) || errors.Is(err, ErrAlreadyEnrolled) ||
		errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrCapacityLocked) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation)
}

func enrollOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyEnrolled):
		return "already_enrolled"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	}
	return "error"
}

// endSpan marks storage faults as span errors; refusals are business outcomes.
func endSpan(span trace.Span, err error) {
	if err != nil && !isDomainError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if err != nil {
		span.SetAttributes(attribute.String("outcome", enrollOutcome(err)))
	}
	span.End()
}
