// Package service implements the account lifecycle: registration, the approval decision
// and password authentication.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"alumni-tracker/internal/account/domain"
	"alumni-tracker/internal/account/repository"
	"alumni-tracker/internal/audit"
	auditdomain "alumni-tracker/internal/audit/domain"
	"alumni-tracker/internal/metrics"
	policydomain "alumni-tracker/internal/policy/domain"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/security"
	"alumni-tracker/internal/server/interceptors"
	"alumni-tracker/internal/telemetry"
	telemetrydomain "alumni-tracker/internal/telemetry/domain"
)

const eventSource = "account-service"

var tracer = otel.Tracer("alumni-tracker/internal/account/service")

// RegisterInput is the data submitted at registration.
type RegisterInput struct {
	Email      string
	Password   string
	NationalID string
	Role       domain.Role
	Profile    domain.Profile
	Employment domain.Employment
}

// ProfileUpdate replaces the editable profile and employment data of an account.
type ProfileUpdate struct {
	Profile    domain.Profile
	Employment domain.Employment
}

// ListFilter narrows List. Empty fields match everything; Query matches name, email
// or national id case-insensitively.
type ListFilter struct {
	Role   domain.Role
	Status domain.Status
	Query  string
}

// AccountService owns the account state machine.
type AccountService struct {
	repo    repository.Repository
	hasher  *security.Hasher
	gate    engine.Gate
	audit   audit.AuditLogger
	events  telemetry.EventEmitter
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional collaborators of AccountService.
type Option func(*AccountService)

// WithAudit records successful state changes through l.
func WithAudit(l audit.AuditLogger) Option { return func(s *AccountService) { s.audit = l } }

// WithEvents publishes domain events through e.
func WithEvents(e telemetry.EventEmitter) Option { return func(s *AccountService) { s.events = e } }

// WithMetrics counts outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *AccountService) { s.metrics = m } }

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *AccountService) { s.logger = l } }

// NewAccountService returns an AccountService. The gate decides who may approve or reject.
func NewAccountService(repo repository.Repository, hasher *security.Hasher, gate engine.Gate, opts ...Option) *AccountService {
	s := &AccountService{
		repo:   repo,
		hasher: hasher,
		gate:   gate,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates in, claims the email and national id, and stores the account.
// Coordinators start approved; applicants start pending.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (_ *domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "account.Register")
	defer func() { endSpan(span, err) }()

	in.Email = domain.NormalizeEmail(in.Email)
	in.NationalID = strings.TrimSpace(in.NationalID)
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("account: hash password: %w", err)
	}
	now := s.now().UTC()
	a := &domain.Account{
		ID:           uuid.New().String(),
		Email:        in.Email,
		NationalID:   in.NationalID,
		PasswordHash: hashed,
		Role:         in.Role,
		Status:       domain.InitialStatus(in.Role),
		Profile:      trimProfile(in.Profile),
		Employment:   in.Employment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, ErrDuplicateEmail
		case errors.Is(err, repository.ErrNationalIDTaken):
			return nil, ErrDuplicateNationalID
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("account.id", a.ID), attribute.String("account.role", string(a.Role)))

	s.metrics.IncRegistration(string(a.Role))
	s.logger.InfoContext(ctx, "account registered", "account_id", a.ID, "role", a.Role, "status", a.Status)
	if s.audit != nil {
		s.audit.LogEvent(ctx, a.ID, auditdomain.ActionRegister, auditdomain.ResourceAccount, a.ID, string(a.Role))
	}
	s.emit(ctx, telemetrydomain.EventAccountRegistered, a.ID, a.ID, map[string]string{
		"role":   string(a.Role),
		"status": string(a.Status),
	})
	return a, nil
}

// Decide approves or rejects a pending account. The gate is consulted before the account
// is read, so a caller without permission learns nothing about it. The read-check-write is
// one atomic update on the account, so of two concurrent decisions exactly one wins and
// the other sees ErrNotPending.
func (s *AccountService) Decide(ctx context.Context, accountID string, decision domain.Decision, actingRole domain.Role) (err error) {
	ctx, span := tracer.Start(ctx, "account.Decide",
		trace.WithAttributes(attribute.String("account.id", accountID), attribute.String("decision", string(decision))))
	defer func() { endSpan(span, err) }()

	if err := s.gate.Authorize(ctx, string(actingRole), policydomain.ActionAccountDecide); err != nil {
		s.metrics.IncDecision("denied")
		if errors.Is(err, engine.ErrDenied) {
			return ErrUnauthorized
		}
		return fmt.Errorf("account: authorize decision: %w", err)
	}
	target, ok := decision.Status()
	if !ok {
		return validationError("decision must be approve or reject")
	}
	actorID, _ := interceptors.GetAccountID(ctx)
	now := s.now().UTC()

	_, err = s.repo.Update(ctx, accountID, func(a *domain.Account) error {
		if a.Status != domain.StatusPending {
			return ErrNotPending
		}
		a.Status = target
		a.DecidedAt = &now
		a.DecidedBy = actorID
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, ErrNotPending):
			s.metrics.IncDecision("not_pending")
			s.logger.InfoContext(ctx, "decision on account that is not pending", "account_id", accountID)
			return ErrNotPending
		}
		return err
	}

	s.metrics.IncDecision(string(target))
	s.logger.InfoContext(ctx, "account decided", "account_id", accountID, "status", target, "decided_by", actorID)
	if s.audit != nil {
		s.audit.LogEvent(ctx, actorID, auditdomain.ActionDecide, auditdomain.ResourceAccount, accountID, string(target))
	}
	eventType := telemetrydomain.EventAccountApproved
	if target == domain.StatusRejected {
		eventType = telemetrydomain.EventAccountRejected
	}
	s.emit(ctx, eventType, accountID, actorID, nil)
	return nil
}

// Authenticate checks email and secret. The secret is verified before the status, so an
// account's state is never revealed to a caller without its password. An approved account
// is returned; otherwise *NotApprovedError carries pending or rejected.
func (s *AccountService) Authenticate(ctx context.Context, email, secret string) (_ *domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "account.Authenticate")
	defer func() { endSpan(span, err) }()

	a, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if a == nil {
		s.metrics.IncLogin("not_found")
		return nil, ErrNotFound
	}
	if err := s.hasher.Compare(a.PasswordHash, secret); err != nil {
		s.metrics.IncLogin("bad_secret")
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, ErrBadSecret
		}
		return nil, fmt.Errorf("account: compare password: %w", err)
	}
	if a.Status != domain.StatusApproved {
		s.metrics.IncLogin(string(a.Status))
		return nil, &NotApprovedError{Status: a.Status}
	}
	s.metrics.IncLogin("ok")
	return a, nil
}

// Get returns the account for id or ErrNotFound.
func (s *AccountService) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// List returns accounts matching f, oldest first.
func (s *AccountService) List(ctx context.Context, f ListFilter) ([]*domain.Account, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]*domain.Account, 0, len(all))
	for _, a := range all {
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if q != "" && !matches(a, q) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matches(a *domain.Account, q string) bool {
	return strings.Contains(strings.ToLower(a.Profile.FullName()), q) ||
		strings.Contains(a.Email, q) ||
		strings.Contains(strings.ToLower(a.NationalID), q)
}

// UpdateProfile replaces the profile and employment data. Lifecycle fields are left as stored.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (_ *domain.Account, err error) {
	ctx, span := tracer.Start(ctx, "account.UpdateProfile", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer func() { endSpan(span, err) }()

	p := trimProfile(upd.Profile)
	if p.FirstName == "" || p.LastName == "" {
		return nil, validationError("first and last name are required")
	}
	if !upd.Employment.Status.Valid() {
		return nil, validationError("unknown employment status")
	}
	now := s.now().UTC()
	a, err := s.repo.Update(ctx, accountID, func(a *domain.Account) error {
		a.Profile = p
		a.Employment = upd.Employment
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, accountID, auditdomain.ActionProfileUpdate, auditdomain.ResourceAccount, accountID, "")
	}
	s.emit(ctx, telemetrydomain.EventProfileUpdated, accountID, accountID, map[string]string{
		"employment_status": string(a.Employment.Status),
	})
	return a, nil
}

// Delete removes an account and frees its email and national id for a new registration.
// Outstanding tokens of the account stop resolving at once. A coordinator cannot delete
// the account it is signed in with.
func (s *AccountService) Delete(ctx context.Context, accountID string, actingRole domain.Role) (err error) {
	ctx, span := tracer.Start(ctx, "account.Delete", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer func() { endSpan(span, err) }()

	if err := s.gate.Authorize(ctx, string(actingRole), policydomain.ActionAccountDelete); err != nil {
		if errors.Is(err, engine.ErrDenied) {
			return ErrUnauthorized
		}
		return fmt.Errorf("account: authorize delete: %w", err)
	}
	actorID, _ := interceptors.GetAccountID(ctx)
	if actorID != "" && actorID == accountID {
		return validationError("cannot delete the signed-in account")
	}
	if err := s.repo.Delete(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.InfoContext(ctx, "account deleted", "account_id", accountID, "deleted_by", actorID)
	if s.audit != nil {
		s.audit.LogEvent(ctx, actorID, auditdomain.ActionDelete, auditdomain.ResourceAccount, accountID, "")
	}
	s.emit(ctx, telemetrydomain.EventAccountDeleted, accountID, actorID, nil)
	return nil
}

func (s *AccountService) emit(ctx context.Context, t telemetrydomain.EventType, accountID, actorID string, metadata any) {
	if s.events == nil {
		return
	}
	ev := telemetry.NewEvent(t, eventSource, metadata)
	ev.AccountID = accountID
	ev.ActorID = actorID
	telemetry.EmitAsync(ctx, s.events, ev)
}

func trimProfile(p domain.Profile) domain.Profile {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	return p
}

// endSpan marks storage faults as span errors. Domain outcomes are recorded as attributes only.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.kind", errorKind(err)))
		if errorKind(err) == "internal" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateNationalID), errors.Is(err, ErrNotPending):
		return "conflict"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrBadSecret), errors.Is(err, ErrNotApproved):
		return "authorization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}
