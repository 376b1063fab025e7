// Package session issues access tokens for approved accounts and resolves tokens back
// into a principal.
package session

import (
	"context"
	"fmt"
	"log/slog"

	accountdomain "alumni-tracker/internal/account/domain"
	"alumni-tracker/internal/audit"
	auditdomain "alumni-tracker/internal/audit/domain"
	"alumni-tracker/internal/security"
	"alumni-tracker/internal/session/domain"
	"alumni-tracker/internal/telemetry"
	telemetrydomain "alumni-tracker/internal/telemetry/domain"
)

// Authenticator verifies credentials and returns the approved account.
type Authenticator interface {
	Authenticate(ctx context.Context, email, secret string) (*accountdomain.Account, error)
}

// AccountGetter loads an account by id, returning nil when it does not exist.
type AccountGetter interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
}

// Manager turns credentials into access tokens and access tokens into principals.
type Manager struct {
	auth     Authenticator
	accounts AccountGetter
	tokens   *security.TokenProvider
	audit    audit.AuditLogger
	events   telemetry.EventEmitter
	logger   *slog.Logger
}

// NewManager returns a Manager. auditLogger and events may be nil.
func NewManager(auth Authenticator, accounts AccountGetter, tokens *security.TokenProvider, auditLogger audit.AuditLogger, events telemetry.EventEmitter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:     auth,
		accounts: accounts,
		tokens:   tokens,
		audit:    auditLogger,
		events:   events,
		logger:   logger,
	}
}

// Login authenticates the credentials and issues an access token. Errors from the
// authenticator are returned unchanged.
func (m *Manager) Login(ctx context.Context, email, secret string) (*domain.Session, error) {
	a, err := m.auth.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := m.tokens.IssueAccess(a.ID, string(a.Role))
	if err != nil {
		return nil, fmt.Errorf("session: issue token: %w", err)
	}
	if m.audit != nil {
		m.audit.LogEvent(ctx, a.ID, auditdomain.ActionLogin, auditdomain.ResourceSession, a.ID, string(a.Role))
	}
	if m.events != nil {
		ev := telemetry.NewEvent(telemetrydomain.EventSessionStarted, "session-manager", nil)
		ev.AccountID = a.ID
		ev.ActorID = a.ID
		telemetry.EmitAsync(ctx, m.events, ev)
	}
	return &domain.Session{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		AccountID:   a.ID,
		Role:        string(a.Role),
	}, nil
}

// Resolve validates token and reloads its account. The account must still exist, be
// approved and hold the role named in the token.
func (m *Manager) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	claims, err := m.tokens.ValidateAccess(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	a, err := m.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("session: load account: %w", err)
	}
	if a == nil || a.Status != accountdomain.StatusApproved || string(a.Role) != claims.Role {
		m.logger.InfoContext(ctx, "token for inactive account", "account_id", claims.Subject)
		return nil, domain.ErrInactiveAccount
	}
	return &domain.Principal{AccountID: a.ID, Role: string(a.Role)}, nil
}
