// Package audit records best-effort audit entries for successful state changes.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"alumni-tracker/internal/audit/domain"
	auditrepo "alumni-tracker/internal/audit/repository"
)

// SystemActor is recorded when an action has no authenticated actor (e.g. self-registration).
const SystemActor = "_system"

// IPExtractor returns the client IP carried in the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are
// logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID, action, resource, resourceID, metadata string)
}

// Logger implements AuditLogger on an audit repository.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	logger      *slog.Logger
	now         func() time.Time
}

// NewLogger returns a Logger persisting to repo. ipExtractor may be nil; the IP is
// then recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, logger: logger, now: time.Now}
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, actorID, action, resource, resourceID, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	if actorID == "" {
		actorID = SystemActor
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         ip,
		Metadata:   metadata,
		CreatedAt:  l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.logger.WarnContext(ctx, "audit: failed to log event",
			"action", action, "resource", resource, "resource_id", resourceID, "error", err)
	}
}
