// Package repository persists audit log entries.
package repository

import (
	"context"

	"alumni-tracker/internal/audit/domain"
)

// ListFilter narrows ListRecent. Empty fields match everything.
type ListFilter struct {
	ActorID  string
	Action   string
	Resource string
	Limit    int
}

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListRecent returns matching entries, newest first, at most filter.Limit when positive.
	ListRecent(ctx context.Context, filter ListFilter) ([]*domain.AuditLog, error)
}
