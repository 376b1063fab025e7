// Package repository persists activities.
package repository

import (
	"context"
	"errors"

	"alumni-tracker/internal/activity/domain"
)

// ErrNotFound is returned by Update and Delete when the activity does not exist.
var ErrNotFound = errors.New("activity: not found")

// MutateFunc edits an activity in place. Returning an error aborts the update.
type MutateFunc func(a *domain.Activity) error

// Repository defines persistence for activities.
type Repository interface {
	// GetByID returns the activity for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Activity, error)
	Create(ctx context.Context, a *domain.Activity) error
	// Update applies fn atomically to the stored activity and returns the result.
	// Concurrent updates of one activity are serialized; different activities never contend.
	Update(ctx context.Context, id string, fn MutateFunc) (*domain.Activity, error)
	List(ctx context.Context) ([]*domain.Activity, error)
	Delete(ctx context.Context, id string) error
}
