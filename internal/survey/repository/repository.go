// Package repository persists surveys and their responses.
package repository

import (
	"context"
	"errors"

	"alumni-tracker/internal/survey/domain"
)

var (
	// ErrNotFound is returned by Update and Delete when the survey does not exist.
	ErrNotFound = errors.New("survey: not found")
	// ErrResponseExists is returned by CreateResponse when the account already responded.
	ErrResponseExists = errors.New("survey: response already recorded")
)

// MutateFunc edits a survey in place. Returning an error aborts the update.
type MutateFunc func(s *domain.Survey) error

// Repository defines persistence for surveys and responses.
type Repository interface {
	// GetByID returns the survey for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Survey, error)
	Create(ctx context.Context, s *domain.Survey) error
	// Update applies fn atomically to the stored survey and returns the result.
	Update(ctx context.Context, id string, fn MutateFunc) (*domain.Survey, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Survey, error)

	// CreateResponse stores r under its (survey, account) key, put-if-absent.
	CreateResponse(ctx context.Context, r *domain.Response) error
	// ListResponses returns the responses to every survey.
	ListResponses(ctx context.Context) ([]*domain.Response, error)
	// DeleteResponses removes the responses to surveyID and returns how many were removed.
	DeleteResponses(ctx context.Context, surveyID string) (int, error)
}
