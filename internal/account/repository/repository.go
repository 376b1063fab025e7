// Package repository persists accounts and their uniqueness claims.
package repository

import (
	"context"
	"errors"

	"alumni-tracker/internal/account/domain"
)

var (
	// ErrEmailTaken is returned by Create when another account already holds the email.
	ErrEmailTaken = errors.New("account: email already registered")
	// ErrNationalIDTaken is returned by Create when another account already holds the national id.
	ErrNationalIDTaken = errors.New("account: national id already registered")
	// ErrNotFound is returned by Update and Delete when the account does not exist.
	ErrNotFound = errors.New("account: not found")
)

// MutateFunc edits an account in place. Returning an error aborts the update.
type MutateFunc func(a *domain.Account) error

// Repository defines persistence for accounts.
type Repository interface {
	// GetByID returns the account for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByEmail returns the account holding the normalized email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Create claims the email and national id and persists the account.
	Create(ctx context.Context, a *domain.Account) error
	// Update applies fn atomically to the stored account and returns the result.
	Update(ctx context.Context, id string, fn MutateFunc) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
	// Delete removes the account and frees its email and national id.
	Delete(ctx context.Context, id string) error
}
