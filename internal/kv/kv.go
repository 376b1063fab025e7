// Package kv defines the keyed record store the domain repositories persist through.
//
// A store holds opaque records grouped in collections and keyed by id. The unit of
// atomicity is one (collection, id) key: Create and Update are linearizable per key,
// and no operation takes a lock wider than a single key.
package kv

import (
	"context"
	"errors"
)

// Sentinel errors returned (optionally wrapped) by every Store implementation.
var (
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("kv: record not found")
	// ErrConflict is returned by Create when a record already exists for the key.
	ErrConflict = errors.New("kv: record already exists")
)

// Collection names used by the repositories.
const (
	CollectionAccounts           = "accounts"
	CollectionAccountEmails      = "account_emails"
	CollectionAccountNationalIDs = "account_national_ids"
	CollectionActivities         = "activities"
	CollectionAuditLogs          = "audit_logs"
	CollectionSurveys            = "surveys"
	CollectionSurveyResponses    = "survey_responses"
)

// UpdateFunc receives the current record and returns its replacement.
// Returning an error aborts the update and leaves the stored record untouched;
// the error is returned unchanged from Update.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the persistence contract consumed by the repositories.
type Store interface {
	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// Put writes the record for id unconditionally.
	Put(ctx context.Context, collection, id string, record []byte) error
	// Create writes the record only if id is absent; otherwise ErrConflict.
	Create(ctx context.Context, collection, id string, record []byte) error
	// Update atomically reads, transforms and writes the record for id.
	// Concurrent Updates on the same key are serialized. Returns ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, fn UpdateFunc) error
	// Delete removes the record for id. Deleting a missing record is not an error.
	Delete(ctx context.Context, collection, id string) error
	// List returns every record in the collection in unspecified order.
	List(ctx context.Context, collection string) ([][]byte, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
