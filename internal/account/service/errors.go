package service

import (
	"errors"
	"fmt"

	"alumni-tracker/internal/account/domain"
)

// Sentinel errors for the account service; the HTTP handler maps them to status codes.
var (
	ErrValidation          = errors.New("account: invalid input")
	ErrDuplicateEmail      = errors.New("account: email already registered")
	ErrDuplicateNationalID = errors.New("account: national id already registered")
	ErrUnauthorized        = errors.New("account: not allowed")
	ErrNotFound            = errors.New("account: not found")
	ErrNotPending          = errors.New("account: decision already made")
	ErrBadSecret           = errors.New("account: wrong password")
	ErrNotApproved         = errors.New("account: not approved")
)

// NotApprovedError is returned by Authenticate when the credentials are valid but the
// account may not sign in yet. It matches ErrNotApproved.
type NotApprovedError struct {
	Status domain.Status
}

func (e *NotApprovedError) Error() string {
	return fmt.Sprintf("account: not approved (status %s)", e.Status)
}

// Is reports whether target is ErrNotApproved.
func (e *NotApprovedError) Is(target error) bool {
	return target == ErrNotApproved
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
