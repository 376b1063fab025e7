// Package rbac checks the request principal against the authorization gate.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/policy/domain"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/server/interceptors"
)

var (
	// ErrUnauthenticated is returned when the context carries no principal.
	ErrUnauthenticated = errors.New("rbac: authentication required")
	// ErrForbidden is returned when the principal's role may not perform the action.
	ErrForbidden = errors.New("rbac: action not allowed for role")
)

// Require ensures the caller is authenticated and the gate allows its role to perform action.
// Returns (accountID, role, nil) on success.
func Require(ctx context.Context, gate engine.Gate, action domain.Action) (accountID, role string, err error) {
	accountID, okID := interceptors.GetAccountID(ctx)
	role, okRole := interceptors.GetRole(ctx)
	if !okID || !okRole {
		return "", "", ErrUnauthenticated
	}
	if err := gate.Authorize(ctx, role, action); err != nil {
		if errors.Is(err, engine.ErrDenied) {
			return "", "", fmt.Errorf("%w: %s", ErrForbidden, action)
		}
		return "", "", err
	}
	return accountID, role, nil
}

// HTTPError maps a Require error to its HTTP response.
func HTTPError(err error) *httputil.APIError {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return &httputil.APIError{Status: http.StatusUnauthorized, Code: httputil.CodeUnauthenticated, Description: "authentication required"}
	case errors.Is(err, ErrForbidden):
		return &httputil.APIError{Status: http.StatusForbidden, Code: httputil.CodeForbidden, Description: "not allowed for your role"}
	}
	return httputil.Internal()
}
