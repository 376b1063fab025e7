// Package domain defines the authenticated principal derived from an access token.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidToken is returned when a token is missing, malformed, expired or foreign.
	ErrInvalidToken = errors.New("session: invalid or expired token")
	// ErrInactiveAccount is returned when the token's account no longer exists, is no
	// longer approved, or holds a different role than the token.
	ErrInactiveAccount = errors.New("session: account is not active")
)

// Principal is the (account, role) pair a request acts as. It is derived from a signed
// access token and the stored account on every request and is never persisted.
type Principal struct {
	AccountID string
	Role      string
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	AccountID   string    `json:"account_id"`
	Role        string    `json:"role"`
}
