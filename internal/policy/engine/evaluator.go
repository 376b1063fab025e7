package engine

import (
	"context"
	"errors"

	"alumni-tracker/internal/policy/domain"
)

// ErrDenied is returned by Authorize when the role may not perform the action.
var ErrDenied = errors.New("policy: action denied")

// Gate is the single authorization decision point. Every protected operation asks it
// before touching the store.
type Gate interface {
	Authorize(ctx context.Context, role string, action domain.Action) error
}
