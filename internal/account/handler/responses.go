package handler

import (
	"time"

	"alumni-tracker/internal/account/domain"
)

// AccountResponse is the public view of an account. The password hash is never included.
type AccountResponse struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	NationalID string            `json:"national_id"`
	Role       domain.Role       `json:"role"`
	Status     domain.Status     `json:"status"`
	Profile    domain.Profile    `json:"profile"`
	Employment domain.Employment `json:"employment"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	DecidedAt  *time.Time        `json:"decided_at,omitempty"`
	DecidedBy  string            `json:"decided_by,omitempty"`
}

// ListResponse is the body of GET /v1/accounts.
type ListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

func toResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Email:      a.Email,
		NationalID: a.NationalID,
		Role:       a.Role,
		Status:     a.Status,
		Profile:    a.Profile,
		Employment: a.Employment,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		DecidedAt:  a.DecidedAt,
		DecidedBy:  a.DecidedBy,
	}
}
