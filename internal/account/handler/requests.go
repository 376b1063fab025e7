package handler

import (
	"alumni-tracker/internal/account/domain"
	"alumni-tracker/internal/account/service"
)

// RegisterRequest is the body of POST /v1/accounts.
type RegisterRequest struct {
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	NationalID string            `json:"national_id"`
	Role       string            `json:"role"`
	Profile    domain.Profile    `json:"profile"`
	Employment domain.Employment `json:"employment"`
}

func (r *RegisterRequest) toInput() service.RegisterInput {
	return service.RegisterInput{
		Email:      r.Email,
		Password:   r.Password,
		NationalID: r.NationalID,
		Role:       domain.Role(r.Role),
		Profile:    r.Profile,
		Employment: r.Employment,
	}
}

// ProfileRequest is the body of PATCH /v1/accounts/me/profile.
type ProfileRequest struct {
	Profile    domain.Profile    `json:"profile"`
	Employment domain.Employment `json:"employment"`
}

// DecisionRequest is the body of POST /v1/accounts/{id}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
}
