// Package domain defines the account entity and its approval lifecycle.
package domain

import (
	"strings"
	"time"
)

// Role is fixed at registration.
type Role string

const (
	RoleApplicant   Role = "applicant"
	RoleCoordinator Role = "coordinator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleApplicant || r == RoleCoordinator
}

// Status is the approval state. Pending is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// InitialStatus is the status an account of role r is created with.
// Coordinators are approved on creation; applicants wait for a decision.
func InitialStatus(r Role) Status {
	if r == RoleCoordinator {
		return StatusApproved
	}
	return StatusPending
}

// Decision is a coordinator's verdict on a pending account.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status returns the status the decision moves a pending account to, and false for an unknown decision.
func (d Decision) Status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}

// EmploymentStatus is the self-reported labour situation of a graduate.
type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentStudying     EmploymentStatus = "studying"
)

// Valid reports whether e is empty (not reported) or a known status.
func (e EmploymentStatus) Valid() bool {
	switch e {
	case "", EmploymentEmployed, EmploymentUnemployed, EmploymentSelfEmployed, EmploymentStudying:
		return true
	}
	return false
}

// Profile is the personal and academic data captured at registration and editable later.
type Profile struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Phone          string `json:"phone,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	Province       string `json:"province,omitempty"`
	Career         string `json:"career,omitempty"`
	Faculty        string `json:"faculty,omitempty"`
	GraduationYear string `json:"graduation_year,omitempty"`
	Degree         string `json:"degree,omitempty"`
	LinkedIn       string `json:"linkedin,omitempty"`
	Portfolio      string `json:"portfolio,omitempty"`
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Employment is the current job situation of a graduate.
type Employment struct {
	Status      EmploymentStatus `json:"status,omitempty"`
	Company     string           `json:"company,omitempty"`
	Position    string           `json:"position,omitempty"`
	SalaryRange string           `json:"salary_range,omitempty"`
}

// Account is a registered user. Email and NationalID are unique across all accounts.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	NationalID   string     `json:"national_id"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	Profile      Profile    `json:"profile"`
	Employment   Employment `json:"employment"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
