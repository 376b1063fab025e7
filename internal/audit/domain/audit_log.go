// Package domain defines the audit log entry.
package domain

import "time"

// AuditLog records one successful state-changing action.
type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	IP         string    `json:"ip"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Audited actions.
const (
	ActionRegister      = "register"
	ActionDecide        = "decide"
	ActionLogin         = "login"
	ActionProfileUpdate = "profile_update"
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionEnroll        = "enroll"
	ActionDelete        = "delete"
	ActionRespond       = "respond"
)

// Audited resources.
const (
	ResourceAccount  = "account"
	ResourceActivity = "activity"
	ResourceSession  = "session"
	ResourceSurvey   = "survey"
)
