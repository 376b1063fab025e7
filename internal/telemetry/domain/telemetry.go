// Package domain defines the domain events published about accounts, activities and surveys.
package domain

import (
	"encoding/json"
	"time"
)

// EventType names a domain event.
type EventType string

const (
	EventAccountRegistered EventType = "account.registered"
	EventAccountApproved   EventType = "account.approved"
	EventAccountRejected   EventType = "account.rejected"
	EventProfileUpdated    EventType = "account.profile_updated"
	EventAccountDeleted    EventType = "account.deleted"
	EventSessionStarted    EventType = "session.started"
	EventActivityCreated   EventType = "activity.created"
	EventActivityUpdated   EventType = "activity.updated"
	EventEnrollmentAdded   EventType = "activity.enrollment_added"
	EventActivityDeleted   EventType = "activity.deleted"
	EventSurveyCreated     EventType = "survey.created"
	EventSurveyUpdated     EventType = "survey.updated"
	EventSurveyDeleted     EventType = "survey.deleted"
	EventSurveyResponded   EventType = "survey.responded"
)

// Event is one domain event. AccountID, ActivityID and SurveyID are empty when not applicable.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	AccountID  string          `json:"account_id,omitempty"`
	ActivityID string          `json:"activity_id,omitempty"`
	SurveyID   string          `json:"survey_id,omitempty"`
	ActorID    string          `json:"actor_id,omitempty"`
	Source     string          `json:"source"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
