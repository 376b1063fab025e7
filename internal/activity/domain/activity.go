// Package domain defines a training activity and its enrolled set.
package domain

import (
	"slices"
	"time"
)

// Modality is how an activity is delivered.
type Modality string

const (
	ModalityInPerson Modality = "in_person"
	ModalityVirtual  Modality = "virtual"
	ModalityHybrid   Modality = "hybrid"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == ModalityInPerson || m == ModalityVirtual || m == ModalityHybrid
}

// DateLayout is the format of StartDate and EndDate.
const DateLayout = "2006-01-02"

// Activity is a training with a fixed number of seats.
// len(Enrolled) never exceeds Capacity and no account id appears twice.
type Activity struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Instructor  string    `json:"instructor,omitempty"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date,omitempty"`
	Modality    Modality  `json:"modality"`
	Capacity    int       `json:"capacity"`
	Enrolled    []string  `json:"enrolled"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsEnrolled reports whether accountID holds a seat.
func (a *Activity) IsEnrolled(accountID string) bool {
	return slices.Contains(a.Enrolled, accountID)
}

// AvailableSeats returns the remaining seats, never negative.
func (a *Activity) AvailableSeats() int {
	return max(a.Capacity-len(a.Enrolled), 0)
}

// Full reports whether no seat is left.
func (a *Activity) Full() bool {
	return len(a.Enrolled) >= a.Capacity
}
