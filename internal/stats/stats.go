// Package stats computes the coordinator dashboard figures from accounts, activities and surveys.
package stats

import (
	"context"
	"fmt"

	accountdomain "alumni-tracker/internal/account/domain"
	activitydomain "alumni-tracker/internal/activity/domain"
	surveydomain "alumni-tracker/internal/survey/domain"
)

// AccountLister returns every stored account.
type AccountLister interface {
	List(ctx context.Context) ([]*accountdomain.Account, error)
}

// ActivityLister returns every stored activity.
type ActivityLister interface {
	List(ctx context.Context) ([]*activitydomain.Activity, error)
}

// SurveyLister returns every stored survey and response.
type SurveyLister interface {
	List(ctx context.Context) ([]*surveydomain.Survey, error)
	ListResponses(ctx context.Context) ([]*surveydomain.Response, error)
}

// Summary is a point-in-time view; counts are not taken under one lock.
type Summary struct {
	Accounts           int            `json:"accounts"`
	AccountsByStatus   map[string]int `json:"accounts_by_status"`
	Applicants         int            `json:"applicants"`
	Coordinators       int            `json:"coordinators"`
	ApplicantsByJob    map[string]int `json:"applicants_by_employment"`
	Activities         int            `json:"activities"`
	ActiveActivities   int            `json:"active_activities"`
	InactiveActivities int            `json:"inactive_activities"`
	TotalSeats         int            `json:"total_seats"`
	TotalEnrollments   int            `json:"total_enrollments"`
	OccupancyPercent   float64        `json:"occupancy_percent"`
	Surveys            int            `json:"surveys"`
	ActiveSurveys      int            `json:"active_surveys"`
	SurveyResponses    int            `json:"survey_responses"`
}

// unreported labels applicants that left employment status empty.
const unreported = "unreported"

// Service builds summaries.
type Service struct {
	accounts   AccountLister
	activities ActivityLister
	surveys    SurveyLister
}

// NewService returns a Service reading from the given listers.
func NewService(accounts AccountLister, activities ActivityLister, surveys SurveyLister) *Service {
	return &Service{accounts: accounts, activities: activities, surveys: surveys}
}

// Summary counts accounts by status and role, applicants by employment status, and
// activity seats and enrollments, and surveys with the responses they collected.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: list accounts: %w", err)
	}
	activities, err := s.activities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: list activities: %w", err)
	}
	surveys, err := s.surveys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: list surveys: %w", err)
	}
	responses, err := s.surveys.ListResponses(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: list survey responses: %w", err)
	}

	out := &Summary{
		AccountsByStatus: map[string]int{
			string(accountdomain.StatusPending):  0,
			string(accountdomain.StatusApproved): 0,
			string(accountdomain.StatusRejected): 0,
		},
		ApplicantsByJob: make(map[string]int),
	}
	for _, a := range accounts {
		out.Accounts++
		out.AccountsByStatus[string(a.Status)]++
		if a.Role == accountdomain.RoleCoordinator {
			out.Coordinators++
			continue
		}
		out.Applicants++
		job := string(a.Employment.Status)
		if job == "" {
			job = unreported
		}
		out.ApplicantsByJob[job]++
	}
	for _, act := range activities {
		out.Activities++
		if act.Active {
			out.ActiveActivities++
		} else {
			out.InactiveActivities++
		}
		out.TotalSeats += act.Capacity
		out.TotalEnrollments += len(act.Enrolled)
	}
	live := make(map[string]bool, len(surveys))
	for _, sv := range surveys {
		out.Surveys++
		live[sv.ID] = true
		if sv.Active {
			out.ActiveSurveys++
		}
	}
	// Responses of a survey deleted mid-read are not counted.
	for _, r := range responses {
		if live[r.SurveyID] {
			out.SurveyResponses++
		}
	}
	if out.TotalSeats > 0 {
		out.OccupancyPercent = float64(out.TotalEnrollments) * 100 / float64(out.TotalSeats)
	}
	return out, nil
}
