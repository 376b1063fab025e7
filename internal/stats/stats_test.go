package stats

import (
	"context"
	"errors"
	"testing"

	accountdomain "alumni-tracker/internal/account/domain"
	activitydomain "alumni-tracker/internal/activity/domain"
	surveydomain "alumni-tracker/internal/survey/domain"
)

type fakeAccounts struct {
	list []*accountdomain.Account
	err  error
}

func (f fakeAccounts) List(context.Context) ([]*accountdomain.Account, error) { return f.list, f.err }

type fakeActivities struct {
	list []*activitydomain.Activity
	err  error
}

func (f fakeActivities) List(context.Context) ([]*activitydomain.Activity, error) { return f.list, f.err }

type fakeSurveys struct {
	list      []*surveydomain.Survey
	responses []*surveydomain.Response
	err       error
}

func (f fakeSurveys) List(context.Context) ([]*surveydomain.Survey, error) { return f.list, f.err }

func (f fakeSurveys) ListResponses(context.Context) ([]*surveydomain.Response, error) {
	return f.responses, f.err
}

func TestSummary(t *testing.T) {
	accounts := fakeAccounts{list: []*accountdomain.Account{
		{Role: accountdomain.RoleCoordinator, Status: accountdomain.StatusApproved},
		{Role: accountdomain.RoleApplicant, Status: accountdomain.StatusApproved,
			Employment: accountdomain.Employment{Status: accountdomain.EmploymentEmployed}},
		{Role: accountdomain.RoleApplicant, Status: accountdomain.StatusPending,
			Employment: accountdomain.Employment{Status: accountdomain.EmploymentEmployed}},
		{Role: accountdomain.RoleApplicant, Status: accountdomain.StatusRejected},
	}}
	activities := fakeActivities{list: []*activitydomain.Activity{
		{Capacity: 10, Enrolled: []string{"a", "b"}, Active: true},
		{Capacity: 10, Enrolled: []string{"c", "d", "e"}, Active: false},
	}}
	responses := []*surveydomain.Response{
		{SurveyID: "s1", AccountID: "a"},
		{SurveyID: "s1", AccountID: "b"},
		{SurveyID: "s2", AccountID: "a"},
		{SurveyID: "gone", AccountID: "a"},
	}
	surveys := fakeSurveys{list: []*surveydomain.Survey{{ID: "s1", Active: true}, {ID: "s2"}}, responses: responses}
	got, err := NewService(accounts, activities, surveys).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got.Accounts != 4 || got.Applicants != 3 || got.Coordinators != 1 {
		t.Errorf("account counts = %d/%d/%d", got.Accounts, got.Applicants, got.Coordinators)
	}
	if got.AccountsByStatus["approved"] != 2 || got.AccountsByStatus["pending"] != 1 || got.AccountsByStatus["rejected"] != 1 {
		t.Errorf("AccountsByStatus = %v", got.AccountsByStatus)
	}
	if got.ApplicantsByJob["employed"] != 2 || got.ApplicantsByJob["unreported"] != 1 {
		t.Errorf("ApplicantsByJob = %v", got.ApplicantsByJob)
	}
	if got.Activities != 2 || got.ActiveActivities != 1 || got.InactiveActivities != 1 {
		t.Errorf("activity counts = %d/%d/%d", got.Activities, got.ActiveActivities, got.InactiveActivities)
	}
	if got.TotalSeats != 20 || got.TotalEnrollments != 5 || got.OccupancyPercent != 25 {
		t.Errorf("seats = %d, enrollments = %d, occupancy = %v", got.TotalSeats, got.TotalEnrollments, got.OccupancyPercent)
	}
	if got.Surveys != 2 || got.ActiveSurveys != 1 || got.SurveyResponses != 3 {
		t.Errorf("survey counts = %d/%d/%d, want 2/1/3", got.Surveys, got.ActiveSurveys, got.SurveyResponses)
	}
}

func TestSummary_Empty(t *testing.T) {
	got, err := NewService(fakeAccounts{}, fakeActivities{}, fakeSurveys{}).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got.AccountsByStatus["pending"] != 0 || got.OccupancyPercent != 0 || got.SurveyResponses != 0 {
		t.Errorf("empty summary = %+v", got)
	}
}

func TestSummary_ListError(t *testing.T) {
	boom := errors.New("store down")
	if _, err := NewService(fakeAccounts{err: boom}, fakeActivities{}, fakeSurveys{}).Summary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want store error", err)
	}
	if _, err := NewService(fakeAccounts{}, fakeActivities{err: boom}, fakeSurveys{}).Summary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want store error", err)
	}
	if _, err := NewService(fakeAccounts{}, fakeActivities{}, fakeSurveys{err: boom}).Summary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want store error", err)
	}
}
