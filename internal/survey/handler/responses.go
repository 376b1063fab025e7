package handler

import (
	"time"

	"alumni-tracker/internal/survey/domain"
)

// SurveyView is the public view of a survey. Applicants see whether they already
// responded; coordinators see how many responses were collected.
type SurveyView struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Questions     []domain.Question `json:"questions"`
	Active        bool              `json:"active"`
	Responded     *bool             `json:"responded,omitempty"`
	ResponseCount *int              `json:"response_count,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ListView is the body of GET /v1/surveys.
type ListView struct {
	Surveys []SurveyView `json:"surveys"`
}

// ResponseView is one submitted response.
type ResponseView struct {
	ID          string          `json:"id"`
	SurveyID    string          `json:"survey_id"`
	AccountID   string          `json:"account_id"`
	Answers     []domain.Answer `json:"answers"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// ResponseListView is the body of GET /v1/surveys/{id}/responses.
type ResponseListView struct {
	Responses []ResponseView `json:"responses"`
}

func toSurveyView(s *domain.Survey) SurveyView {
	return SurveyView{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Questions:   s.Questions,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
	}
}

func toResponseView(r *domain.Response) ResponseView {
	return ResponseView{
		ID:          r.ID,
		SurveyID:    r.SurveyID,
		AccountID:   r.AccountID,
		Answers:     r.Answers,
		SubmittedAt: r.SubmittedAt,
	}
}
