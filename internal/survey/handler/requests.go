package handler

import (
	"encoding/json"
	"errors"

	"alumni-tracker/internal/survey/domain"
	"alumni-tracker/internal/survey/service"
)

// QuestionRequest is one question in the body of POST /v1/surveys.
type QuestionRequest struct {
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Options  []string `json:"options"`
	Required bool     `json:"required"`
}

// CreateRequest is the body of POST /v1/surveys.
type CreateRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Questions   []QuestionRequest `json:"questions"`
}

func (r *CreateRequest) toInput(createdBy string) service.CreateInput {
	in := service.CreateInput{
		Title:       r.Title,
		Description: r.Description,
		CreatedBy:   createdBy,
		Questions:   make([]service.QuestionInput, 0, len(r.Questions)),
	}
	for _, q := range r.Questions {
		in.Questions = append(in.Questions, service.QuestionInput{
			Text:     q.Text,
			Type:     domain.QuestionType(q.Type),
			Options:  q.Options,
			Required: q.Required,
		})
	}
	return in
}

// UpdateRequest is the body of PATCH /v1/surveys/{id}.
type UpdateRequest struct {
	Active *bool `json:"active"`
}

// AnswerValue is the value of one answer. It accepts a string, a number (for scale
// questions) or a list of strings (for multiple-choice questions).
type AnswerValue []string

// UnmarshalJSON implements json.Unmarshaler.
func (v *AnswerValue) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*v = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = []string{s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*v = []string{n.String()}
		return nil
	}
	return errors.New("answer value must be a string, a number or a list of strings")
}

// AnswerRequest answers one question.
type AnswerRequest struct {
	QuestionID string      `json:"question_id"`
	Value      AnswerValue `json:"value"`
}

// RespondRequest is the body of POST /v1/surveys/{id}/responses.
type RespondRequest struct {
	Answers []AnswerRequest `json:"answers"`
}

func (r *RespondRequest) answers() []domain.Answer {
	out := make([]domain.Answer, 0, len(r.Answers))
	for _, a := range r.Answers {
		out = append(out, domain.Answer{QuestionID: a.QuestionID, Values: a.Value})
	}
	return out
}
