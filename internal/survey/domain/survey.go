// Package domain defines surveys, their questions and the responses applicants submit.
package domain

import "time"

// QuestionType is the kind of answer a question takes.
type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionChoice   QuestionType = "choice"
	QuestionMultiple QuestionType = "multiple"
	QuestionScale    QuestionType = "scale"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionChoice, QuestionMultiple, QuestionScale:
		return true
	}
	return false
}

// HasOptions reports whether answers to t are picked from the question's options.
func (t QuestionType) HasOptions() bool {
	return t == QuestionChoice || t == QuestionMultiple
}

// Bounds of a scale answer.
const (
	ScaleMin = 1
	ScaleMax = 5
)

// Question is one item of a survey. Options is set for choice and multiple questions only.
type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Required bool         `json:"required"`
}

// Survey is a questionnaire published by a coordinator. Only active surveys accept responses.
type Survey struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
	Active      bool       `json:"active"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Question returns the question with id.
func (s *Survey) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Answer holds the values given for one question. Text, choice and scale answers carry
// a single value; multiple-choice answers one value per picked option.
type Answer struct {
	QuestionID string   `json:"question_id"`
	Values     []string `json:"values"`
}

// Response is one account's submission to a survey. An account responds at most once.
type Response struct {
	ID          string    `json:"id"`
	SurveyID    string    `json:"survey_id"`
	AccountID   string    `json:"account_id"`
	Answers     []Answer  `json:"answers"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ResponseKey is the store key of accountID's response to surveyID.
func ResponseKey(surveyID, accountID string) string {
	return surveyID + "/" + accountID
}
