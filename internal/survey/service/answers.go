package service

import (
	"slices"
	"strconv"
	"strings"

	"alumni-tracker/internal/survey/domain"
)

// checkAnswers validates answers against the survey's questions and returns them trimmed,
// in question order, with unanswered optional questions left out.
func checkAnswers(sv *domain.Survey, answers []domain.Answer) ([]domain.Answer, error) {
	byQuestion := make(map[string][]string, len(answers))
	for _, a := range answers {
		if _, ok := sv.Question(a.QuestionID); !ok {
			return nil, validationError("unknown question " + strconv.Quote(a.QuestionID))
		}
		if _, dup := byQuestion[a.QuestionID]; dup {
			return nil, validationError("question " + strconv.Quote(a.QuestionID) + " answered twice")
		}
		byQuestion[a.QuestionID] = trimValues(a.Values)
	}

	out := make([]domain.Answer, 0, len(byQuestion))
	for _, q := range sv.Questions {
		values := byQuestion[q.ID]
		if len(values) == 0 {
			if q.Required {
				return nil, validationError("question " + strconv.Quote(q.Text) + " is required")
			}
			continue
		}
		if err := checkValues(q, values); err != nil {
			return nil, err
		}
		out = append(out, domain.Answer{QuestionID: q.ID, Values: values})
	}
	return out, nil
}

func checkValues(q domain.Question, values []string) error {
	label := "question " + strconv.Quote(q.Text)
	switch q.Type {
	case domain.QuestionText:
		if len(values) != 1 {
			return validationError(label + " takes a single answer")
		}
	case domain.QuestionChoice:
		if len(values) != 1 {
			return validationError(label + " takes a single option")
		}
		if !slices.Contains(q.Options, values[0]) {
			return validationError(label + ": " + strconv.Quote(values[0]) + " is not an option")
		}
	case domain.QuestionMultiple:
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if !slices.Contains(q.Options, v) {
				return validationError(label + ": " + strconv.Quote(v) + " is not an option")
			}
			if seen[v] {
				return validationError(label + ": " + strconv.Quote(v) + " picked twice")
			}
			seen[v] = true
		}
	case domain.QuestionScale:
		if len(values) != 1 {
			return validationError(label + " takes a single rating")
		}
		n, err := strconv.Atoi(values[0])
		if err != nil || n < domain.ScaleMin || n > domain.ScaleMax {
			return validationError(label + " must be rated " + strconv.Itoa(domain.ScaleMin) + " to " + strconv.Itoa(domain.ScaleMax))
		}
	}
	return nil
}

func trimValues(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
