package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alumni-tracker/internal/kv"
	"alumni-tracker/internal/survey/domain"
)

// KVRepository stores surveys in the surveys collection and responses in
// survey_responses, keyed by domain.ResponseKey so each account answers once.
type KVRepository struct {
	store kv.Store
}

// NewKVRepository returns a Repository backed by store.
func NewKVRepository(store kv.Store) *KVRepository {
	return &KVRepository{store: store}
}

// GetByID returns the survey for id, or nil if not found.
func (r *KVRepository) GetByID(ctx context.Context, id string) (*domain.Survey, error) {
	b, err := r.store.Get(ctx, kv.CollectionSurveys, id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("survey: get %s: %w", id, err)
	}
	return decode(b)
}

// Create persists a new survey. The survey must have ID set.
func (r *KVRepository) Create(ctx context.Context, s *domain.Survey) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("survey: encode: %w", err)
	}
	if err := r.store.Create(ctx, kv.CollectionSurveys, s.ID, b); err != nil {
		return fmt.Errorf("survey: create %s: %w", s.ID, err)
	}
	return nil
}

// Update runs fn inside the store's per-key read-modify-write. Errors from fn are returned unchanged.
func (r *KVRepository) Update(ctx context.Context, id string, fn MutateFunc) (*domain.Survey, error) {
	var out *domain.Survey
	err := r.store.Update(ctx, kv.CollectionSurveys, id, func(current []byte) ([]byte, error) {
		s, err := decode(current)
		if err != nil {
			return nil, err
		}
		if err := fn(s); err != nil {
			return nil, err
		}
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("survey: encode: %w", err)
		}
		out = s
		return b, nil
	})
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// Delete removes the survey record. Its responses are removed with DeleteResponses.
func (r *KVRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Get(ctx, kv.CollectionSurveys, id); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("survey: get %s: %w", id, err)
	}
	if err := r.store.Delete(ctx, kv.CollectionSurveys, id); err != nil {
		return fmt.Errorf("survey: delete %s: %w", id, err)
	}
	return nil
}

// List returns every survey in unspecified order.
func (r *KVRepository) List(ctx context.Context) ([]*domain.Survey, error) {
	records, err := r.store.List(ctx, kv.CollectionSurveys)
	if err != nil {
		return nil, fmt.Errorf("survey: list: %w", err)
	}
	out := make([]*domain.Survey, 0, len(records))
	for _, rec := range records {
		s, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// CreateResponse stores resp under domain.ResponseKey. A second response from the same
// account to the same survey returns ErrResponseExists.
func (r *KVRepository) CreateResponse(ctx context.Context, resp *domain.Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("survey: encode response: %w", err)
	}
	key := domain.ResponseKey(resp.SurveyID, resp.AccountID)
	if err := r.store.Create(ctx, kv.CollectionSurveyResponses, key, b); err != nil {
		if errors.Is(err, kv.ErrConflict) {
			return ErrResponseExists
		}
		return fmt.Errorf("survey: create response %s: %w", key, err)
	}
	return nil
}

// ListResponses returns every stored response in unspecified order.
func (r *KVRepository) ListResponses(ctx context.Context) ([]*domain.Response, error) {
	records, err := r.store.List(ctx, kv.CollectionSurveyResponses)
	if err != nil {
		return nil, fmt.Errorf("survey: list responses: %w", err)
	}
	out := make([]*domain.Response, 0, len(records))
	for _, rec := range records {
		var resp domain.Response
		if err := json.Unmarshal(rec, &resp); err != nil {
			return nil, fmt.Errorf("survey: decode response: %w", err)
		}
		out = append(out, &resp)
	}
	return out, nil
}

// DeleteResponses removes every response to surveyID.
func (r *KVRepository) DeleteResponses(ctx context.Context, surveyID string) (int, error) {
	all, err := r.ListResponses(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, resp := range all {
		if resp.SurveyID != surveyID {
			continue
		}
		if err := r.store.Delete(ctx, kv.CollectionSurveyResponses, domain.ResponseKey(resp.SurveyID, resp.AccountID)); err != nil {
			return n, fmt.Errorf("survey: delete response: %w", err)
		}
		n++
	}
	return n, nil
}

func decode(b []byte) (*domain.Survey, error) {
	var s domain.Survey
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("survey: decode: %w", err)
	}
	if s.Questions == nil {
		s.Questions = []domain.Question{}
	}
	return &s, nil
}
