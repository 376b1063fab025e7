package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alumni-tracker/internal/activity/domain"
	"alumni-tracker/internal/kv"
)

// KVRepository stores activities as JSON records in the activities collection.
type KVRepository struct {
	store kv.Store
}

// NewKVRepository returns a Repository backed by store.
func NewKVRepository(store kv.Store) *KVRepository {
	return &KVRepository{store: store}
}

// GetByID returns the activity for id, or nil if not found.
func (r *KVRepository) GetByID(ctx context.Context, id string) (*domain.Activity, error) {
	b, err := r.store.Get(ctx, kv.CollectionActivities, id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("activity: get %s: %w", id, err)
	}
	return decode(b)
}

// Create persists a new activity. The activity must have ID set.
func (r *KVRepository) Create(ctx context.Context, a *domain.Activity) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("activity: encode: %w", err)
	}
	if err := r.store.Create(ctx, kv.CollectionActivities, a.ID, b); err != nil {
		return fmt.Errorf("activity: create %s: %w", a.ID, err)
	}
	return nil
}

// Update runs fn inside the store's per-key read-modify-write. Errors from fn are returned unchanged.
func (r *KVRepository) Update(ctx context.Context, id string, fn MutateFunc) (*domain.Activity, error) {
	var out *domain.Activity
	err := r.store.Update(ctx, kv.CollectionActivities, id, func(current []byte) ([]byte, error) {
		a, err := decode(current)
		if err != nil {
			return nil, err
		}
		if err := fn(a); err != nil {
			return nil, err
		}
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("activity: encode: %w", err)
		}
		out = a
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

// Delete removes the activity and its enrollments, which live on the same record.
func (r *KVRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Get(ctx, kv.CollectionActivities, id); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("activity: get %s: %w", id, err)
	}
	if err := r.store.Delete(ctx, kv.CollectionActivities, id); err != nil {
		return fmt.Errorf("activity: delete %s: %w", id, err)
	}
	return nil
}

// List returns every activity in unspecified order.
func (r *KVRepository) List(ctx context.Context) ([]*domain.Activity, error) {
	records, err := r.store.List(ctx, kv.CollectionActivities)
	if err != nil {
		return nil, fmt.Errorf("activity: list: %w", err)
	}
	out := make([]*domain.Activity, 0, len(records))
	for _, rec := range records {
		a, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decode(b []byte) (*domain.Activity, error) {
	var a domain.Activity
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("activity: decode: %w", err)
	}
	if a.Enrolled == nil {
		a.Enrolled = []string{}
	}
	return &a, nil
}
