package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"alumni-tracker/internal/audit/domain"
	"alumni-tracker/internal/kv"
)

// KVRepository stores audit entries in the audit_logs collection.
type KVRepository struct {
	store kv.Store
}

// NewKVRepository returns a Repository backed by store.
func NewKVRepository(store kv.Store) *KVRepository {
	return &KVRepository{store: store}
}

// Create persists a new entry. Entry ids are unique; a duplicate id is an error.
func (r *KVRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}
	if err := r.store.Create(ctx, kv.CollectionAuditLogs, a.ID, b); err != nil {
		return fmt.Errorf("audit: create %s: %w", a.ID, err)
	}
	return nil
}

// ListRecent scans the collection and returns matching entries newest first.
func (r *KVRepository) ListRecent(ctx context.Context, filter ListFilter) ([]*domain.AuditLog, error) {
	records, err := r.store.List(ctx, kv.CollectionAuditLogs)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	out := make([]*domain.AuditLog, 0, len(records))
	for _, rec := range records {
		var a domain.AuditLog
		if err := json.Unmarshal(rec, &a); err != nil {
			return nil, fmt.Errorf("audit: decode: %w", err)
		}
		if filter.ActorID != "" && a.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && a.Action != filter.Action {
			continue
		}
		if filter.Resource != "" && a.Resource != filter.Resource {
			continue
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
