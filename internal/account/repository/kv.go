package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alumni-tracker/internal/account/domain"
	"alumni-tracker/internal/kv"
)

// staleClaimAfter is how long a claim whose account was never written is honoured
// before another registration may take it over.
const staleClaimAfter = time.Minute

// claim is the record stored under a uniqueness key. It points back at the owning account.
type claim struct {
	AccountID string    `json:"account_id"`
	ClaimedAt time.Time `json:"claimed_at,omitempty"`
}

// KVRepository stores accounts in the accounts collection and reserves each email and
// national id with a put-if-absent claim in its own collection. Claims are per key, so
// two registrations only contend when they share an email or a national id.
type KVRepository struct {
	store kv.Store
	now   func() time.Time
}

// NewKVRepository returns a Repository backed by store.
func NewKVRepository(store kv.Store) *KVRepository {
	return &KVRepository{store: store, now: time.Now}
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for store failures, not for missing records.
func (r *KVRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	b, err := r.store.Get(ctx, kv.CollectionAccounts, id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("account: get %s: %w", id, err)
	}
	return decode(b)
}

// GetByEmail resolves the email claim and loads the owning account, or returns nil if not found.
// A claim whose account was never written (an interrupted registration) counts as not found.
func (r *KVRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	b, err := r.store.Get(ctx, kv.CollectionAccountEmails, email)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("account: get email claim: %w", err)
	}
	var c claim
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("account: decode email claim: %w", err)
	}
	return r.GetByID(ctx, c.AccountID)
}

// Create persists a new account. The account must have ID, Email and NationalID set.
// The email is claimed first, then the national id; a failed step releases the claims taken before it.
// A claim left behind by a registration that never wrote its account is taken over once stale.
func (r *KVRepository) Create(ctx context.Context, a *domain.Account) error {
	c, err := json.Marshal(claim{AccountID: a.ID, ClaimedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("account: encode claim: %w", err)
	}
	rec, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("account: encode: %w", err)
	}

	if err := r.claim(ctx, kv.CollectionAccountEmails, a.Email, c); err != nil {
		if errors.Is(err, kv.ErrConflict) {
			return ErrEmailTaken
		}
		return fmt.Errorf("account: claim email: %w", err)
	}
	if err := r.claim(ctx, kv.CollectionAccountNationalIDs, a.NationalID, c); err != nil {
		r.release(ctx, kv.CollectionAccountEmails, a.Email, a.ID)
		if errors.Is(err, kv.ErrConflict) {
			return ErrNationalIDTaken
		}
		return fmt.Errorf("account: claim national id: %w", err)
	}
	if err := r.store.Create(ctx, kv.CollectionAccounts, a.ID, rec); err != nil {
		r.release(ctx, kv.CollectionAccountNationalIDs, a.NationalID, a.ID)
		r.release(ctx, kv.CollectionAccountEmails, a.Email, a.ID)
		return fmt.Errorf("account: create %s: %w", a.ID, err)
	}

	// A registration stalled past staleClaimAfter may have lost a claim before its account landed.
	if owner, err := r.owner(ctx, kv.CollectionAccountEmails, a.Email); err != nil || owner != a.ID {
		r.undo(ctx, a)
		if err != nil {
			return fmt.Errorf("account: verify email claim: %w", err)
		}
		return ErrEmailTaken
	}
	if owner, err := r.owner(ctx, kv.CollectionAccountNationalIDs, a.NationalID); err != nil || owner != a.ID {
		r.undo(ctx, a)
		if err != nil {
			return fmt.Errorf("account: verify national id claim: %w", err)
		}
		return ErrNationalIDTaken
	}
	return nil
}

// claim reserves key for the account encoded in rec. On conflict it takes over a stale
// orphan claim, comparing against the orphan's account id so only one contender wins.
func (r *KVRepository) claim(ctx context.Context, collection, key string, rec []byte) error {
	err := r.store.Create(ctx, collection, key, rec)
	if !errors.Is(err, kv.ErrConflict) {
		return err
	}
	orphan, ok, err := r.staleClaim(ctx, collection, key)
	if err != nil {
		return err
	}
	if !ok {
		return kv.ErrConflict
	}
	err = r.store.Update(ctx, collection, key, func(current []byte) ([]byte, error) {
		var c claim
		if err := json.Unmarshal(current, &c); err != nil {
			return nil, fmt.Errorf("account: decode claim: %w", err)
		}
		if c.AccountID != orphan {
			return nil, kv.ErrConflict
		}
		return rec, nil
	})
	if errors.Is(err, kv.ErrNotFound) {
		// Released between the reads.
		return r.store.Create(ctx, collection, key, rec)
	}
	return err
}

// staleClaim reports whether the claim at key may be taken over and, if so, the account
// id it currently names. A claim qualifies when its account record does not exist and it
// is older than staleClaimAfter; claims without a timestamp count as old.
func (r *KVRepository) staleClaim(ctx context.Context, collection, key string) (string, bool, error) {
	b, err := r.store.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", true, nil
		}
		return "", false, err
	}
	var c claim
	if err := json.Unmarshal(b, &c); err != nil {
		return "", false, fmt.Errorf("account: decode claim: %w", err)
	}
	if !c.ClaimedAt.IsZero() && r.now().Sub(c.ClaimedAt) < staleClaimAfter {
		return "", false, nil
	}
	if _, err := r.store.Get(ctx, kv.CollectionAccounts, c.AccountID); err == nil {
		return "", false, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return "", false, err
	}
	return c.AccountID, true, nil
}

// owner returns the account id named by the claim at key, or "" when unclaimed.
func (r *KVRepository) owner(ctx context.Context, collection, key string) (string, error) {
	b, err := r.store.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	var c claim
	if err := json.Unmarshal(b, &c); err != nil {
		return "", fmt.Errorf("account: decode claim: %w", err)
	}
	return c.AccountID, nil
}

// undo removes an account written by a registration that lost one of its claims.
func (r *KVRepository) undo(ctx context.Context, a *domain.Account) {
	_ = r.store.Delete(context.WithoutCancel(ctx), kv.CollectionAccounts, a.ID)
	r.release(ctx, kv.CollectionAccountNationalIDs, a.NationalID, a.ID)
	r.release(ctx, kv.CollectionAccountEmails, a.Email, a.ID)
}

// release drops the claim at key if it still names accountID. It runs even when ctx is
// already canceled so the key does not stay reserved.
func (r *KVRepository) release(ctx context.Context, collection, key, accountID string) {
	ctx = context.WithoutCancel(ctx)
	if owner, err := r.owner(ctx, collection, key); err != nil || owner != accountID {
		return
	}
	_ = r.store.Delete(ctx, collection, key)
}

// Delete removes the account and then releases its email and national id claims so
// both can be registered again. It returns ErrNotFound when the account does not exist.
func (r *KVRepository) Delete(ctx context.Context, id string) error {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}
	if err := r.store.Delete(ctx, kv.CollectionAccounts, id); err != nil {
		return fmt.Errorf("account: delete %s: %w", id, err)
	}
	r.release(ctx, kv.CollectionAccountEmails, a.Email, id)
	r.release(ctx, kv.CollectionAccountNationalIDs, a.NationalID, id)
	return nil
}

// Update applies fn under the store's per-key atomicity. Errors from fn are returned unchanged.
func (r *KVRepository) Update(ctx context.Context, id string, fn MutateFunc) (*domain.Account, error) {
	var out *domain.Account
	err := r.store.Update(ctx, kv.CollectionAccounts, id, func(current []byte) ([]byte, error) {
		a, err := decode(current)
		if err != nil {
			return nil, err
		}
		if err := fn(a); err != nil {
			return nil, err
		}
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("account: encode: %w", err)
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

// List returns every account in unspecified order.
func (r *KVRepository) List(ctx context.Context) ([]*domain.Account, error) {
	records, err := r.store.List(ctx, kv.CollectionAccounts)
	if err != nil {
		return nil, fmt.Errorf("account: list: %w", err)
	}
	out := make([]*domain.Account, 0, len(records))
	for _, rec := range records {
		a, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decode(b []byte) (*domain.Account, error) {
	var a domain.Account
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("account: decode: %w", err)
	}
	return &a, nil
}
