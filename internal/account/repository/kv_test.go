package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"alumni-tracker/internal/account/domain"
	"alumni-tracker/internal/kv"
	"alumni-tracker/internal/kv/memory"
)

func newAccount(id, email, nationalID string) *domain.Account {
	return &domain.Account{
		ID:         id,
		Email:      email,
		NationalID: nationalID,
		Role:       domain.RoleApplicant,
		Status:     domain.StatusPending,
		Profile:    domain.Profile{FirstName: "Ana", LastName: "Pérez"},
	}
}

func TestKVRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(memory.New())
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "0102030405")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Email != "ana@example.com" {
		t.Fatalf("GetByID = %+v", got)
	}
	byEmail, err := repo.GetByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if byEmail == nil || byEmail.ID != "a1" {
		t.Fatalf("GetByEmail = %+v", byEmail)
	}
}

func TestKVRepository_GetMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(memory.New())
	if a, err := repo.GetByID(ctx, "nope"); err != nil || a != nil {
		t.Errorf("GetByID = %v, %v; want nil, nil", a, err)
	}
	if a, err := repo.GetByEmail(ctx, "nobody@example.com"); err != nil || a != nil {
		t.Errorf("GetByEmail = %v, %v; want nil, nil", a, err)
	}
}

func TestKVRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := NewKVRepository(store)
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, newAccount("a2", "ana@example.com", "222"))
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	// The national id of the rejected registration stays free.
	if err := repo.Create(ctx, newAccount("a3", "other@example.com", "222")); err != nil {
		t.Fatalf("Create with freed national id: %v", err)
	}
}

func TestKVRepository_DuplicateNationalIDReleasesEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := NewKVRepository(store)
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, newAccount("a2", "luis@example.com", "111"))
	if !errors.Is(err, ErrNationalIDTaken) {
		t.Fatalf("err = %v, want ErrNationalIDTaken", err)
	}
	if _, err := store.Get(ctx, kv.CollectionAccountEmails, "luis@example.com"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("email claim after failed registration: err = %v, want ErrNotFound", err)
	}
	if err := repo.Create(ctx, newAccount("a3", "luis@example.com", "333")); err != nil {
		t.Fatalf("retry with released email: %v", err)
	}
}

// failingCreateStore fails Create for one collection.
type failingCreateStore struct {
	kv.Store
	collection string
}

func (s *failingCreateStore) Create(ctx context.Context, collection, id string, record []byte) error {
	if collection == s.collection {
		return errors.New("disk full")
	}
	return s.Store.Create(ctx, collection, id, record)
}

func TestKVRepository_CreateFailureReleasesClaims(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	repo := NewKVRepository(&failingCreateStore{Store: base, collection: kv.CollectionAccounts})
	err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111"))
	if err == nil || errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrNationalIDTaken) {
		t.Fatalf("err = %v, want storage error", err)
	}
	for _, c := range []struct{ collection, key string }{
		{kv.CollectionAccountEmails, "ana@example.com"},
		{kv.CollectionAccountNationalIDs, "111"},
	} {
		if _, err := base.Get(ctx, c.collection, c.key); !errors.Is(err, kv.ErrNotFound) {
			t.Errorf("%s/%s still claimed: err = %v", c.collection, c.key, err)
		}
	}
}

func TestKVRepository_OrphanClaimIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.Put(ctx, kv.CollectionAccountEmails, "ghost@example.com", []byte(`{"account_id":"missing"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	repo := NewKVRepository(store)
	a, err := repo.GetByEmail(ctx, "ghost@example.com")
	if err != nil || a != nil {
		t.Errorf("GetByEmail = %v, %v; want nil, nil", a, err)
	}
}

func TestKVRepository_OrphanClaimTakenOver(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		key        string
	}{
		{"email", kv.CollectionAccountEmails, "ana@example.com"},
		{"national id", kv.CollectionAccountNationalIDs, "111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			if err := store.Put(ctx, tt.collection, tt.key, []byte(`{"account_id":"ghost"}`)); err != nil {
				t.Fatalf("Put: %v", err)
			}
			repo := NewKVRepository(store)
			if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); err != nil {
				t.Fatalf("Create over orphan claim: %v", err)
			}
			got, err := repo.GetByEmail(ctx, "ana@example.com")
			if err != nil || got == nil || got.ID != "a1" {
				t.Fatalf("GetByEmail = %+v, %v; want a1", got, err)
			}
			b, err := store.Get(ctx, tt.collection, tt.key)
			if err != nil {
				t.Fatalf("Get claim: %v", err)
			}
			var c claim
			if err := json.Unmarshal(b, &c); err != nil {
				t.Fatalf("decode claim: %v", err)
			}
			if c.AccountID != "a1" {
				t.Errorf("claim owner = %q, want a1", c.AccountID)
			}
		})
	}
}

func TestKVRepository_FreshOrphanClaimHeld(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewKVRepository(store)
	repo.now = func() time.Time { return now }

	rec, _ := json.Marshal(claim{AccountID: "in-flight", ClaimedAt: now.Add(-10 * time.Second)})
	if err := store.Put(ctx, kv.CollectionAccountEmails, "ana@example.com", rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken while the claim is fresh", err)
	}

	now = now.Add(staleClaimAfter)
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); err != nil {
		t.Fatalf("Create after claim went stale: %v", err)
	}
}

func TestKVRepository_ClaimOfLiveAccountNotTakenOver(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(memory.New())
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if err := repo.Create(ctx, newAccount("a2", "ana@example.com", "222")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

// stealingStore hands the email claim to another account just before the account record is written.
type stealingStore struct {
	kv.Store
}

func (s *stealingStore) Create(ctx context.Context, collection, id string, record []byte) error {
	if collection == kv.CollectionAccounts {
		_ = s.Store.Put(ctx, kv.CollectionAccountEmails, "ana@example.com", []byte(`{"account_id":"other"}`))
	}
	return s.Store.Create(ctx, collection, id, record)
}

func TestKVRepository_LostClaimUndoesRegistration(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	repo := NewKVRepository(&stealingStore{Store: base})
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	if _, err := base.Get(ctx, kv.CollectionAccounts, "a1"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("account record kept: err = %v", err)
	}
	if _, err := base.Get(ctx, kv.CollectionAccountNationalIDs, "111"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("national id still claimed: err = %v", err)
	}
	b, err := base.Get(ctx, kv.CollectionAccountEmails, "ana@example.com")
	if err != nil || string(b) != `{"account_id":"other"}` {
		t.Errorf("email claim = %s, %v; want the other owner's claim untouched", b, err)
	}
}

func TestKVRepository_DeleteReleasesClaims(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(memory.New())
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if a, err := repo.GetByID(ctx, "a1"); err != nil || a != nil {
		t.Errorf("GetByID after Delete = %v, %v", a, err)
	}
	if err := repo.Create(ctx, newAccount("a2", "ana@example.com", "111")); err != nil {
		t.Fatalf("re-register freed email and national id: %v", err)
	}
	if err := repo.Delete(ctx, "a1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestKVRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(memory.New())
	if err := repo.Create(ctx, newAccount("a1", "ana@example.com", "111")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.Update(ctx, "a1", func(a *domain.Account) error {
		a.Profile.City = "Quito"
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Profile.City != "Quito" {
		t.Errorf("returned City = %q", got.Profile.City)
	}
	stored, _ := repo.GetByID(ctx, "a1")
	if stored.Profile.City != "Quito" {
		t.Errorf("stored City = %q", stored.Profile.City)
	}

	abort := errors.New("abort")
	if _, err := repo.Update(ctx, "a1", func(a *domain.Account) error {
		a.Profile.City = "Lima"
		return abort
	}); !errors.Is(err, abort) {
		t.Fatalf("err = %v, want abort", err)
	}
	stored, _ = repo.GetByID(ctx, "a1")
	if stored.Profile.City != "Quito" {
		t.Errorf("aborted update changed City to %q", stored.Profile.City)
	}

	if _, err := repo.Update(ctx, "missing", func(*domain.Account) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKVRepository_ConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewKVRepository(memory.New())
	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, newAccount(fmt.Sprintf("a%d", i), "same@example.com", fmt.Sprintf("id-%d", i)))
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if !errors.Is(err, ErrEmailTaken) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(List) = %d, want 1", len(all))
	}
}
