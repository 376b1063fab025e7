package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"alumni-tracker/internal/activity/domain"
	"alumni-tracker/internal/activity/repository"
	"alumni-tracker/internal/kv"
	"alumni-tracker/internal/kv/memory"
	"alumni-tracker/internal/kv/sqlite"
)

func newTestService(t *testing.T, opts ...Option) *EnrollmentService {
	t.Helper()
	return NewEnrollmentService(repository.NewKVRepository(memory.New()), opts...)
}

func newSQLiteService(t *testing.T) *EnrollmentService {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "alumni.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewEnrollmentService(repository.NewKVRepository(store))
}

func mustCreate(t *testing.T, s *EnrollmentService, capacity int) *domain.Activity {
	t.Helper()
	a, err := s.Create(context.Background(), CreateInput{
		Title:     "Liderazgo y trabajo en equipo",
		StartDate: "2026-11-03",
		EndDate:   "2026-11-05",
		Capacity:  capacity,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func TestCreate(t *testing.T) {
	s := newTestService(t)
	a := mustCreate(t, s, 10)
	if !a.Active || len(a.Enrolled) != 0 || a.Capacity != 10 {
		t.Errorf("activity = %+v", a)
	}
	if a.Modality != domain.ModalityVirtual {
		t.Errorf("modality = %q, want virtual", a.Modality)
	}
	seats, err := s.AvailableSeats(context.Background(), a.ID)
	if err != nil || seats != 10 {
		t.Errorf("AvailableSeats = %d, %v; want 10", seats, err)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newTestService(t)
	valid := CreateInput{Title: "Excel", StartDate: "2026-11-03", Capacity: 5}
	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"zero capacity", func(in *CreateInput) { in.Capacity = 0 }},
		{"negative capacity", func(in *CreateInput) { in.Capacity = -3 }},
		{"missing title", func(in *CreateInput) { in.Title = "  " }},
		{"missing start", func(in *CreateInput) { in.StartDate = "" }},
		{"bad start", func(in *CreateInput) { in.StartDate = "03/11/2026" }},
		{"end before start", func(in *CreateInput) { in.EndDate = "2026-11-01" }},
		{"unknown modality", func(in *CreateInput) { in.Modality = "onsite" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := s.Create(context.Background(), in); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestEnroll_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	a := mustCreate(t, s, 2)

	if err := s.Enroll(ctx, a.ID, "A"); err != nil {
		t.Fatalf("Enroll A: %v", err)
	}
	if err := s.Enroll(ctx, a.ID, "B"); err != nil {
		t.Fatalf("Enroll B: %v", err)
	}
	if seats, _ := s.AvailableSeats(ctx, a.ID); seats != 0 {
		t.Errorf("seats = %d, want 0", seats)
	}
	if err := s.Enroll(ctx, a.ID, "C"); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Enroll C err = %v, want ErrCapacityExceeded", err)
	}
	// Already enrolled is reported even when the activity is full.
	if err := s.Enroll(ctx, a.ID, "A"); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Errorf("Enroll A again err = %v, want ErrAlreadyEnrolled", err)
	}
	got, _ := s.Get(ctx, a.ID)
	if len(got.Enrolled) != 2 {
		t.Errorf("enrolled = %v, want 2 ids", got.Enrolled)
	}
}

func TestEnroll_DoubleEnrollKeepsSize(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	a := mustCreate(t, s, 5)
	if err := s.Enroll(ctx, a.ID, "A"); err != nil {
		t.Fatalf("first Enroll: %v", err)
	}
	if err := s.Enroll(ctx, a.ID, "A"); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("second Enroll err = %v, want ErrAlreadyEnrolled", err)
	}
	got, _ := s.Get(ctx, a.ID)
	if len(got.Enrolled) != 1 {
		t.Errorf("len(enrolled) = %d, want 1", len(got.Enrolled))
	}
}

func TestEnroll_ErrorOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if err := s.Enroll(ctx, "missing", "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing activity err = %v, want ErrNotFound", err)
	}

	a := mustCreate(t, s, 1)
	if err := s.Enroll(ctx, a.ID, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetActive(ctx, a.ID, false); err != nil {
		t.Fatal(err)
	}
	// Inactive wins over already enrolled and capacity.
	if err := s.Enroll(ctx, a.ID, "A"); !errors.Is(err, ErrInactive) {
		t.Errorf("inactive err = %v, want ErrInactive", err)
	}
	if err := s.Enroll(ctx, a.ID, "B"); !errors.Is(err, ErrInactive) {
		t.Errorf("inactive err = %v, want ErrInactive", err)
	}
	if err := s.Enroll(ctx, a.ID, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty account err = %v, want ErrValidation", err)
	}
}

func TestEnroll_LastSeatRace(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	for round := 0; round < 20; round++ {
		a := mustCreate(t, s, 1)
		var ok, full atomic.Int32
		var wg sync.WaitGroup
		for _, acc := range []string{"A", "B"} {
			wg.Add(1)
			go func(acc string) {
				defer wg.Done()
				switch err := s.Enroll(ctx, a.ID, acc); {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, ErrCapacityExceeded):
					full.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(acc)
		}
		wg.Wait()
		if ok.Load() != 1 || full.Load() != 1 {
			t.Fatalf("round %d: ok = %d, capacity exceeded = %d; want 1, 1", round, ok.Load(), full.Load())
		}
	}
}

// runEnrollStorm fires enrollments from a pool of accounts, with repeats, at several
// activities at once and checks the allocation invariants afterwards.
func runEnrollStorm(t *testing.T, s *EnrollmentService, workers int) {
	t.Helper()
	ctx := context.Background()
	capacities := []int{1, 3, 7}
	acts := make([]*domain.Activity, len(capacities))
	for i, c := range capacities {
		acts[i] = mustCreate(t, s, c)
	}
	var accepted [3]atomic.Int32

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(w), 42))
			for i := 0; i < 8; i++ {
				idx := r.IntN(len(acts))
				acc := fmt.Sprintf("acc-%d", r.IntN(workers))
				err := s.Enroll(ctx, acts[idx].ID, acc)
				switch {
				case err == nil:
					accepted[idx].Add(1)
				case errors.Is(err, ErrAlreadyEnrolled), errors.Is(err, ErrCapacityExceeded):
				default:
					return fmt.Errorf("enroll %s into %d: %w", acc, idx, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for i, a := range acts {
		got, err := s.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got.Enrolled) > got.Capacity {
			t.Errorf("activity %d: %d enrolled over capacity %d", i, len(got.Enrolled), got.Capacity)
		}
		if int(accepted[i].Load()) != len(got.Enrolled) {
			t.Errorf("activity %d: %d accepted, %d stored", i, accepted[i].Load(), len(got.Enrolled))
		}
		seen := make(map[string]bool)
		for _, id := range got.Enrolled {
			if seen[id] {
				t.Errorf("activity %d: %s enrolled twice", i, id)
			}
			seen[id] = true
		}
	}
}

func TestEnroll_StormMemory(t *testing.T) {
	runEnrollStorm(t, newTestService(t), 40)
}

func TestEnroll_StormSQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("sqlite storm skipped in short mode")
	}
	runEnrollStorm(t, newSQLiteService(t), 12)
}

func TestResize(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	a := mustCreate(t, s, 2)
	got, err := s.Resize(ctx, a.ID, 4)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got.Capacity != 4 {
		t.Errorf("capacity = %d, want 4", got.Capacity)
	}
	if _, err := s.Resize(ctx, a.ID, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("zero capacity err = %v, want ErrValidation", err)
	}
	if err := s.Enroll(ctx, a.ID, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resize(ctx, a.ID, 10); !errors.Is(err, ErrCapacityLocked) {
		t.Errorf("err = %v, want ErrCapacityLocked", err)
	}
	if _, err := s.Resize(ctx, "missing", 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	a := mustCreate(t, s, 2)
	if err := s.Enroll(ctx, a.ID, "A"); err != nil {
		t.Fatal(err)
	}
	got, err := s.SetActive(ctx, a.ID, false)
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if got.Active || len(got.Enrolled) != 1 {
		t.Errorf("after deactivate = %+v", got)
	}
	if _, err := s.SetActive(ctx, a.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Enroll(ctx, a.ID, "B"); err != nil {
		t.Errorf("Enroll after reactivate: %v", err)
	}
	if _, err := s.SetActive(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	open := mustCreate(t, s, 3)
	closed := mustCreate(t, s, 3)
	if err := s.Enroll(ctx, closed.ID, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetActive(ctx, closed.ID, false); err != nil {
		t.Fatal(err)
	}

	all, _ := s.List(ctx, ListFilter{})
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
	active, _ := s.List(ctx, ListFilter{ActiveOnly: true})
	if len(active) != 1 || active[0].ID != open.ID {
		t.Errorf("active = %v", active)
	}
	mine, _ := s.List(ctx, ListFilter{EnrolledAccountID: "A"})
	if len(mine) != 1 || mine[0].ID != closed.ID {
		t.Errorf("mine = %v", mine)
	}
}

// failingStore fails every Update with a storage error.
type failingStore struct {
	kv.Store
}

func (failingStore) Update(context.Context, string, string, kv.UpdateFunc) error {
	return errors.New("connection reset")
}

func TestEnroll_StorageFaultIsNotDomainError(t *testing.T) {
	s := NewEnrollmentService(repository.NewKVRepository(failingStore{Store: memory.New()}))
	err := s.Enroll(context.Background(), "t1", "A")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, sentinel := range []error{ErrNotFound, ErrInactive, ErrAlreadyEnrolled, ErrCapacityExceeded, ErrValidation} {
		if errors.Is(err, sentinel) {
			t.Errorf("storage fault matched %v", sentinel)
		}
	}
}

func TestUpdate_AppliesAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	a := mustCreate(t, s, 2)
	inactive, bigger, same := false, 6, 2

	got, err := s.Update(ctx, a.ID, Update{Active: &inactive, Capacity: &bigger})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Active || got.Capacity != 6 {
		t.Errorf("after update = %+v", got)
	}

	b := mustCreate(t, s, 2)
	if err := s.Enroll(ctx, b.ID, "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, b.ID, Update{Active: &inactive, Capacity: &bigger}); !errors.Is(err, ErrCapacityLocked) {
		t.Fatalf("err = %v, want ErrCapacityLocked", err)
	}
	stored, _ := s.Get(ctx, b.ID)
	if !stored.Active || stored.Capacity != 2 {
		t.Errorf("refused update changed the activity: %+v", stored)
	}
	got, err = s.Update(ctx, b.ID, Update{Active: &inactive, Capacity: &same})
	if err != nil {
		t.Fatalf("Update with unchanged capacity: %v", err)
	}
	if got.Active {
		t.Error("active = true, want false")
	}

	if _, err := s.Update(ctx, b.ID, Update{}); !errors.Is(err, ErrValidation) {
		t.Errorf("empty update err = %v, want ErrValidation", err)
	}
}

type auditRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *auditRecorder) LogEvent(_ context.Context, _, action, resource, resourceID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action+" "+resource+" "+resourceID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	rec := &auditRecorder{}
	s := newTestService(t, WithAudit(rec))
	a := mustCreate(t, s, 2)
	if err := s.Enroll(ctx, a.ID, "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete err = %v, want ErrNotFound", err)
	}
	if err := s.Enroll(ctx, a.ID, "B"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Enroll after Delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := "delete activity " + a.ID
	if n := len(rec.actions); n == 0 || rec.actions[n-1] != want {
		t.Errorf("audit = %v, want last %q", rec.actions, want)
	}
}
