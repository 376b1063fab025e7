// Package kvtest holds the behaviour every kv.Store backend must share.
package kvtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"alumni-tracker/internal/kv"
)

// Run exercises store against the kv.Store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newStore(t)) })
	t.Run("CreateConflict", func(t *testing.T) { testCreateConflict(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("UpdateAbort", func(t *testing.T) { testUpdateAbort(t, newStore(t)) })
	t.Run("DeleteAndList", func(t *testing.T) { testDeleteAndList(t, newStore(t)) })
	t.Run("CollectionsIsolated", func(t *testing.T) { testCollectionsIsolated(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("ConcurrentUpdate", func(t *testing.T) { testConcurrentUpdate(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s kv.Store) {
	_, err := s.Get(context.Background(), "things", "nope")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func testPutGet(t *testing.T, s kv.Store) {
	ctx := context.Background()
	if err := s.Put(ctx, "things", "a", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "things", "a", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v := decode(t, got); v != 2 {
		t.Errorf("v = %d, want 2", v)
	}
}

func testCreateConflict(t *testing.T, s kv.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "things", "a", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, "things", "a", []byte(`{"v":2}`))
	if !errors.Is(err, kv.ErrConflict) {
		t.Fatalf("second Create: err = %v, want ErrConflict", err)
	}
	got, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v := decode(t, got); v != 1 {
		t.Errorf("v = %d, want 1 (first write kept)", v)
	}
}

func testUpdateMissing(t *testing.T, s kv.Store) {
	called := false
	err := s.Update(context.Background(), "things", "missing", func(cur []byte) ([]byte, error) {
		called = true
		return cur, nil
	})
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Update missing: err = %v, want ErrNotFound", err)
	}
	if called {
		t.Error("fn must not run for a missing key")
	}
}

func testUpdateAbort(t *testing.T, s kv.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "things", "a", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	errStop := errors.New("stop")
	err := s.Update(ctx, "things", "a", func([]byte) ([]byte, error) {
		return []byte(`{"v":99}`), errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("Update: err = %v, want fn error", err)
	}
	got, _ := s.Get(ctx, "things", "a")
	if v := decode(t, got); v != 1 {
		t.Errorf("v = %d after aborted update, want 1", v)
	}
}

func testDeleteAndList(t *testing.T, s kv.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("id-%d", i)
		if err := s.Create(ctx, "things", id, []byte(fmt.Sprintf(`{"v":%d}`, i))); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if err := s.Delete(ctx, "things", "id-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "things", "id-1"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
	records, err := s.List(ctx, "things")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []int
	for _, r := range records {
		got = append(got, decode(t, r))
	}
	sort.Ints(got)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("List = %v, want [0 2]", got)
	}
	if err := s.Create(ctx, "things", "id-1", []byte(`{"v":7}`)); err != nil {
		t.Errorf("Create after Delete: %v", err)
	}
}

func testCollectionsIsolated(t *testing.T, s kv.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "left", "same", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Create left: %v", err)
	}
	if err := s.Create(ctx, "right", "same", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Create right with same id: %v", err)
	}
	records, err := s.List(ctx, "empty")
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List empty = %d records, want 0", len(records))
	}
}

func testConcurrentCreate(t *testing.T, s kv.Store) {
	ctx := context.Background()
	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Create(ctx, "claims", "contested", []byte(fmt.Sprintf(`{"v":%d}`, i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, kv.ErrConflict):
				conflicts++
			default:
				t.Errorf("Create: unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 || conflicts != n-1 {
		t.Errorf("wins = %d conflicts = %d, want 1 and %d", wins, conflicts, n-1)
	}
}

func testConcurrentUpdate(t *testing.T, s kv.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "counters", "c", []byte(`{"v":0}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "counters", "c", func(cur []byte) ([]byte, error) {
				var rec struct{ V int }
				if err := json.Unmarshal(cur, &rec); err != nil {
					return nil, err
				}
				return json.Marshal(map[string]int{"v": rec.V + 1})
			})
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()
	got, err := s.Get(ctx, "counters", "c")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v := decode(t, got); v != n {
		t.Errorf("counter = %d, want %d (lost update)", v, n)
	}
}

func decode(t *testing.T, data []byte) int {
	t.Helper()
	var rec struct{ V int }
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return rec.V
}
