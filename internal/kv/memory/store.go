// Package memory provides an in-process kv.Store for tests and single-instance deployments.
package memory

import (
	"context"
	"sync"

	"alumni-tracker/internal/kv"
)

// Store keeps records in memory. Each key has its own mutex so that Create and
// Update on one key never block work on another key; mu only guards the maps.
// A key's mutex lives only while some caller holds or waits for it.
type Store struct {
	mu    sync.RWMutex
	data  map[string]map[string][]byte
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int // holders plus waiters; guarded by Store.mu
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:  make(map[string]map[string][]byte),
		locks: make(map[string]*keyLock),
	}
}

// lock acquires the mutex for one key and returns its release func.
func (s *Store) lock(collection, id string) func() {
	key := collection + "/" + id
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *Store) read(collection, id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[collection][id]
	return rec, ok
}

func (s *Store) write(collection, id string, record []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[collection]
	if !ok {
		c = make(map[string][]byte)
		s.data[collection] = c
	}
	c[id] = clone(record)
}

// Get returns a copy of the record for id.
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.read(collection, id)
	if !ok {
		return nil, kv.ErrNotFound
	}
	return clone(rec), nil
}

// Put writes the record for id.
func (s *Store) Put(ctx context.Context, collection, id string, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock(collection, id)()
	s.write(collection, id, record)
	return nil
}

// Create writes the record only when id is absent.
func (s *Store) Create(ctx context.Context, collection, id string, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock(collection, id)()
	if _, ok := s.read(collection, id); ok {
		return kv.ErrConflict
	}
	s.write(collection, id, record)
	return nil
}

// Update runs fn while holding the key's mutex.
func (s *Store) Update(ctx context.Context, collection, id string, fn kv.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock(collection, id)()
	current, ok := s.read(collection, id)
	if !ok {
		return kv.ErrNotFound
	}
	next, err := fn(clone(current))
	if err != nil {
		return err
	}
	s.write(collection, id, next)
	return nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock(collection, id)()
	s.mu.Lock()
	delete(s.data[collection], id)
	s.mu.Unlock()
	return nil
}

// List returns copies of all records in collection.
func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, 0, len(s.data[collection]))
	for _, rec := range s.data[collection] {
		out = append(out, clone(rec))
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
