// Package redis implements kv.Store on Redis.
//
// Each record lives under "<prefix><collection>:<id>" and its id is indexed in the
// set "<prefix><collection>:_ids". Create relies on SETNX; Update is an optimistic
// WATCH/MULTI compare-and-swap retried on redis.TxFailedErr.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"alumni-tracker/internal/kv"
)

const (
	defaultPrefix     = "alumni:"
	defaultMaxRetries = 100
	retryBackoff      = 2 * time.Millisecond
)

// ErrTooManyConflicts is returned when Update loses the WATCH race maxRetries times in a row.
var ErrTooManyConflicts = errors.New("kv/redis: too many concurrent update conflicts")

// Store is a Redis-backed kv.Store.
type Store struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key namespace ("alumni:" by default).
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithMaxRetries bounds the number of optimistic retries per Update.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New wraps an existing client. The client lifecycle is owned by the Store; Close closes it.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:     client,
		prefix:     defaultPrefix,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	if url == "" {
		return nil, errors.New("kv/redis: REDIS_URL is empty")
	}
	clientOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(clientOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, opts...), nil
}

func (s *Store) recordKey(collection, id string) string {
	return s.prefix + collection + ":" + id
}

func (s *Store) indexKey(collection string) string {
	return s.prefix + collection + ":_ids"
}

// Get returns the record for id or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.recordKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put writes the record unconditionally.
func (s *Store) Put(ctx context.Context, collection, id string, record []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(collection, id), record, 0)
		pipe.SAdd(ctx, s.indexKey(collection), id)
		return nil
	})
	return err
}

// Create writes the record only if the key is absent.
func (s *Store) Create(ctx context.Context, collection, id string, record []byte) error {
	ok, err := s.client.SetNX(ctx, s.recordKey(collection, id), record, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return kv.ErrConflict
	}
	return s.client.SAdd(ctx, s.indexKey(collection), id).Err()
}

// Update runs fn inside a WATCH on the record key and commits with MULTI/EXEC.
// A concurrent write to the same key aborts EXEC and the whole read-modify-write is retried.
func (s *Store) Update(ctx context.Context, collection, id string, fn kv.UpdateFunc) error {
	key := s.recordKey(collection, id)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return kv.ErrNotFound
		}
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt%8+1)):
		}
	}
	return ErrTooManyConflicts
}

// Delete removes the record and its index entry.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(collection, id))
		pipe.SRem(ctx, s.indexKey(collection), id)
		return nil
	})
	return err
}

// List returns all records indexed for the collection. Index entries whose record
// has vanished are skipped.
func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
