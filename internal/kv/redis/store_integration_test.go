//go:build integration

package redis_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"alumni-tracker/internal/kv"
	"alumni-tracker/internal/kv/kvtest"
	kvredis "alumni-tracker/internal/kv/redis"
	"alumni-tracker/internal/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *kvredis.Store
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = kvredis.New(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestContract() {
	kvtest.Run(s.T(), func(t *testing.T) kv.Store {
		if err := s.redis.FlushAll(context.Background()); err != nil {
			t.Fatalf("flush: %v", err)
		}
		return s.store
	})
}

func (s *RedisStoreSuite) TestOpen() {
	ctx := context.Background()
	store, err := kvredis.Open(ctx, s.redis.URL, kvredis.WithPrefix("other:"))
	s.Require().NoError(err)
	defer store.Close()
	s.Require().NoError(store.Put(ctx, "things", "a", []byte(`{"v":1}`)))

	// Different prefixes must not see each other's keys.
	_, err = s.store.Get(ctx, "things", "a")
	s.ErrorIs(err, kv.ErrNotFound)
}

func (s *RedisStoreSuite) TestOpen_BadURL() {
	_, err := kvredis.Open(context.Background(), "not-a-url")
	s.Error(err)
}

// TestUpdateUnderContention drives many WATCH conflicts on one key; the CAS loop must
// absorb them without losing an increment.
func (s *RedisStoreSuite) TestUpdateUnderContention() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, "counters", "hot", []byte("0")))

	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Update(ctx, "counters", "hot", func(cur []byte) ([]byte, error) {
				n, err := strconv.Atoi(string(cur))
				if err != nil {
					return nil, err
				}
				return []byte(strconv.Itoa(n + 1)), nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.Get(ctx, "counters", "hot")
	s.Require().NoError(err)
	s.Equal(strconv.Itoa(goroutines), string(got))
}
