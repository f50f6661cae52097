package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func newTestCache(store Store) *ResolutionCache {
	return New(store, config.RedisConfig{CacheTTL: time.Minute}, metrics.New(prometheus.NewRegistry()))
}

var matched = resolver.Resolution{
	Matched:   true,
	MatchedBy: tokenizer.FieldBigrams,
	IDs:       []string{"q1", "q2"},
	Attempted: []tokenizer.Field{tokenizer.FieldTokens, tokenizer.FieldBigrams},
}

func TestBuildKey_NormalizesQuery(t *testing.T) {
	assert.Equal(t, buildKey("수학  문제!"), buildKey(" 수학 문제 "))
	assert.Equal(t, buildKey("Vector"), buildKey("vector"))
	assert.NotEqual(t, buildKey("vector"), buildKey("vectors"))
	assert.True(t, strings.HasPrefix(buildKey("x"), keyPrefix))
	assert.Len(t, buildKey("x"), len(keyPrefix)+32)
}

func TestGetOrCompute_CachesResolution(t *testing.T) {
	store := newMemoryStore()
	c := newTestCache(store)
	calls := 0
	compute := func(ctx context.Context) (resolver.Resolution, error) {
		calls++
		return matched, nil
	}

	res, hit, err := c.GetOrCompute(context.Background(), "수학", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, matched, res)

	res, hit, err = c.GetOrCompute(context.Background(), " 수학!", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, matched, res)
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Minute, store.ttls[buildKey("수학")])

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrCompute_CachesNoMatch(t *testing.T) {
	c := newTestCache(newMemoryStore())
	none := resolver.Resolution{IDs: []string{}, Attempted: []tokenizer.Field{tokenizer.FieldTokens}}
	_, _, err := c.GetOrCompute(context.Background(), "없는말", func(context.Context) (resolver.Resolution, error) {
		return none, nil
	})
	require.NoError(t, err)

	res, ok := c.Get(context.Background(), "없는말")
	require.True(t, ok)
	assert.False(t, res.Matched)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	store := newMemoryStore()
	c := newTestCache(store)
	boom := errors.New("lookup failed")

	_, _, err := c.GetOrCompute(context.Background(), "수학", func(context.Context) (resolver.Resolution, error) {
		return resolver.Resolution{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestGet_StoreErrorDegradesToMiss(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("connection refused")
	c := newTestCache(store)

	res, hit, err := c.GetOrCompute(context.Background(), "수학", func(context.Context) (resolver.Resolution, error) {
		return matched, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, matched, res)
}

func TestGetOrCompute_CollapsesConcurrentMisses(t *testing.T) {
	c := newTestCache(newMemoryStore())
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (resolver.Resolution, error) {
		calls.Add(1)
		<-release
		return matched, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "확률", compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestInvalidate(t *testing.T) {
	store := newMemoryStore()
	store.data["other:key"] = []byte("keep")
	c := newTestCache(store)
	c.Set(context.Background(), "수학", matched)
	c.Set(context.Background(), "국어", matched)

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Len(t, store.data, 1)
	_, ok := c.Get(context.Background(), "수학")
	assert.False(t, ok)
}
