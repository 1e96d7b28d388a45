//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"medscan-registration/internal/domain"
	"medscan-registration/internal/domain/ports/repository"
)

// memRedis is an in-memory stand-in for the redis client. Missing keys
// return the real redis.Nil sentinel so IsNil behaves as in production.
type memRedis struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	counts map[string]int64
}

func newMemRedis() *memRedis {
	return &memRedis{
		data:   make(map[string]string),
		ttls:   make(map[string]time.Duration),
		counts: make(map[string]int64),
	}
}

func (m *memRedis) Ping(context.Context) error { return nil }

func (m *memRedis) Close() error { return nil }

func (m *memRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		return errors.New("unsupported value type")
	}
	m.ttls[key] = expiration
	return nil
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memRedis) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memRedis) Expire(_ context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = expiration
	return nil
}

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		delete(m.counts, k)
		delete(m.ttls, k)
	}
	return nil
}

func (m *memRedis) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

var _ RedisClient = (*memRedis)(nil)

func TestResultCacheRepo(t *testing.T) {
	ctx := context.Background()
	entry := &repository.CachedScan{
		JobID:       "job-1",
		UserID:      "user-1",
		CompletedAt: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}

	t.Run("round trips an entry", func(t *testing.T) {
		client := newMemRedis()
		repo := NewResultCacheRepo(client, time.Hour)

		if err := repo.Put(ctx, "user-1", entry); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		got, err := repo.Get(ctx, "user-1")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got.JobID != entry.JobID || got.UserID != entry.UserID || !got.CompletedAt.Equal(entry.CompletedAt) {
			t.Errorf("round trip mismatch: %+v", got)
		}
	})

	t.Run("sets the backstop TTL", func(t *testing.T) {
		client := newMemRedis()
		repo := NewResultCacheRepo(client, 2*time.Hour)

		if err := repo.Put(ctx, "user-1", entry); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got := client.ttl("scan_result:user-1"); got != 2*time.Hour {
			t.Errorf("expected a 2h TTL, got %v", got)
		}
	})

	t.Run("maps a missing key to ErrNotFound", func(t *testing.T) {
		repo := NewResultCacheRepo(newMemRedis(), time.Hour)

		if _, err := repo.Get(ctx, "user-unknown"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("clear removes the entry", func(t *testing.T) {
		client := newMemRedis()
		repo := NewResultCacheRepo(client, time.Hour)

		if err := repo.Put(ctx, "user-1", entry); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if err := repo.Clear(ctx, "user-1"); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if _, err := repo.Get(ctx, "user-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound after clear, got %v", err)
		}
	})

	t.Run("entries are isolated per user", func(t *testing.T) {
		client := newMemRedis()
		repo := NewResultCacheRepo(client, time.Hour)

		if err := repo.Put(ctx, "user-1", entry); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if _, err := repo.Get(ctx, "user-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for another user, got %v", err)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows within the limit and blocks beyond it", func(t *testing.T) {
		limiter := NewRateLimiter(newMemRedis())
		key := AnalysisKey("user-1")

		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, key, 3, time.Hour)
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if !ok {
				t.Fatalf("request %d should be allowed", i+1)
			}
		}
		ok, err := limiter.Allow(ctx, key, 3, time.Hour)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if ok {
			t.Error("fourth request should be blocked")
		}
	})

	t.Run("limits are scoped per key", func(t *testing.T) {
		limiter := NewRateLimiter(newMemRedis())

		if ok, _ := limiter.Allow(ctx, AnalysisKey("user-1"), 1, time.Hour); !ok {
			t.Fatal("first request for user-1 should be allowed")
		}
		if ok, _ := limiter.Allow(ctx, AnalysisKey("user-2"), 1, time.Hour); !ok {
			t.Error("user-2 must have an independent budget")
		}
	})
}
