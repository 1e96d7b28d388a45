package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medscan-registration/internal/domain"
	"medscan-registration/internal/domain/ports/repository"
)

// Ensure the adapter implements the port interface.
var _ repository.ResultCacheRepository = (*ResultCacheRepo)(nil)

// ResultCacheRepo remembers the last completed scan job per user so a
// reload shortly after extraction can recover the result without another
// scan. The store TTL is a backstop; the 24-hour recovery window itself is
// enforced by the pipeline.
type ResultCacheRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewResultCacheRepo(client RedisClient, ttl time.Duration) repository.ResultCacheRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultCacheRepo{client: client, ttl: ttl}
}

func (r *ResultCacheRepo) cacheKey(userID string) string {
	return fmt.Sprintf("scan_result:%s", userID)
}

func (r *ResultCacheRepo) Put(ctx context.Context, userID string, entry *repository.CachedScan) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.cacheKey(userID), data, r.ttl)
}

func (r *ResultCacheRepo) Get(ctx context.Context, userID string) (*repository.CachedScan, error) {
	data, err := r.client.Get(ctx, r.cacheKey(userID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var entry repository.CachedScan
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ResultCacheRepo) Clear(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.cacheKey(userID))
}
