package repository

import (
	"context"
	"time"
)

// CachedScan records the last completed extraction for one user so the
// result can be recovered after a page reload without re-scanning.
type CachedScan struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// ResultCacheRepository stores at most one CachedScan per user. Freshness
// (the 24-hour recovery window) is enforced by the caller, not the store.
type ResultCacheRepository interface {
	Put(ctx context.Context, userID string, entry *CachedScan) error
	// Get returns domain.ErrNotFound when no entry exists.
	Get(ctx context.Context, userID string) (*CachedScan, error)
	Clear(ctx context.Context, userID string) error
}
