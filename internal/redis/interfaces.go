package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// PlatformCacheInterface defines the interface for the platform authorization cache.
type PlatformCacheInterface interface {
	GetPlatform(ctx context.Context, accessKeyID, secret string) (*CachedPlatform, error)
	SetPlatform(ctx context.Context, accessKeyID, secret string, platform *CachedPlatform) error
	InvalidatePlatform(ctx context.Context, accessKeyID, secret string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface     = (*LockStore)(nil)
	_ PlatformCacheInterface = (*CacheStore)(nil)
)
