package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PlatformCacheTTL bounds how long a revoked access key keeps working.
const PlatformCacheTTL = 60 * time.Second

const platformCachePrefix = "cache:platform:"

// CachedPlatform is the result of a successful access key authorization.
type CachedPlatform struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client redis.UniversalClient) *CacheStore {
	return &CacheStore{client: client, ttl: PlatformCacheTTL}
}

// platformKey never stores the secret itself.
func platformKey(accessKeyID, secret string) string {
	sum := sha256.Sum256([]byte(accessKeyID + ":" + secret))
	return platformCachePrefix + hex.EncodeToString(sum[:])
}

// GetPlatform retrieves an authorized platform from cache.
// Returns nil without error on a cache miss.
func (s *CacheStore) GetPlatform(ctx context.Context, accessKeyID, secret string) (*CachedPlatform, error) {
	data, err := s.client.Get(ctx, platformKey(accessKeyID, secret)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var platform CachedPlatform
	if err := json.Unmarshal(data, &platform); err != nil {
		return nil, err
	}
	return &platform, nil
}

// SetPlatform stores an authorized platform in cache.
func (s *CacheStore) SetPlatform(ctx context.Context, accessKeyID, secret string, platform *CachedPlatform) error {
	data, err := json.Marshal(platform)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, platformKey(accessKeyID, secret), data, s.ttl).Err()
}

// InvalidatePlatform removes an access key from cache.
func (s *CacheStore) InvalidatePlatform(ctx context.Context, accessKeyID, secret string) error {
	return s.client.Del(ctx, platformKey(accessKeyID, secret)).Err()
}
