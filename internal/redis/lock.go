package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

// releaseScript deletes the lock only while it still carries the caller's
// token, so an expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client redis.UniversalClient
}

// NewLockStore creates a new LockStore.
func NewLockStore(client redis.UniversalClient) *LockStore {
	return &LockStore{client: client}
}

// AcquireLock attempts to take the lock on key for ttl.
// Returns the holder token if the lock was acquired, or "" if already held.
func (s *LockStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	return token, nil
}

// ReleaseLock releases the lock on key if it is still held with token.
func (s *LockStore) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.client, []string{lockPrefix + key}, token).Err()
}

// Locker exposes a LockStore through the acquire/release-func shape the
// ride service expects.
type Locker struct {
	store *LockStore
}

// NewLocker creates a new Locker.
func NewLocker(store *LockStore) *Locker {
	return &Locker{store: store}
}

// Acquire takes the lock on key. The returned release func is safe to call
// after ctx has been cancelled.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token, err := l.store.AcquireLock(ctx, key, ttl)
	if err != nil {
		return nil, false, err
	}
	if token == "" {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = l.store.ReleaseLock(releaseCtx, key, token)
	}

	return release, true, nil
}
