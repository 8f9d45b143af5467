package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockHeld         = errors.New("lock_held")
	ErrLockNotOwned     = errors.New("lock_not_owned")
	ErrLockUnconfigured = errors.New("lock_unconfigured")
	ErrInvalidLock      = errors.New("invalid_lock")
)

// Both scripts act only when the caller still owns the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

// Locker hands out Redis-backed leases so only one replica runs a
// background job such as the orphan reaper at a time.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// Lease is a held lock. It expires on its own after the TTL.
type Lease struct {
	Key   string
	Token string

	client *redis.Client
}

// Acquire returns ErrLockHeld when another owner has the key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockUnconfigured
	}
	if key == "" || ttl <= 0 {
		return nil, ErrInvalidLock
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{Key: key, Token: token, client: l.client}, nil
}

// Extend pushes the expiry out to ttl from now.
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	if l == nil || l.client == nil {
		return ErrLockNotOwned
	}
	if ttl <= 0 {
		return ErrInvalidLock
	}
	n, err := extendScript.Run(ctx, l.client, []string{l.Key}, l.Token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Release is a no-op when the lease already expired or changed hands.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.Key}, l.Token).Err()
}
