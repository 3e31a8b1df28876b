package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// A cycle that outlives its lock may overlap the next replica; keep the TTL
// well above the expected job duration.
const defaultLockTTL = 5 * time.Minute

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key string, value string) (bool, error)
}

// RedisLock implements Lock with SETNX plus TTL. Each process owns a stable
// token so a release never drops a lock another replica took over after
// expiry.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	token  string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl, token: uuid.NewString()}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the lock only while this process still holds it.
func (l *RedisLock) Release(ctx context.Context) error {
	if _, err := l.client.DelIfEquals(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
