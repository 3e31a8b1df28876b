package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore { return &memoryStore{values: map[string]string{}} }

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) DelIfEquals(_ context.Context, key string, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	a, err := NewRedisLock(store, "sp:lock:cron", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "sp:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b must not release a's lock
	require.NoError(t, b.Release(ctx))
	assert.Contains(t, store.values, "sp:lock:cron")

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseWithoutHolder(t *testing.T) {
	lock, err := NewRedisLock(newMemoryStore(), "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
	assert.NoError(t, lock.Release(context.Background()))
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Second)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", time.Second)
	assert.Error(t, err)
}
