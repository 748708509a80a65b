package keystore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	return store, clock
}

func TestMemoryStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte("v1")
	require.NoError(t, store.Put(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, "k"))
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	require.NoError(t, store.Put(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, store.Put(ctx, "forever", []byte("b"), 0))

	clock.Advance(59 * time.Second)
	_, err := store.Get(ctx, "short")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	clock.Advance(24 * time.Hour)
	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryStoreExpireResetsLifetime(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	require.NoError(t, store.Put(ctx, "k", []byte("a"), time.Minute))
	clock.Advance(50 * time.Second)
	require.NoError(t, store.Expire(ctx, "k", time.Minute))

	clock.Advance(50 * time.Second)
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, store.Expire(ctx, "k", 0))
	clock.Advance(time.Hour)
	_, err = store.Get(ctx, "k")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Expire(ctx, "missing", time.Minute), ErrNotFound)
}

func TestMemoryStoreTakeIsOneShot(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	require.NoError(t, store.Put(ctx, "k", []byte("once"), time.Minute))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "k"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	require.NoError(t, store.Put(ctx, "a", nil, time.Second))
	require.NoError(t, store.Put(ctx, "b", nil, time.Hour))
	require.NoError(t, store.Put(ctx, "c", nil, 0))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 2, store.Len())
}
