package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AllowsUpToLimitThenRejects(t *testing.T) {
	store := NewMemoryStore(DefaultConfig())
	defer store.Stop()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok, err := store.Allow(ctx, "send-otp:198.51.100.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i)
	}

	ok, err := store.Allow(ctx, "send-otp:198.51.100.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// fakeClock はMemoryStoreに注入するテスト用の時計。
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedMemoryStore(t *testing.T, cfg Config) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	store := NewMemoryStore(cfg)
	store.now = clock.now
	t.Cleanup(store.Stop)
	return store, clock
}

func TestMemoryStore_FixedWindow_SpacedRequests(t *testing.T) {
	store, clock := newClockedMemoryStore(t, DefaultConfig())
	ctx := context.Background()

	// 0s, 11s, 22s, 33s, 44s の5回。補充型のリミッターならこの間に枠が戻ってしまう
	for i := 1; i <= 5; i++ {
		if i > 1 {
			clock.advance(11 * time.Second)
		}
		ok, err := store.Allow(ctx, "send-otp:198.51.100.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i)
	}

	clock.advance(11 * time.Second) // 55s
	ok, err := store.Allow(ctx, "send-otp:198.51.100.1")
	require.NoError(t, err)
	assert.False(t, ok, "6th request within 60s of the first must be rejected")

	clock.advance(5 * time.Second) // 60s
	ok, err = store.Allow(ctx, "send-otp:198.51.100.1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts 60s after the first request")
}

func TestMemoryStore_FixedWindow_ResetsAtBoundary(t *testing.T) {
	store, clock := newClockedMemoryStore(t, Config{Limit: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := store.Allow(ctx, "k")
		assert.True(t, ok)
	}
	ok, _ := store.Allow(ctx, "k")
	assert.False(t, ok)

	clock.advance(59 * time.Second)
	ok, _ = store.Allow(ctx, "k")
	assert.False(t, ok, "no refill before the window ends")

	clock.advance(time.Second)
	for i := 0; i < 2; i++ {
		ok, _ = store.Allow(ctx, "k")
		assert.True(t, ok, "new window request %d", i+1)
	}
	ok, _ = store.Allow(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	store := NewMemoryStore(Config{Limit: 1, Window: time.Minute})
	defer store.Stop()
	ctx := context.Background()

	ok, _ := store.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = store.Allow(ctx, "b")
	assert.True(t, ok)
	ok, _ = store.Allow(ctx, "a")
	assert.False(t, ok)

	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_CleanupRemovesStaleEntries(t *testing.T) {
	store := NewMemoryStore(Config{Limit: 1, Window: time.Minute})
	defer store.Stop()

	_, _ = store.Allow(context.Background(), "stale")
	require.Equal(t, 1, store.Len())

	store.cleanup(time.Now().Add(3 * time.Minute))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_CleanupKeepsRecentEntries(t *testing.T) {
	store := NewMemoryStore(Config{Limit: 1, Window: time.Minute})
	defer store.Stop()

	_, _ = store.Allow(context.Background(), "fresh")
	store.cleanup(time.Now().Add(30 * time.Second))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_StopIsIdempotent(t *testing.T) {
	store := NewMemoryStore(DefaultConfig())
	store.Stop()
	store.Stop()
}
