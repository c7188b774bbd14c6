package ratelimit

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, cfg Config) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, cfg), mr
}

func TestRedisStore_AllowsUpToLimitThenRejects(t *testing.T) {
	store, _ := newTestRedisStore(t, DefaultConfig())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok, err := store.Allow(ctx, "send-otp:203.0.113.7")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i)
	}

	ok, err := store.Allow(ctx, "send-otp:203.0.113.7")
	require.NoError(t, err)
	assert.False(t, ok, "6th request within the window should be rejected")
}

func TestRedisStore_KeysAreIndependent(t *testing.T) {
	store, _ := newTestRedisStore(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	ok, err := store.Allow(ctx, "send-otp:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Allow(ctx, "verify-otp:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, ok, "a different endpoint must use its own counter")

	ok, err = store.Allow(ctx, "send-otp:2.2.2.2")
	require.NoError(t, err)
	assert.True(t, ok, "a different IP must use its own counter")
}

func TestRedisStore_SetsWindowTTLOnFirstHit(t *testing.T) {
	store, mr := newTestRedisStore(t, Config{Limit: 2, Window: 60 * time.Second})
	ctx := context.Background()

	_, err := store.Allow(ctx, "send-otp:9.9.9.9")
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, mr.TTL("ratelimit:send-otp:9.9.9.9"))
}

func TestRedisStore_WindowResetsAfterExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, Config{Limit: 1, Window: 60 * time.Second})
	ctx := context.Background()

	ok, _ := store.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = store.Allow(ctx, "k")
	assert.False(t, ok)

	mr.FastForward(61 * time.Second)

	ok, err := store.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "counter should reset once the window expires")
}

// failExpireHook は最初のn回のEXPIREを失敗させるgo-redisフック。
type failExpireHook struct {
	mu        sync.Mutex
	remaining int
}

func (h *failExpireHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *failExpireHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "expire" {
			h.mu.Lock()
			fail := h.remaining > 0
			if fail {
				h.remaining--
			}
			h.mu.Unlock()
			if fail {
				err := errors.New("expire unavailable")
				cmd.SetErr(err)
				return err
			}
		}
		return next(ctx, cmd)
	}
}

func (h *failExpireHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStore_FailedExpireIsRetried(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	client.AddHook(&failExpireHook{remaining: 1})
	store := NewRedisStore(client, DefaultConfig())
	ctx := context.Background()

	_, err := store.Allow(ctx, "send-otp:203.0.113.9")
	require.Error(t, err, "the first EXPIRE fails")

	for i := 0; i < 6; i++ {
		_, err := store.Allow(ctx, "send-otp:203.0.113.9")
		require.NoError(t, err)
	}
	assert.Equal(t, 60*time.Second, mr.TTL("ratelimit:send-otp:203.0.113.9"),
		"the window TTL must be set by a later call")

	mr.FastForward(24 * time.Hour)

	ok, err := store.Allow(ctx, "send-otp:203.0.113.9")
	require.NoError(t, err)
	assert.True(t, ok, "the key must expire instead of locking the client out")
}

func TestRedisStore_WindowIsNotExtendedByLaterHits(t *testing.T) {
	store, mr := newTestRedisStore(t, Config{Limit: 5, Window: 60 * time.Second})
	ctx := context.Background()

	_, err := store.Allow(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(30 * time.Second)
	_, err = store.Allow(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, mr.TTL("ratelimit:k"))
}

func TestRedisStore_UnreachableReturnsError(t *testing.T) {
	store, mr := newTestRedisStore(t, DefaultConfig())
	mr.Close()

	_, err := store.Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRedisStoreFromURL_InvalidURL(t *testing.T) {
	_, err := NewRedisStoreFromURL("://nope", DefaultConfig())
	assert.Error(t, err)
}
