package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, RedisStoreOpts{Timeout: time.Second}), mr
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newTestRedisStore(t)
	_, found, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_SetExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Set(ctx, "blocked_ip:1.2.3.4", "x", 10*time.Second))
	mr.FastForward(9 * time.Second)
	_, found, err := store.Get(ctx, "blocked_ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, found)

	mr.FastForward(2 * time.Second)
	_, found, err = store.Get(ctx, "blocked_ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_IncrAnchorsWindow(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	n, err := store.Incr(ctx, "rate_limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(30 * time.Second)
	n, err = store.Incr(ctx, "rate_limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := store.TTL(ctx, "rate_limit:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)
	n, err = store.Incr(ctx, "rate_limit:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStore_IncrSliding(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	_, err := store.IncrSliding(ctx, "penalty:1.2.3.4", time.Hour)
	require.NoError(t, err)
	mr.FastForward(50 * time.Minute)
	n, err := store.IncrSliding(ctx, "penalty:1.2.3.4", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Hour, mr.TTL("penalty:1.2.3.4"))
}

func TestRedisStore_Window(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		card, err := store.AddToWindow(ctx, "ddos_burst:1.2.3.4", strconv.Itoa(i), base.Add(time.Duration(i)*5*time.Second), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), card)
	}
	n, err := store.CountWindow(ctx, "ddos_burst:1.2.3.4", base.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	card, err := store.AddToWindow(ctx, "ddos_burst:1.2.3.4", "late", base.Add(75*time.Second), time.Minute)
	require.NoError(t, err)
	// entries at 0s, 5s and 10s fall out of the window
	assert.Equal(t, int64(3), card)
}

func TestRedisStore_PushBoundedAndRange(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.PushBounded(ctx, "ip_history:1.2.3.4", strconv.Itoa(i), 3, time.Hour))
	}
	items, err := store.Range(ctx, "ip_history:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "2"}, items)
	assert.Equal(t, time.Hour, mr.TTL("ip_history:1.2.3.4"))
}

func TestRedisStore_KeysAndSum(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	_, _ = store.Incr(ctx, "global_request_rate:1", time.Minute)
	_, _ = store.IncrBy(ctx, "global_request_rate:2", 9, time.Minute)
	require.NoError(t, store.Set(ctx, "unrelated", "x", time.Minute))

	keys, err := store.Keys(ctx, "global_request_rate:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"global_request_rate:1", "global_request_rate:2"}, keys)

	sum, err := store.SumCounters(ctx, []string{"global_request_rate:1", "global_request_rate:2", "global_request_rate:3"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
}
