package cache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	Store
	calls int
}

func (f *failingStore) Get(context.Context, string) (string, bool, error) {
	f.calls++
	return "", false, errors.New("i/o timeout")
}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	inner := &failingStore{}
	store := NewBreakerStore(inner, BreakerSettings{FailureThreshold: 3, OpenTimeout: time.Minute}, logger)

	for i := 0; i < 3; i++ {
		_, _, err := store.Get(context.Background(), "k")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mem, err := NewMemoryStore(MemoryStoreOpts{Capacity: 10})
	require.NoError(t, err)
	defer mem.Close()
	store := NewBreakerStore(mem, BreakerSettings{}, logger)
	ctx := context.Background()

	n, err := store.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	val, found, err := store.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", val)

	keys, err := store.Keys(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, keys)
}
