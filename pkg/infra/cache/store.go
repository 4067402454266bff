package cache

import (
	"context"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("state store unavailable")

// Store is the ephemeral, TTL-scoped state shared by every detector. All
// increments are atomic on the store side; callers never read-modify-write.
// A missing key is reported as its zero value, never as an error.
//
//go:generate mockery --name=Store --dir=. --output=./mocks --filename=store_mock.go --case=underscore --with-expecter
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// TTL returns the remaining lifetime of key, or 0 when the key is absent.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Incr counts within a fixed window: the TTL is set when the counter is
	// created and left alone afterwards.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// IncrSliding refreshes the TTL on every write.
	IncrSliding(ctx context.Context, key string, ttl time.Duration) (int64, error)
	IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)

	// AddToWindow records member at the given instant in a time-ordered set,
	// drops members older than window and returns the resulting cardinality.
	AddToWindow(ctx context.Context, key, member string, at time.Time, window time.Duration) (int64, error)
	CountWindow(ctx context.Context, key string, since time.Time) (int64, error)

	// PushBounded prepends value and keeps at most maxLen entries.
	PushBounded(ctx context.Context, key string, value string, maxLen int, ttl time.Duration) error
	Range(ctx context.Context, key string) ([]string, error)

	SumCounters(ctx context.Context, keys []string) (int64, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// Clock is injected wherever TTL arithmetic happens in-process.
type Clock func() time.Time
