package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// fixedWindowScript increments and arms the expiry only when the key carries
// none, so the window is anchored at the first hit.
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

type RedisStoreOpts struct {
	Timeout time.Duration
}

type RedisStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func NewRedisStore(client redis.UniversalClient, opts RedisStoreOpts) *RedisStore {
	if opts.Timeout <= 0 {
		opts.Timeout = 200 * time.Millisecond
	}
	return &RedisStore{
		client:  client,
		timeout: opts.Timeout,
	}
}

func (s *RedisStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return fixedWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
}

func (s *RedisStore) IncrSliding(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.IncrBy(ctx, key, 1, ttl)
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, n)
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RedisStore) AddToWindow(
	ctx context.Context,
	key, member string,
	at time.Time,
	window time.Duration,
) (int64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	cutoff := at.Add(-window).UnixMilli()
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: member,
	})
	card := pipe.ZCard(ctx, key)
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func (s *RedisStore) CountWindow(ctx context.Context, key string, since time.Time) (int64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.ZCount(ctx, key, strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
}

func (s *RedisStore) PushBounded(ctx context.Context, key string, value string, maxLen int, ttl time.Duration) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, int64(maxLen-1))
	pipe.PExpire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Range(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.LRange(ctx, key, 0, -1).Result()
}

func (s *RedisStore) SumCounters(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("error scanning keys: %w", err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
