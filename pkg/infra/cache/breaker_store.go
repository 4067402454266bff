package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// BreakerStore short-circuits calls to an unhealthy store so that detectors
// fail open immediately instead of waiting on a timeout per request.
type BreakerStore struct {
	inner  Store
	cb     *gobreaker.CircuitBreaker
	logger *logrus.Logger
}

func NewBreakerStore(inner Store, settings BreakerSettings, logger *logrus.Logger) *BreakerStore {
	if settings.Name == "" {
		settings.Name = "state-store"
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    settings.Name,
		Timeout: settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("state store circuit breaker changed state")
		},
	})
	return &BreakerStore{inner: inner, cb: cb, logger: logger}
}

func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *BreakerStore) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	res, err := s.cb.Execute(fn)
	if err != nil {
		prometheus.StoreErrorsTotal.WithLabelValues(op).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
		}
		return nil, err
	}
	return res, nil
}

func (s *BreakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	var found bool
	res, err := s.execute("get", func() (interface{}, error) {
		val, ok, err := s.inner.Get(ctx, key)
		found = ok
		return val, err
	})
	if err != nil {
		return "", false, err
	}
	return res.(string), found, nil
}

func (s *BreakerStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	_, err := s.execute("set", func() (interface{}, error) {
		return nil, s.inner.Set(ctx, key, value, ttl)
	})
	return err
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.execute("delete", func() (interface{}, error) {
		return nil, s.inner.Delete(ctx, key)
	})
	return err
}

func (s *BreakerStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	res, err := s.execute("ttl", func() (interface{}, error) {
		return s.inner.TTL(ctx, key)
	})
	if err != nil {
		return 0, err
	}
	return res.(time.Duration), nil
}

func (s *BreakerStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.int64Op("incr", func() (int64, error) {
		return s.inner.Incr(ctx, key, window)
	})
}

func (s *BreakerStore) IncrSliding(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.int64Op("incr_sliding", func() (int64, error) {
		return s.inner.IncrSliding(ctx, key, ttl)
	})
}

func (s *BreakerStore) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	return s.int64Op("incr_by", func() (int64, error) {
		return s.inner.IncrBy(ctx, key, n, ttl)
	})
}

func (s *BreakerStore) AddToWindow(
	ctx context.Context,
	key, member string,
	at time.Time,
	window time.Duration,
) (int64, error) {
	return s.int64Op("add_to_window", func() (int64, error) {
		return s.inner.AddToWindow(ctx, key, member, at, window)
	})
}

func (s *BreakerStore) CountWindow(ctx context.Context, key string, since time.Time) (int64, error) {
	return s.int64Op("count_window", func() (int64, error) {
		return s.inner.CountWindow(ctx, key, since)
	})
}

func (s *BreakerStore) PushBounded(ctx context.Context, key string, value string, maxLen int, ttl time.Duration) error {
	_, err := s.execute("push_bounded", func() (interface{}, error) {
		return nil, s.inner.PushBounded(ctx, key, value, maxLen, ttl)
	})
	return err
}

func (s *BreakerStore) Range(ctx context.Context, key string) ([]string, error) {
	res, err := s.execute("range", func() (interface{}, error) {
		return s.inner.Range(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

func (s *BreakerStore) SumCounters(ctx context.Context, keys []string) (int64, error) {
	return s.int64Op("sum_counters", func() (int64, error) {
		return s.inner.SumCounters(ctx, keys)
	})
}

func (s *BreakerStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	res, err := s.execute("keys", func() (interface{}, error) {
		return s.inner.Keys(ctx, prefix)
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

func (s *BreakerStore) Ping(ctx context.Context) error {
	_, err := s.execute("ping", func() (interface{}, error) {
		return nil, s.inner.Ping(ctx)
	})
	return err
}

func (s *BreakerStore) int64Op(op string, fn func() (int64, error)) (int64, error) {
	res, err := s.execute(op, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}
