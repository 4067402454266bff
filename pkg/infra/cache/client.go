package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
}

func redisOptions(config Config) *redis.Options {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	}
	if config.TLS {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: true, // #nosec G402
		}
	}
	return options
}

func NewRedisClient(config Config, logger *logrus.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(redisOptions(config))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithFields(logrus.Fields{
			"host":  config.Host,
			"port":  config.Port,
			"error": err.Error(),
		}).Error("failed to connect to redis")
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host": config.Host,
		"port": config.Port,
	}).Info("redis connected successfully")

	return redisClient, nil
}

// connectRedis never fails: when the startup ping does not answer, it keeps a
// client that dials lazily, so store calls fail open until redis comes back.
func connectRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	rc := Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TLS:      cfg.Redis.TLS,
	}
	client, err := NewRedisClient(rc, logger)
	if err != nil {
		logger.WithError(err).Error("redis unreachable at startup, security state fails open until it recovers")
		return redis.NewClient(redisOptions(rc))
	}
	return client
}

// NewStore builds the configured backend, wrapped in a circuit breaker unless
// disabled. The returned func releases the backend. An unreachable redis does
// not fail startup.
func NewStore(cfg *config.Config, logger *logrus.Logger) (Store, func(), error) {
	var (
		store   Store
		closeFn func()
	)
	switch cfg.Store.Backend {
	case BackendMemory:
		mem, err := NewMemoryStore(MemoryStoreOpts{
			Capacity:      cfg.Store.Capacity,
			SweepInterval: cfg.Store.SweepInterval,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("capacity", cfg.Store.Capacity).Info("using in-memory state store")
		store, closeFn = mem, mem.Close
	case BackendRedis, "":
		client := connectRedis(cfg, logger)
		store = NewRedisStore(client, RedisStoreOpts{Timeout: cfg.Redis.Timeout})
		closeFn = func() { _ = client.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if !cfg.Store.Breaker.Disabled {
		store = NewBreakerStore(store, BreakerSettings{
			FailureThreshold: cfg.Store.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Store.Breaker.OpenTimeout,
		}, logger)
	}
	return store, closeFn, nil
}
