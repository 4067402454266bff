package cache

import (
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/channel"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

// NewEventBus connects the blocklist event channel. The memory backend has no
// peers, so it returns nil publisher and listener. An unreachable redis is
// tolerated: the listener resubscribes with backoff and publish errors are
// logged by the caller.
func NewEventBus(cfg *config.Config, logger *logrus.Logger) (EventPublisher, EventListener, func(), error) {
	if cfg.Store.Backend == BackendMemory {
		return nil, nil, func() {}, nil
	}
	client := connectRedis(cfg, logger)
	publisher := NewRedisEventPublisher(client, channel.BlocklistEventsChannel)
	listener := NewRedisEventListener(logger, client, event.Registry)
	return publisher, listener, func() { _ = client.Close() }, nil
}
