package subscriber

import (
	"context"

	infraCache "github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/event"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/sirupsen/logrus"
)

type BansClearedEventSubscriber struct {
	logger    *logrus.Logger
	blocklist blocklist.Manager
}

func NewBansClearedEventSubscriber(
	logger *logrus.Logger,
	bl blocklist.Manager,
) infraCache.EventSubscriber[event.BansClearedEvent] {
	return &BansClearedEventSubscriber{
		logger:    logger,
		blocklist: bl,
	}
}

func (s BansClearedEventSubscriber) OnEvent(_ context.Context, evt event.BansClearedEvent) error {
	s.logger.WithField("cleared", evt.Cleared).Debug("purging local ban cache")
	s.blocklist.PurgeLocal()
	return nil
}
