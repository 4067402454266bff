package subscriber

import (
	"context"

	infraCache "github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/event"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/sirupsen/logrus"
)

type BanLiftedEventSubscriber struct {
	logger    *logrus.Logger
	blocklist blocklist.Manager
}

func NewBanLiftedEventSubscriber(
	logger *logrus.Logger,
	bl blocklist.Manager,
) infraCache.EventSubscriber[event.BanLiftedEvent] {
	return &BanLiftedEventSubscriber{
		logger:    logger,
		blocklist: bl,
	}
}

func (s BanLiftedEventSubscriber) OnEvent(_ context.Context, evt event.BanLiftedEvent) error {
	s.logger.WithField("ip", evt.IP).Debug("invalidating local ban cache entry")
	s.blocklist.ForgetLocal(evt.IP)
	return nil
}
