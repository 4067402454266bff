package logger

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const SeverityCritical = "CRITICAL"

// Alerter emits critical security events. Under attack the same detectors fire
// on every request, so alerts are token-bucket limited and the number of
// dropped alerts is attached to the next one that gets through.
type Alerter struct {
	logger     *logrus.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

func NewAlerter(logger *logrus.Logger, perSecond float64) *Alerter {
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Alerter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Critical logs msg at error level tagged severity=CRITICAL. It reports
// whether the alert was emitted.
func (a *Alerter) Critical(fields logrus.Fields, msg string) bool {
	if !a.limiter.Allow() {
		a.suppressed.Add(1)
		return false
	}
	entry := a.logger.WithFields(fields).WithField("severity", SeverityCritical)
	if n := a.suppressed.Swap(0); n > 0 {
		entry = entry.WithField("suppressed_alerts", n)
	}
	entry.Error(msg)
	return true
}

func (a *Alerter) Suppressed() int64 {
	return a.suppressed.Load()
}
