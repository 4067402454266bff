package anomaly_detector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/fingerprint"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "anomaly_detector"

	// Store keys for the per-address windows
	burstKey     = "ddos_burst:%s"
	patternKey   = "pattern:%s:%s"
	distinctPath = "paths:%s"

	ReasonBurst   = "ddos_burst"
	ReasonPattern = "pattern_anomaly"

	restrictedMessage = "Access temporarily restricted."
)

// Anomaly describes why a request was flagged.
type Anomaly struct {
	Reason    string `json:"reason"`
	Indicator string `json:"indicator"`
	Count     int64  `json:"count"`
	Threshold int64  `json:"threshold"`
}

type AnomalyDetectorOpts struct {
	TimeProvider func() time.Time
	UuidProvider func() uuid.UUID
}

// AnomalyDetectorPlugin bans addresses that send too many requests in a short
// window, or that repeat the same request shape or sweep many paths.
type AnomalyDetectorPlugin struct {
	logger       *logrus.Logger
	alerter      *logger.Alerter
	store        cache.Store
	blocklist    blocklist.Manager
	burst        config.BurstConfig
	pattern      config.PatternConfig
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID
}

// NewAnomalyDetectorPlugin creates a new instance of the anomaly detector plugin
func NewAnomalyDetectorPlugin(
	log *logrus.Logger,
	alerter *logger.Alerter,
	store cache.Store,
	bl blocklist.Manager,
	cfg config.ShieldConfig,
	opts *AnomalyDetectorOpts,
) pluginiface.Plugin {
	p := &AnomalyDetectorPlugin{
		logger:       log,
		alerter:      alerter,
		store:        store,
		blocklist:    bl,
		burst:        cfg.Burst,
		pattern:      cfg.Pattern,
		timeProvider: time.Now,
		uuidProvider: uuid.New,
	}
	if opts != nil && opts.TimeProvider != nil {
		p.timeProvider = opts.TimeProvider
	}
	if opts != nil && opts.UuidProvider != nil {
		p.uuidProvider = opts.UuidProvider
	}
	return p
}

// Name returns the name of the plugin
func (p *AnomalyDetectorPlugin) Name() string {
	return PluginName
}

// Stages returns the stages where the plugin must run
func (p *AnomalyDetectorPlugin) Stages() []types.Stage {
	return []types.Stage{types.PreRequest}
}

// Execute records the request in the burst and pattern windows and bans the
// address when any of them crosses its threshold.
func (p *AnomalyDetectorPlugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	now := p.timeProvider()

	if anomaly := p.detectBurst(ctx, req, now); anomaly != nil {
		return nil, p.respond(ctx, req, anomaly, p.burst.BanDuration)
	}
	if anomaly := p.detectPattern(ctx, req, now); anomaly != nil {
		return nil, p.respond(ctx, req, anomaly, p.pattern.BanDuration)
	}
	return nil, nil
}

// detectBurst keeps one member per request in a window pruned to the long
// horizon and checks both the short and the long thresholds.
func (p *AnomalyDetectorPlugin) detectBurst(ctx context.Context, req *types.RequestContext, now time.Time) *Anomaly {
	key := fmt.Sprintf(burstKey, req.IP)
	total, err := p.store.AddToWindow(ctx, key, p.uuidProvider().String(), now, p.burst.LongWindow)
	if err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to record burst window")
		return nil
	}
	recent, err := p.store.CountWindow(ctx, key, now.Add(-p.burst.ShortWindow))
	if err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to count burst window")
		recent = 0
	}
	switch {
	case recent > p.burst.ShortThreshold:
		return &Anomaly{Reason: ReasonBurst, Indicator: "burst", Count: recent, Threshold: p.burst.ShortThreshold}
	case total > p.burst.LongThreshold:
		return &Anomaly{Reason: ReasonBurst, Indicator: "sustained_rate", Count: total, Threshold: p.burst.LongThreshold}
	}
	return nil
}

func (p *AnomalyDetectorPlugin) detectPattern(ctx context.Context, req *types.RequestContext, now time.Time) *Anomaly {
	signature := fingerprint.New(req.IP, req.Method, req.Path, req.UserAgent()).Signature()
	repeats, err := p.store.Incr(ctx, fmt.Sprintf(patternKey, req.IP, signature), p.pattern.SignatureWindow)
	if err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to count request signature")
	} else if repeats > p.pattern.SignatureThreshold {
		return &Anomaly{Reason: ReasonPattern, Indicator: "repeated_signature", Count: repeats, Threshold: p.pattern.SignatureThreshold}
	}

	paths, err := p.store.AddToWindow(ctx, fmt.Sprintf(distinctPath, req.IP), req.Path, now, p.pattern.PathWindow)
	if err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to record path window")
		return nil
	}
	if paths > p.pattern.PathThreshold {
		return &Anomaly{Reason: ReasonPattern, Indicator: "path_scan", Count: paths, Threshold: p.pattern.PathThreshold}
	}
	return nil
}

func (p *AnomalyDetectorPlugin) respond(
	ctx context.Context,
	req *types.RequestContext,
	anomaly *Anomaly,
	ban time.Duration,
) error {
	if err := p.blocklist.Ban(ctx, req.IP, ban, anomaly.Reason, threat.ActionDDoSBlock); err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to ban anomalous address")
	}
	p.alerter.Critical(logrus.Fields{
		"ip":        req.IP,
		"path":      req.Path,
		"reason":    anomaly.Reason,
		"indicator": anomaly.Indicator,
		"count":     anomaly.Count,
		"threshold": anomaly.Threshold,
		"ban":       int(ban.Seconds()),
	}, "anomalous traffic detected")
	return &types.PluginError{
		Plugin:     PluginName,
		StatusCode: http.StatusTooManyRequests,
		Message:    restrictedMessage,
		RetryAfter: int(ban.Seconds()),
	}
}
