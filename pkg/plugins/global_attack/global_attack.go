package global_attack

import (
	"context"
	"strconv"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "global_attack"

	BucketPrefix = "global_request_rate:"
	bucketTTL    = 120 * time.Second
)

// RateCounter counts all requests in one-second buckets so the memory used
// does not grow with traffic.
type RateCounter struct {
	store  cache.Store
	window time.Duration
}

func NewRateCounter(store cache.Store, window time.Duration) *RateCounter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateCounter{store: store, window: window}
}

func (c *RateCounter) Record(ctx context.Context, at time.Time) error {
	_, err := c.store.Incr(ctx, BucketPrefix+strconv.FormatInt(at.Unix(), 10), bucketTTL)
	return err
}

// Rate sums the buckets of the window ending at the given second.
func (c *RateCounter) Rate(ctx context.Context, at time.Time) (int64, error) {
	seconds := int64(c.window / time.Second)
	end := at.Unix()
	keys := make([]string, 0, seconds)
	for s := end - seconds + 1; s <= end; s++ {
		keys = append(keys, BucketPrefix+strconv.FormatInt(s, 10))
	}
	return c.store.SumCounters(ctx, keys)
}

type GlobalAttackOpts struct {
	TimeProvider func() time.Time
}

type Plugin struct {
	counter      *RateCounter
	posture      *posture.Machine
	alerter      *logger.Alerter
	logger       *logrus.Logger
	cfg          config.GlobalConfig
	timeProvider func() time.Time
}

func NewGlobalAttackPlugin(
	store cache.Store,
	machine *posture.Machine,
	alerter *logger.Alerter,
	log *logrus.Logger,
	cfg config.GlobalConfig,
	opts *GlobalAttackOpts,
) pluginiface.Plugin {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Plugin{
		counter:      NewRateCounter(store, cfg.Window),
		posture:      machine,
		alerter:      alerter,
		logger:       log,
		cfg:          cfg,
		timeProvider: timeProvider,
	}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Stages() []types.Stage { return []types.Stage{types.PreRequest} }

// Execute never denies. Crossing the threshold switches the process into
// emergency mode, which tightens the rate limiter for everyone.
func (p *Plugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	now := p.timeProvider()
	if err := p.counter.Record(ctx, now); err != nil {
		p.logger.WithError(err).Error("failed to record global request rate")
		return nil, nil
	}
	rate, err := p.counter.Rate(ctx, now)
	if err != nil {
		p.logger.WithError(err).Error("failed to read global request rate")
		return nil, nil
	}
	if rate <= p.cfg.Threshold {
		return nil, nil
	}
	if p.posture.Active(ctx, posture.Emergency) {
		return nil, nil
	}
	if err := p.posture.Activate(ctx, posture.Emergency, p.cfg.EmergencyDuration); err != nil {
		p.logger.WithError(err).Error("failed to activate emergency mode")
		return nil, nil
	}
	p.alerter.Critical(logrus.Fields{
		"requests_per_minute": rate,
		"threshold":           p.cfg.Threshold,
		"duration":            int(p.cfg.EmergencyDuration.Seconds()),
		"trigger_ip":          req.IP,
	}, "distributed attack detected, emergency mode activated")
	return nil, nil
}
