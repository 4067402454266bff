package rate_limiter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "rate_limiter"

	PolicyEmergency = "emergency"
	PolicyAdmin     = "admin"
	PolicyMutating  = "mutating"
	PolicyDefault   = "default"
	PolicyContact   = "contact"

	limitExceededMessage = "Rate limit exceeded. Please try again later."
)

type RateLimiterOpts struct {
	TimeProvider func() time.Time
}

// Policy picks the per-window limit for a request.
type Policy struct {
	Limits       config.RateLimitConfig
	AdminPrefix  string
	ContactPaths []string
}

func NewPolicy(cfg config.ShieldConfig) Policy {
	return Policy{
		Limits:       cfg.RateLimit,
		AdminPrefix:  cfg.AdminPrefix,
		ContactPaths: cfg.ContactPaths,
	}
}

// LimitFor evaluates the tiers in priority order.
func (p Policy) LimitFor(req *types.RequestContext, emergency bool) (string, int64) {
	switch {
	case emergency:
		return PolicyEmergency, p.Limits.EmergencyLimit
	case p.AdminPrefix != "" && strings.HasPrefix(req.Path, p.AdminPrefix):
		return PolicyAdmin, p.Limits.AdminLimit
	case req.IsMutating():
		return PolicyMutating, p.Limits.MutatingLimit
	default:
		return PolicyDefault, p.Limits.DefaultLimit
	}
}

// IsContactSubmission reports whether the request is a POST to a contact path.
func (p Policy) IsContactSubmission(req *types.RequestContext) bool {
	if req.Method != http.MethodPost {
		return false
	}
	for _, prefix := range p.ContactPaths {
		if strings.HasPrefix(req.Path, prefix) {
			return true
		}
	}
	return false
}

// PenaltySeconds grows linearly with the number of violations, up to the ceiling.
func (p Policy) PenaltySeconds(violations int64) int {
	if violations < 1 {
		violations = 1
	}
	step := p.Limits.PenaltyStep.Seconds()
	ceiling := p.Limits.PenaltyCeiling.Seconds()
	return int(math.Min(ceiling, step*float64(violations)))
}

type RateLimiterPlugin struct {
	store        cache.Store
	posture      *posture.Machine
	logger       *logrus.Logger
	policy       Policy
	timeProvider func() time.Time
}

func NewRateLimiterPlugin(
	store cache.Store,
	machine *posture.Machine,
	logger *logrus.Logger,
	cfg config.ShieldConfig,
	opts *RateLimiterOpts,
) pluginiface.Plugin {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &RateLimiterPlugin{
		store:        store,
		posture:      machine,
		logger:       logger,
		policy:       NewPolicy(cfg),
		timeProvider: timeProvider,
	}
}

func (r *RateLimiterPlugin) Name() string {
	return PluginName
}

func (r *RateLimiterPlugin) Stages() []types.Stage {
	return []types.Stage{types.PreRequest}
}

func (r *RateLimiterPlugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	emergency := r.posture.Active(ctx, posture.Emergency)
	req.SetMetadata(common.MetadataEmergency, emergency)

	if !emergency && r.policy.IsContactSubmission(req) {
		return r.checkContact(ctx, req)
	}

	name, limit := r.policy.LimitFor(req, emergency)
	key := "rate_limit:" + req.IP
	count, err := r.store.Incr(ctx, key, r.policy.Limits.Window)
	if err != nil {
		r.logger.WithError(err).WithField("ip", req.IP).Error("rate limit counter failed, allowing request")
		return nil, nil
	}

	now := r.timeProvider()
	reset := r.policy.Limits.Window
	if ttl, err := r.store.TTL(ctx, key); err == nil && ttl > 0 {
		reset = ttl
	}
	decision := Decision{
		Policy:    name,
		Limit:     limit,
		Count:     count,
		Remaining: max(0, limit-count),
		ResetAt:   now.Add(reset).Unix(),
	}
	req.SetMetadata(common.MetadataRateLimit, decision.Limit)
	req.SetMetadata(common.MetadataRateLimitRemaining, decision.Remaining)
	req.SetMetadata(common.MetadataRateLimitReset, decision.ResetAt)

	if count <= limit {
		return &types.PluginResponse{
			Headers: map[string][]string{
				common.RateLimitLimitHeader:     {strconv.FormatInt(decision.Limit, 10)},
				common.RateLimitRemainingHeader: {strconv.FormatInt(decision.Remaining, 10)},
				common.RateLimitResetHeader:     {strconv.FormatInt(decision.ResetAt, 10)},
			},
		}, nil
	}

	violations, err := r.store.IncrSliding(ctx, "penalty:"+req.IP, r.policy.Limits.PenaltyTTL)
	if err != nil {
		r.logger.WithError(err).WithField("ip", req.IP).Error("failed to record rate limit violation")
		violations = 1
	}
	decision.Exceeded = true
	decision.RetryAfter = r.policy.PenaltySeconds(violations)

	r.logger.WithFields(logrus.Fields{
		"ip":          req.IP,
		"path":        req.Path,
		"policy":      decision.Policy,
		"count":       decision.Count,
		"limit":       decision.Limit,
		"violations":  violations,
		"retry_after": decision.RetryAfter,
	}).Warn("rate limit exceeded")

	return nil, &types.PluginError{
		Plugin:     PluginName,
		StatusCode: http.StatusTooManyRequests,
		Message:    limitExceededMessage,
		RetryAfter: decision.RetryAfter,
	}
}

func (r *RateLimiterPlugin) checkContact(ctx context.Context, req *types.RequestContext) (*types.PluginResponse, error) {
	key := "contact_limit:" + req.IP
	count, err := r.store.Incr(ctx, key, r.policy.Limits.ContactWindow)
	if err != nil {
		r.logger.WithError(err).WithField("ip", req.IP).Error("contact limit counter failed, allowing request")
		return nil, nil
	}
	if count <= r.policy.Limits.ContactLimit {
		return nil, nil
	}

	retryAfter := int(r.policy.Limits.ContactWindow.Seconds())
	if ttl, err := r.store.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = int(math.Ceil(ttl.Seconds()))
	}
	r.logger.WithFields(logrus.Fields{
		"ip":          req.IP,
		"path":        req.Path,
		"count":       count,
		"retry_after": retryAfter,
	}).Warn("contact submission limit exceeded")

	return nil, &types.PluginError{
		Plugin:     PluginName,
		StatusCode: http.StatusTooManyRequests,
		Message:    limitExceededMessage,
		RetryAfter: retryAfter,
	}
}
