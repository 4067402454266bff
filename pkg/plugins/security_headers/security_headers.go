package security_headers

import (
	"context"
	"strconv"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/rate_limiter"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/types"
)

const (
	PluginName = "security_headers"

	ProtectionActive    = "Active"
	ProtectionEmergency = "Emergency-Mode-Active"
)

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://cdnjs.cloudflare.com https://cdn.jsdelivr.net; " +
	"style-src 'self' 'unsafe-inline' https://cdnjs.cloudflare.com https://fonts.googleapis.com; " +
	"img-src 'self' data: https:; " +
	"font-src 'self' https://fonts.gstatic.com https://cdnjs.cloudflare.com; " +
	"connect-src 'self'; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

var staticHeaders = map[string]string{
	"Content-Security-Policy": contentSecurityPolicy,
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"X-XSS-Protection":        "1; mode=block",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Permissions-Policy":      "geolocation=(), microphone=(), camera=()",
}

type Plugin struct {
	posture      *posture.Machine
	policy       rate_limiter.Policy
	timeProvider func() time.Time
}

func NewSecurityHeadersPlugin(
	machine *posture.Machine,
	cfg config.ShieldConfig,
	clock func() time.Time,
) pluginiface.Plugin {
	if clock == nil {
		clock = time.Now
	}
	return &Plugin{
		posture:      machine,
		policy:       rate_limiter.NewPolicy(cfg),
		timeProvider: clock,
	}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Stages() []types.Stage { return []types.Stage{types.PostResponse} }

func (p *Plugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	headers := make(map[string][]string, len(staticHeaders)+4)
	for name, value := range staticHeaders {
		headers[name] = []string{value}
	}

	emergency, ok := req.Metadata[common.MetadataEmergency].(bool)
	if !ok {
		emergency = p.posture.Active(ctx, posture.Emergency)
	}
	if emergency {
		headers[common.DDoSProtectionHeader] = []string{ProtectionEmergency}
	} else {
		headers[common.DDoSProtectionHeader] = []string{ProtectionActive}
	}

	limit, remaining, reset := p.rateLimit(req, emergency)
	headers[common.RateLimitLimitHeader] = []string{strconv.FormatInt(limit, 10)}
	headers[common.RateLimitRemainingHeader] = []string{strconv.FormatInt(remaining, 10)}
	headers[common.RateLimitResetHeader] = []string{strconv.FormatInt(reset, 10)}

	return &types.PluginResponse{Headers: headers}, nil
}

// rateLimit reuses the values computed by the rate limiter for this request
// and falls back to a full window under the current policy.
func (p *Plugin) rateLimit(req *types.RequestContext, emergency bool) (int64, int64, int64) {
	limit, hasLimit := req.Metadata[common.MetadataRateLimit].(int64)
	remaining, hasRemaining := req.Metadata[common.MetadataRateLimitRemaining].(int64)
	reset, hasReset := req.Metadata[common.MetadataRateLimitReset].(int64)
	if hasLimit && hasRemaining && hasReset {
		return limit, remaining, reset
	}
	_, limit = p.policy.LimitFor(req, emergency)
	return limit, limit, p.timeProvider().Add(p.policy.Limits.Window).Unix()
}
