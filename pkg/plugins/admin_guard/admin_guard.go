package admin_guard

import (
	"context"
	"net/http"
	"strings"
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
	PluginName = "admin_guard"

	LoginAttemptsPrefix = "admin_login_attempts:"
	GlobalAttemptsKey   = "admin_login_attempts:global"
	AdminRequestsPrefix = "admin_requests:"

	bruteForceMessage = "Too many failed login attempts."
	restrictedMessage = "Admin access temporarily restricted."
)

// Plugin protects the admin area against credential stuffing and floods.
// Staff requests are never inspected.
type Plugin struct {
	store   cache.Store
	posture *posture.Machine
	alerter *logger.Alerter
	logger  *logrus.Logger
	prefix  string
	cfg     config.AdminConfig
}

func NewAdminGuardPlugin(
	store cache.Store,
	machine *posture.Machine,
	alerter *logger.Alerter,
	log *logrus.Logger,
	cfg config.ShieldConfig,
) *Plugin {
	return &Plugin{
		store:   store,
		posture: machine,
		alerter: alerter,
		logger:  log,
		prefix:  cfg.AdminPrefix,
		cfg:     cfg.Admin,
	}
}

var _ pluginiface.Plugin = (*Plugin)(nil)

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Stages() []types.Stage { return []types.Stage{types.PreRequest} }

func (p *Plugin) Applies(req *types.RequestContext) bool {
	return strings.HasPrefix(req.Path, p.prefix)
}

func isLogin(req *types.RequestContext) bool {
	return req.Method == http.MethodPost && strings.Contains(strings.ToLower(req.Path), "login")
}

func (p *Plugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	if !p.Applies(req) {
		return nil, nil
	}
	p.logger.WithFields(logrus.Fields{
		"ip":     req.IP,
		"path":   req.Path,
		"method": req.Method,
		"staff":  req.Staff,
		"ua":     truncate(req.UserAgent(), 100),
	}).Info("admin access")
	if req.Staff {
		return nil, nil
	}

	if isLogin(req) {
		if err := p.checkBruteForce(ctx, req); err != nil {
			return nil, err
		}
	}
	return nil, p.checkFlood(ctx, req)
}

func (p *Plugin) checkBruteForce(ctx context.Context, req *types.RequestContext) error {
	if p.posture.Active(ctx, posture.AdminEmergency) {
		return deny(http.StatusForbidden, bruteForceMessage, 0)
	}

	perIP, err := p.store.IncrSliding(ctx, LoginAttemptsPrefix+req.IP, p.cfg.AttemptTTL)
	if err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to count admin login attempt")
		return nil
	}
	global, err := p.store.IncrSliding(ctx, GlobalAttemptsKey, p.cfg.AttemptTTL)
	if err != nil {
		p.logger.WithError(err).Error("failed to count global admin login attempts")
		global = 0
	}

	if global >= p.cfg.GlobalAttemptLimit {
		if err := p.posture.Activate(ctx, posture.AdminEmergency, p.cfg.EmergencyDuration); err != nil {
			p.logger.WithError(err).Error("failed to activate admin emergency mode")
		}
		p.alerter.Critical(logrus.Fields{
			"ip":       req.IP,
			"attempts": global,
			"duration": int(p.cfg.EmergencyDuration.Seconds()),
		}, "admin emergency mode activated")
		return deny(http.StatusForbidden, bruteForceMessage, 0)
	}
	if perIP > p.cfg.LoginAttemptLimit {
		p.alerter.Critical(logrus.Fields{
			"ip":       req.IP,
			"attempts": perIP,
		}, "admin brute force detected")
		return deny(http.StatusForbidden, bruteForceMessage, 0)
	}
	return nil
}

func (p *Plugin) checkFlood(ctx context.Context, req *types.RequestContext) error {
	n, err := p.store.Incr(ctx, AdminRequestsPrefix+req.IP, p.cfg.RequestWindow)
	if err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to count admin requests")
		return nil
	}
	if n <= p.cfg.RequestLimit {
		return nil
	}
	p.logger.WithFields(logrus.Fields{
		"ip":    req.IP,
		"count": n,
	}).Warn("admin flood detected")
	return deny(http.StatusTooManyRequests, restrictedMessage, p.cfg.RequestWindow)
}

func deny(status int, message string, retry time.Duration) error {
	return &types.PluginError{
		Plugin:     PluginName,
		StatusCode: status,
		Message:    message,
		RetryAfter: int(retry.Seconds()),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// StaffToken extracts the bearer token or the staff cookie value.
func StaffToken(authorization, cookie string) string {
	if token, ok := strings.CutPrefix(authorization, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return cookie
}
