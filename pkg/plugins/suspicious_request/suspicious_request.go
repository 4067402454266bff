package suspicious_request

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/NeuralTrust/TrustShield/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "suspicious_request"

	scorePrefix   = "suspicious_score:"
	ReasonScore   = "suspicious_score"
	deniedMessage = "Access denied."
)

type Plugin struct {
	store        cache.Store
	blocklist    blocklist.Manager
	logger       *logrus.Logger
	cfg          config.SuspiciousConfig
	contactPaths []string
	maxBody      int
}

func NewSuspiciousRequestPlugin(
	store cache.Store,
	bl blocklist.Manager,
	logger *logrus.Logger,
	cfg config.ShieldConfig,
) pluginiface.Plugin {
	return &Plugin{
		store:        store,
		blocklist:    bl,
		logger:       logger,
		cfg:          cfg.Suspicious,
		contactPaths: cfg.ContactPaths,
		maxBody:      cfg.Scanner.MaxBodyBytes,
	}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Stages() []types.Stage { return []types.Stage{types.PreRequest} }

func (p *Plugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	flag := Inspect(req, p.maxBody)
	if flag == nil {
		return nil, nil
	}

	weight := p.weight(req)
	score, err := p.store.IncrBy(ctx, scorePrefix+req.IP, weight, p.cfg.ScoreTTL)
	if err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to update suspicious score")
	}
	req.SetMetadata(common.MetadataSuspiciousScore, score)

	p.logger.WithFields(logrus.Fields{
		"ip":     req.IP,
		"path":   req.Path,
		"reason": flag.Reason,
		"match":  flag.Match,
		"score":  score,
	}).Warn("suspicious request")

	if score > p.cfg.ScoreThreshold {
		if err := p.blocklist.Ban(ctx, req.IP, p.cfg.BanDuration, ReasonScore, threat.ActionSuspiciousBlock); err != nil {
			p.logger.WithError(err).WithField("ip", req.IP).Error("failed to ban suspicious address")
		}
	}
	return nil, &types.PluginError{
		Plugin:     PluginName,
		StatusCode: http.StatusForbidden,
		Message:    deniedMessage,
	}
}

func (p *Plugin) weight(req *types.RequestContext) int64 {
	if _, ok := utils.ContainsAny(req.Path, highRiskPathHints); ok {
		return 3
	}
	if req.Method == http.MethodPost && !p.isContact(req.Path) {
		return 2
	}
	return 1
}

func (p *Plugin) isContact(path string) bool {
	for _, prefix := range p.contactPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Inspect returns the first reason the request looks like a probe, or nil.
func Inspect(req *types.RequestContext, maxBody int) *Flag {
	content := req.Path + " " + req.RawQuery
	if decoded, err := url.QueryUnescape(req.RawQuery); err == nil && decoded != req.RawQuery {
		content += " " + decoded
	}
	if m, ok := utils.ContainsAny(content, suspiciousPatterns); ok {
		return &Flag{Reason: "suspicious_pattern", Match: m}
	}
	if req.IsMutating() && len(req.Body) > 0 {
		body := req.Body
		if maxBody > 0 && len(body) > maxBody {
			body = body[:maxBody]
		}
		if m, ok := utils.ContainsAny(string(body), suspiciousPatterns); ok {
			return &Flag{Reason: "suspicious_body", Match: m}
		}
	}

	ua := strings.ToLower(req.UserAgent())
	if _, ok := utils.ContainsAny(ua, apiClients); ok {
		return nil
	}
	if _, ok := browserEndpoints[req.Path]; ok && !utils.IsBrowser(req.UserAgent()) {
		return nil
	}
	if m, ok := utils.ContainsAny(ua, toolAgents); ok {
		return &Flag{Reason: "tool_user_agent", Match: m}
	}
	if ua == "" && !isLocal(req.IP) {
		return &Flag{Reason: "missing_user_agent"}
	}
	return nil
}

func isLocal(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
