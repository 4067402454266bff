package ip_reputation

import (
	"context"
	"net/http"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "ip_reputation"

	ReasonMalicious = "malicious_reputation"
	deniedMessage   = "Access denied."
)

type Plugin struct {
	analyzer  *Analyzer
	blocklist blocklist.Manager
	logger    *logrus.Logger
	ban       time.Duration
}

func NewIPReputationPlugin(
	analyzer *Analyzer,
	bl blocklist.Manager,
	logger *logrus.Logger,
	ban time.Duration,
) pluginiface.Plugin {
	return &Plugin{
		analyzer:  analyzer,
		blocklist: bl,
		logger:    logger,
		ban:       ban,
	}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Stages() []types.Stage {
	return []types.Stage{types.PreRequest, types.PostResponse}
}

func (p *Plugin) Execute(
	ctx context.Context,
	stage types.Stage,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	if req.IP == "" {
		return nil, nil
	}
	if stage == types.PostResponse {
		if resp == nil {
			return nil, nil
		}
		return nil, p.analyzer.Record(ctx, req.IP, req.Path, resp.StatusCode)
	}

	rep := p.analyzer.Analyze(ctx, req.IP)
	req.SetMetadata(common.MetadataReputation, rep)
	if rep.Tier != threat.TierMalicious {
		return nil, nil
	}

	if err := p.blocklist.Ban(ctx, req.IP, p.ban, ReasonMalicious, threat.ActionReputationBlock); err != nil {
		p.logger.WithError(err).WithField("ip", req.IP).Error("failed to ban malicious address")
	}
	p.logger.WithFields(logrus.Fields{
		"ip":     req.IP,
		"score":  rep.Score,
		"reason": rep.Reason,
	}).Warn("malicious reputation")
	return nil, &types.PluginError{
		Plugin:     PluginName,
		StatusCode: http.StatusForbidden,
		Message:    deniedMessage,
	}
}
