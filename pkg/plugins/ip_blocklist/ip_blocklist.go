package ip_blocklist

import (
	"context"
	"net/http"

	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "ip_blocklist"

	deniedMessage = "Access denied."
)

type Plugin struct {
	blocklist blocklist.Manager
	logger    *logrus.Logger
}

func NewIPBlocklistPlugin(bl blocklist.Manager, logger *logrus.Logger) pluginiface.Plugin {
	return &Plugin{blocklist: bl, logger: logger}
}

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Stages() []types.Stage { return []types.Stage{types.PreRequest} }

func (p *Plugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	if req.IP == "" || !p.blocklist.IsBanned(ctx, req.IP) {
		return nil, nil
	}
	p.logger.WithFields(logrus.Fields{
		"ip":   req.IP,
		"path": req.Path,
	}).Debug("request from banned address")
	return nil, &types.PluginError{
		Plugin:     PluginName,
		StatusCode: http.StatusForbidden,
		Message:    deniedMessage,
	}
}
