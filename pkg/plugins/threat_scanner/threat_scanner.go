package threat_scanner

import (
	"context"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/security/response"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
)

const PluginName = "threat_scanner"

type ThreatScannerOpts struct {
	TimeProvider func() time.Time
}

type Plugin struct {
	scanner      *Scanner
	advanced     *AdvancedChecks
	policy       *response.Policy
	logger       *logrus.Logger
	skipAdvanced bool
	timeProvider func() time.Time
}

func NewThreatScannerPlugin(
	store cache.Store,
	policy *response.Policy,
	logger *logrus.Logger,
	cfg config.ScannerConfig,
	opts *ThreatScannerOpts,
) *Plugin {
	clock := time.Now
	if opts != nil && opts.TimeProvider != nil {
		clock = opts.TimeProvider
	}
	return &Plugin{
		scanner:      NewScanner(cfg.MaxBodyBytes),
		advanced:     NewAdvancedChecks(store, logger, cfg.TimingAnalysis, clock),
		policy:       policy,
		logger:       logger,
		skipAdvanced: cfg.SkipAdvancedChecks,
		timeProvider: clock,
	}
}

var (
	_ pluginiface.Plugin   = (*Plugin)(nil)
	_ pluginiface.Observer = (*Plugin)(nil)
)

func (p *Plugin) Name() string { return PluginName }

func (p *Plugin) Stages() []types.Stage { return []types.Stage{types.PreRequest} }

// Analyze runs every signature family and, unless disabled, the advanced
// checks. It returns nil when nothing matched.
func (p *Plugin) Analyze(ctx context.Context, req *types.RequestContext) *threat.Report {
	findings := p.scanner.Scan(req)
	if !p.skipAdvanced {
		findings = append(findings, p.advanced.Check(ctx, req)...)
	}
	for _, f := range findings {
		prometheus.ThreatFindingsTotal.WithLabelValues(f.Family, f.Severity.String()).Inc()
	}
	return threat.NewReport(findings, threat.RequestMeta{
		SourceIP:  req.IP,
		UserAgent: req.UserAgent(),
		Path:      req.Path,
		Method:    req.Method,
		TraceID:   req.TraceID,
	}, p.timeProvider())
}

func (p *Plugin) Execute(
	ctx context.Context,
	_ types.Stage,
	req *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	report := p.Analyze(ctx, req)
	if report == nil {
		return nil, nil
	}
	req.SetMetadata(common.MetadataReport, report)
	if err := p.policy.Apply(ctx, report); err != nil {
		return nil, err
	}
	return &types.PluginResponse{
		Metadata: map[string]interface{}{common.MetadataReport: report},
	}, nil
}

func (p *Plugin) Observe(ctx context.Context, req *types.RequestContext) {
	report := p.Analyze(ctx, req)
	if report == nil {
		return
	}
	req.SetMetadata(common.MetadataReport, report)
	p.policy.Observe(ctx, report)
}
