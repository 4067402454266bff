package response

import (
	"context"
	"net/http"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/NeuralTrust/TrustShield/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	ReasonCritical   = "critical_threat"
	ReasonHigh       = "high_threat"
	ReasonEscalation = "repeated_suspicious_activity"

	monitoringPrefix = "monitoring:"
	deniedMessage    = "Access denied."
)

// Publisher hands reports to the asynchronous exporters.
type Publisher interface {
	Publish(report *threat.Report)
}

// Policy turns a threat report into its recommended action.
type Policy struct {
	blocklist blocklist.Manager
	store     cache.Store
	stats     *stats.Recorder
	publisher Publisher
	logger    *logrus.Logger
	alerter   *logger.Alerter
	cfg       config.ResponseConfig
}

func NewPolicy(
	bl blocklist.Manager,
	store cache.Store,
	recorder *stats.Recorder,
	publisher Publisher,
	log *logrus.Logger,
	alerter *logger.Alerter,
	cfg config.ResponseConfig,
) *Policy {
	return &Policy{
		blocklist: bl,
		store:     store,
		stats:     recorder,
		publisher: publisher,
		logger:    log,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Apply records the report and executes its recommended action. The returned
// error is nil or a *types.PluginError denial.
func (p *Policy) Apply(ctx context.Context, report *threat.Report) error {
	if report == nil {
		return nil
	}
	p.record(ctx, report, true)

	switch report.RecommendedAction {
	case threat.ActionBlockImmediately:
		p.ban(ctx, report, p.cfg.CriticalBan, ReasonCritical)
		p.alerter.Critical(logrus.Fields{
			"ip":       report.SourceIP,
			"path":     report.Path,
			"families": report.Families(),
		}, "critical threat blocked")
		return p.deny()
	case threat.ActionBlockAndMonitor:
		p.ban(ctx, report, p.cfg.HighBan, ReasonHigh)
		return p.deny()
	case threat.ActionMonitorClosely:
		p.monitor(ctx, report)
	}
	return nil
}

// Observe records the report without banning or denying.
func (p *Policy) Observe(ctx context.Context, report *threat.Report) {
	if report == nil {
		return
	}
	p.record(ctx, report, false)
}

func (p *Policy) record(ctx context.Context, report *threat.Report, enforced bool) {
	fields := logrus.Fields{
		"trace_id":           report.TraceID,
		"source_ip":          report.SourceIP,
		"user_agent":         report.UserAgent,
		"path":               report.Path,
		"method":             report.Method,
		"severity":           report.Severity.String(),
		"threat_count":       report.ThreatCount,
		"families":           report.Families(),
		"recommended_action": report.RecommendedAction,
		"enforced":           enforced,
	}
	if ua := utils.ParseUserAgent(report.UserAgent); ua != nil {
		fields["client_device"] = ua.Device
		fields["client_os"] = ua.OS
		fields["client_browser"] = ua.Browser
		fields["client_bot"] = ua.Bot
	}
	p.logger.WithFields(fields).Error("security threat detected")

	if p.stats != nil {
		p.stats.Threat(ctx, report)
	}
	if p.publisher != nil {
		p.publisher.Publish(report)
	}
}

func (p *Policy) ban(ctx context.Context, report *threat.Report, duration time.Duration, reason string) {
	if err := p.blocklist.Ban(ctx, report.SourceIP, duration, reason, report.RecommendedAction); err != nil {
		p.logger.WithError(err).WithField("ip", report.SourceIP).Error("failed to ban threat source")
	}
}

func (p *Policy) monitor(ctx context.Context, report *threat.Report) {
	n, err := p.store.IncrSliding(ctx, monitoringPrefix+report.SourceIP, p.cfg.MonitorTTL)
	if err != nil {
		p.logger.WithError(err).WithField("ip", report.SourceIP).Error("failed to update monitoring counter")
		return
	}
	if n <= p.cfg.MonitorThreshold {
		return
	}
	if err := p.blocklist.Ban(ctx, report.SourceIP, p.cfg.MonitorBan, ReasonEscalation, threat.ActionEscalatedMonitor); err != nil {
		p.logger.WithError(err).WithField("ip", report.SourceIP).Error("failed to ban monitored address")
	}
}

func (p *Policy) deny() error {
	return &types.PluginError{
		StatusCode: http.StatusForbidden,
		Message:    deniedMessage,
	}
}
