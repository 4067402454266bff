package dependency_container

import (
	"fmt"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	handlers "github.com/NeuralTrust/TrustShield/pkg/handlers/http"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/event"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/subscriber"
	"github.com/NeuralTrust/TrustShield/pkg/infra/geoip"
	"github.com/NeuralTrust/TrustShield/pkg/infra/jwt"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/infra/metrics"
	infraTelemetry "github.com/NeuralTrust/TrustShield/pkg/infra/telemetry"
	"github.com/NeuralTrust/TrustShield/pkg/infra/telemetry/kafka"
	"github.com/NeuralTrust/TrustShield/pkg/middleware"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/plugins"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/admin_guard"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/anomaly_detector"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/global_attack"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/ip_blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/ip_reputation"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/rate_limiter"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/security_headers"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/suspicious_request"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/threat_scanner"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/security/response"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/sirupsen/logrus"
)

type Container struct {
	Store               cache.Store
	EventListener       cache.EventListener
	Blocklist           blocklist.Manager
	Posture             *posture.Machine
	Stats               *stats.Recorder
	RateCounter         *global_attack.RateCounter
	ResponsePolicy      *response.Policy
	PluginManager       plugins.Manager
	AdminGuard          *admin_guard.Plugin
	MonitorService      monitor.Service
	MetricsWorker       metrics.Worker
	JWTManager          jwt.Manager
	StaffJWTManager     jwt.Manager
	Locator             geoip.Locator
	Alerter             *logger.Alerter
	MiddlewareTransport middleware.Transport
	HandlerTransport    handlers.HandlerTransport

	closers []func()
}

type ContainerDI struct {
	Cfg    *config.Config
	Logger *logrus.Logger
	// Store replaces the configured backend when set.
	Store cache.Store
	// ExporterLocator replaces the default locator (kafka only) when set.
	ExporterLocator *infraTelemetry.ExporterLocator
}

func NewContainer(di ContainerDI) (*Container, error) {
	c := &Container{}

	store := di.Store
	if store == nil {
		var (
			closeStore func()
			err        error
		)
		store, closeStore, err = cache.NewStore(di.Cfg, di.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize state store: %w", err)
		}
		c.closers = append(c.closers, closeStore)
	}
	c.Store = store

	var publisher cache.EventPublisher
	if di.Store == nil {
		pub, listener, closeBus, err := cache.NewEventBus(di.Cfg, di.Logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize event bus: %w", err)
		}
		c.closers = append(c.closers, closeBus)
		publisher, c.EventListener = pub, listener
	}

	shieldCfg := di.Cfg.Shield
	c.Alerter = logger.NewAlerter(di.Logger, shieldCfg.AlertsPerSec)
	c.Blocklist = blocklist.NewManager(store, di.Logger, blocklist.Opts{
		LocalCacheTTL: shieldCfg.LocalCacheTTL,
		Publisher:     publisher,
	})
	if c.EventListener != nil {
		cache.RegisterEventSubscriber[event.BanLiftedEvent](
			c.EventListener,
			subscriber.NewBanLiftedEventSubscriber(di.Logger, c.Blocklist),
		)
		cache.RegisterEventSubscriber[event.BansClearedEvent](
			c.EventListener,
			subscriber.NewBansClearedEventSubscriber(di.Logger, c.Blocklist),
		)
	}
	c.Posture = posture.NewMachine(store, di.Logger)
	c.Stats = stats.NewRecorder(store, di.Logger, shieldCfg.Response.StatsTTL)
	c.RateCounter = global_attack.NewRateCounter(store, shieldCfg.Global.Window)

	// telemetry
	locator := di.ExporterLocator
	if locator == nil {
		locator = infraTelemetry.NewExporterLocator(
			infraTelemetry.WithExporter(kafka.ExporterName, kafka.NewKafkaExporter()),
		)
	}
	exporters, err := locator.Build(di.Cfg.Telemetry.Exporters)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.MetricsWorker = metrics.NewWorker(di.Logger, exporters)

	c.ResponsePolicy = response.NewPolicy(
		c.Blocklist,
		store,
		c.Stats,
		c.MetricsWorker,
		di.Logger,
		c.Alerter,
		shieldCfg.Response,
	)

	whitelist, err := ip_reputation.ParseWhitelist(shieldCfg.Whitelist)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("invalid whitelist: %w", err)
	}
	analyzer := ip_reputation.NewAnalyzer(store, di.Logger, whitelist, shieldCfg.Reputation, nil)

	pluginManager := plugins.NewManager(di.Logger)
	pipeline := []pluginiface.Plugin{
		ip_blocklist.NewIPBlocklistPlugin(c.Blocklist, di.Logger),
		threat_scanner.NewThreatScannerPlugin(store, c.ResponsePolicy, di.Logger, shieldCfg.Scanner, nil),
		ip_reputation.NewIPReputationPlugin(analyzer, c.Blocklist, di.Logger, shieldCfg.Reputation.BanDuration),
		anomaly_detector.NewAnomalyDetectorPlugin(di.Logger, c.Alerter, store, c.Blocklist, shieldCfg, nil),
		global_attack.NewGlobalAttackPlugin(store, c.Posture, c.Alerter, di.Logger, shieldCfg.Global, nil),
		rate_limiter.NewRateLimiterPlugin(store, c.Posture, di.Logger, shieldCfg, nil),
		suspicious_request.NewSuspiciousRequestPlugin(store, c.Blocklist, di.Logger, shieldCfg),
		security_headers.NewSecurityHeadersPlugin(c.Posture, shieldCfg, nil),
	}
	for _, p := range pipeline {
		if err := pluginManager.RegisterPlugin(p); err != nil {
			c.Close()
			return nil, err
		}
	}
	if err := pluginManager.SetProfile(shieldCfg.Profile); err != nil {
		c.Close()
		return nil, err
	}
	c.PluginManager = pluginManager
	c.AdminGuard = admin_guard.NewAdminGuardPlugin(store, c.Posture, c.Alerter, di.Logger, shieldCfg)

	if path := di.Cfg.GeoIP.CountryDB; path != "" {
		loc, err := geoip.Open(path)
		if err != nil {
			di.Logger.WithError(err).WithField("path", path).Warn("geoip database unavailable, reports will have no geographic section")
		} else {
			c.Locator = loc
			c.closers = append(c.closers, func() { _ = loc.Close() })
		}
	}

	c.MonitorService = monitor.NewService(
		store,
		c.Blocklist,
		c.Posture,
		c.Stats,
		c.RateCounter,
		di.Logger,
		monitor.Opts{Locator: c.Locator},
	)

	c.JWTManager = jwt.NewJwtManager(di.Cfg.Server.SecretKey)
	c.StaffJWTManager = jwt.NewJwtManager(shieldCfg.StaffSecret)

	c.MiddlewareTransport = middleware.Transport{
		PanicRecoverMiddleware: middleware.NewPanicRecoverMiddleware(di.Logger),
		FingerprintMiddleware:  middleware.NewFingerPrintMiddleware(di.Logger),
		MetricsMiddleware:      middleware.NewMetricsMiddleware(di.Logger, c.MetricsWorker),
		ShieldMiddleware: middleware.NewShieldMiddleware(di.Logger, pluginManager, middleware.ShieldOpts{
			AdminGuard: c.AdminGuard,
			Jwt:        c.StaffJWTManager,
			Stats:      c.Stats,
		}),
		AdminAuthMiddleware: middleware.NewAdminAuthMiddleware(di.Logger, c.JWTManager),
	}

	c.HandlerTransport = handlers.HandlerTransport{
		ForwardedHandler: handlers.NewForwardedHandler(di.Logger, di.Cfg.Server.Upstream),

		BlockHandler:       handlers.NewBlockHandler(di.Logger, c.MonitorService),
		UnblockHandler:     handlers.NewUnblockHandler(di.Logger, c.MonitorService),
		ClearBlocksHandler: handlers.NewClearBlocksHandler(di.Logger, c.MonitorService),

		HealthHandler:  handlers.NewHealthHandler(c.MonitorService),
		ReportHandler:  handlers.NewReportHandler(di.Logger, c.MonitorService),
		ThreatsHandler: handlers.NewThreatsHandler(di.Logger, c.MonitorService),
		StatsHandler:   handlers.NewStatsHandler(c.MonitorService),

		ClearEmergencyHandler: handlers.NewClearEmergencyHandler(di.Logger, c.MonitorService),

		GetVersionHandler: handlers.NewGetVersionHandler(di.Logger),
	}

	return c, nil
}

// Close stops the metrics workers and releases the store and geoip database.
func (c *Container) Close() {
	if c.MetricsWorker != nil {
		c.MetricsWorker.Shutdown()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
