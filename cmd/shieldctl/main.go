package main

import (
	"fmt"
	"os"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/geoip"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/global_attack"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(envFile())
	if err := newRootCmd(connect).Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envFile() string {
	if f := os.Getenv("ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

// connect opens the state store the shield servers share and builds the
// operator service on top of it.
func connect(configDir string) (monitor.Service, func(), error) {
	if err := config.Load(configDir); err != nil {
		return nil, nil, err
	}
	cfg := config.GetConfig()
	log := logger.NewConsoleLogger()

	store, closeStore, err := cache.NewStore(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to state store: %w", err)
	}
	closers := []func(){closeStore}

	var locator geoip.Locator
	if cfg.GeoIP.CountryDB != "" {
		if loc, err := geoip.Open(cfg.GeoIP.CountryDB); err != nil {
			log.WithError(err).Warn("geoip database unavailable")
		} else {
			locator = loc
			closers = append(closers, func() { _ = loc.Close() })
		}
	}

	svc := monitor.NewService(
		store,
		blocklist.NewManager(store, log, blocklist.Opts{}),
		posture.NewMachine(store, log),
		stats.NewRecorder(store, log, cfg.Shield.Response.StatsTTL),
		global_attack.NewRateCounter(store, cfg.Shield.Global.Window),
		log,
		monitor.Opts{Locator: locator},
	)
	return svc, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
