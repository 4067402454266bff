package monitor

import (
	"context"
	"strconv"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/geoip"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/admin_guard"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"golang.org/x/sync/errgroup"
)

const (
	AttackVolumetric       = "volumetric"
	AttackDistributed      = "distributed"
	AttackApplicationLayer = "application_layer"

	volumetricRPM          = 500
	applicationAttempts    = 10
	adminHardeningAttempts = 5
)

type ReportSummary struct {
	stats.Summary
	ActiveBans int `json:"active_bans"`
}

type Report struct {
	ReportID           string                `json:"report_id"`
	GeneratedAt        time.Time             `json:"generated_at"`
	Period             string                `json:"period"`
	State              posture.State         `json:"state"`
	Summary            ReportSummary         `json:"summary"`
	ActiveThreats      []threat.ActiveThreat `json:"active_threats"`
	TopAttackTypes     []stats.AttackType    `json:"top_attack_types"`
	Recommendations    []string              `json:"recommendations"`
	GeographicAnalysis map[string]int        `json:"geographic_analysis,omitempty"`
}

// Report assembles a point-in-time snapshot from the store. Each section is
// read independently; a failing section is left empty.
func (s *service) Report(ctx context.Context) (*Report, error) {
	now := s.clock()
	r := &Report{
		ReportID:    "SEC-" + now.UTC().Format("20060102-150405"),
		GeneratedAt: now.UTC(),
		Period:      "24_hours",
	}

	snap := s.posture.Snapshot(ctx)
	r.State = snap.State

	var (
		rpm            int64
		adminAttempts  int64
		familyCounters []stats.AttackType
		bans           []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.Summary.Summary = s.stats.Summary(gctx)
		return nil
	})
	g.Go(func() error {
		threats, err := s.activeThreats(gctx, snap)
		if err != nil {
			s.logger.WithError(err).Warn("failed to list active threats")
		}
		r.ActiveThreats = threats
		return nil
	})
	g.Go(func() error {
		n, err := s.rate.Rate(gctx, now)
		if err == nil {
			rpm = n
		}
		return nil
	})
	g.Go(func() error {
		adminAttempts = s.counter(gctx, admin_guard.GlobalAttemptsKey)
		return nil
	})
	g.Go(func() error {
		types, err := s.stats.AttackTypes(gctx)
		if err != nil {
			s.logger.WithError(err).Warn("failed to read attack type counters")
		}
		familyCounters = types
		return nil
	})
	g.Go(func() error {
		entries, err := s.blocklist.List(gctx)
		if err != nil {
			s.logger.WithError(err).Warn("failed to list bans")
			return nil
		}
		bans = make([]string, 0, len(entries))
		for _, e := range entries {
			bans = append(bans, e.IP)
		}
		return nil
	})
	_ = g.Wait()

	r.Summary.ActiveBans = len(bans)
	r.TopAttackTypes = attackTypes(rpm, snap.Emergency, adminAttempts, familyCounters)
	r.Recommendations = recommendations(snap, adminAttempts, r.TopAttackTypes)
	if s.locator != nil {
		r.GeographicAnalysis = geoip.CountByCountry(s.locator, bans)
	}
	return r, nil
}

func (s *service) counter(ctx context.Context, key string) int64 {
	raw, found, err := s.store.Get(ctx, key)
	if err != nil || !found {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func attackTypes(rpm int64, emergency bool, adminAttempts int64, families []stats.AttackType) []stats.AttackType {
	out := []stats.AttackType{}
	if rpm > volumetricRPM {
		out = append(out, stats.AttackType{Type: AttackVolumetric, Count: rpm})
	}
	if emergency {
		out = append(out, stats.AttackType{Type: AttackDistributed, Count: 1})
	}
	if adminAttempts > applicationAttempts {
		out = append(out, stats.AttackType{Type: AttackApplicationLayer, Count: adminAttempts})
	}
	return append(out, families...)
}

func recommendations(snap posture.Snapshot, adminAttempts int64, types []stats.AttackType) []string {
	var out []string
	if snap.Emergency {
		out = append(out,
			"CRITICAL: Implement emergency protocols",
			"Consider activating upstream DDoS protection",
			"Temporarily block non-essential traffic",
			"Notify hosting provider of ongoing attack",
		)
	}
	if snap.AdminEmergency || adminAttempts > adminHardeningAttempts {
		out = append(out,
			"Strengthen admin authentication (2FA, IP whitelist)",
			"Consider moving admin panel to non-standard URL",
			"Implement admin access time restrictions",
		)
	}
	for _, t := range types {
		switch t.Type {
		case AttackVolumetric:
			out = append(out, "Lower the global request threshold or add upstream caching")
		case "sql_injection", "xss_patterns", "command_injection", "directory_traversal", "webshells":
			out = append(out, "Review input validation for "+t.Type+" attempts")
		case "rat_patterns", "exfiltration", "crypto_miners", "info_stealers":
			out = append(out, "Audit hosts for compromise indicators ("+t.Type+")")
		}
	}
	return append(out,
		"Regularly update DDoS protection rules",
		"Monitor traffic patterns for anomalies",
		"Maintain updated IP reputation databases",
		"Consider implementing CAPTCHA for suspicious requests",
	)
}
