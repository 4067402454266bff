package monitor

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
)

const (
	ThreatDistributed  = "distributed_attack"
	ThreatAdminTargets = "admin_targeted_attack"
	ThreatBlockedIP    = "blocked_source"
)

// Analyze lists the posture flags that are up and every ban produced by a
// high or critical threat report.
func (s *service) Analyze(ctx context.Context) ([]threat.ActiveThreat, error) {
	snap := s.posture.Snapshot(ctx)
	return s.activeThreats(ctx, snap)
}

func (s *service) activeThreats(ctx context.Context, snap posture.Snapshot) ([]threat.ActiveThreat, error) {
	out := []threat.ActiveThreat{}
	if snap.Emergency {
		out = append(out, threat.ActiveThreat{
			Type:        ThreatDistributed,
			Severity:    threat.SeverityCritical,
			Description: "Emergency mode activated due to distributed attack",
			Mitigation:  "Global rate limiting in effect",
			ExpiresIn:   int64(snap.EmergencyTTL.Seconds()),
		})
	}
	if snap.AdminEmergency {
		out = append(out, threat.ActiveThreat{
			Type:        ThreatAdminTargets,
			Severity:    threat.SeverityHigh,
			Description: "Multiple admin login attempts detected",
			Mitigation:  "Admin login restricted",
			ExpiresIn:   int64(snap.AdminTTL.Seconds()),
		})
	}

	entries, err := s.blocklist.List(ctx)
	if err != nil {
		return out, err
	}
	now := s.clock()
	for _, e := range entries {
		if !e.Action.IsActiveThreat() {
			continue
		}
		sev := threat.SeverityHigh
		if e.Action == threat.ActionBlockImmediately {
			sev = threat.SeverityCritical
		}
		var expiresIn int64
		if !e.ExpiresAt.IsZero() && e.ExpiresAt.After(now) {
			expiresIn = int64(e.ExpiresAt.Sub(now).Seconds())
		}
		out = append(out, threat.ActiveThreat{
			Type:        ThreatBlockedIP,
			Severity:    sev,
			SourceIP:    e.IP,
			Description: fmt.Sprintf("Address blocked: %s", e.Reason),
			Mitigation:  "Access denied",
			ExpiresIn:   expiresIn,
		})
	}
	return out, nil
}
