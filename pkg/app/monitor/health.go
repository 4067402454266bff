package monitor

import (
	"context"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"golang.org/x/sync/errgroup"
)

const (
	StatusActive = "ACTIVE"

	StoreOK          = "ok"
	StoreUnavailable = "unavailable"
)

type Health struct {
	Timestamp          time.Time     `json:"timestamp"`
	DDoSProtection     string        `json:"ddos_protection"`
	RateLimiting       string        `json:"rate_limiting"`
	AdminProtection    string        `json:"admin_protection"`
	EmergencyMode      bool          `json:"emergency_mode"`
	AdminEmergencyMode bool          `json:"admin_emergency_mode"`
	State              posture.State `json:"state"`
	RequestsPerMinute  int64         `json:"requests_per_minute"`
	BlockedIPCount     int           `json:"blocked_ip_count"`
	Store              string        `json:"store"`
}

// Health never fails; an unreachable store is reported in the Store field and
// the counters read as zero.
func (s *service) Health(ctx context.Context) Health {
	h := Health{
		Timestamp:       s.clock().UTC(),
		DDoSProtection:  StatusActive,
		RateLimiting:    StatusActive,
		AdminProtection: StatusActive,
		Store:           StoreOK,
	}

	var snap posture.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.store.Ping(gctx); err != nil {
			s.logger.WithError(err).Warn("state store health check failed")
			h.Store = StoreUnavailable
		}
		return nil
	})
	g.Go(func() error {
		snap = s.posture.Snapshot(gctx)
		return nil
	})
	g.Go(func() error {
		rpm, err := s.rate.Rate(gctx, s.clock())
		if err == nil {
			h.RequestsPerMinute = rpm
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.blocklist.Count(gctx)
		if err == nil {
			h.BlockedIPCount = n
		}
		return nil
	})
	_ = g.Wait()

	h.EmergencyMode = snap.Emergency
	h.AdminEmergencyMode = snap.AdminEmergency
	h.State = snap.State
	return h
}
