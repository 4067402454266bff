package posture

import (
	"context"
	"fmt"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
)

// Flag is one process-wide defensive switch. Flags are independent; each
// returns to normal on its own when its TTL runs out.
type Flag string

const (
	Emergency      Flag = "emergency_mode"
	AdminEmergency Flag = "admin_emergency_mode"
)

// State names the combination of active flags.
type State string

const (
	StateNormal            State = "NORMAL"
	StateEmergency         State = "EMERGENCY"
	StateAdminEmergency    State = "ADMIN_EMERGENCY"
	StateEmergencyAndAdmin State = "EMERGENCY+ADMIN_EMERGENCY"
)

func ParseFlag(name string) (Flag, error) {
	switch name {
	case "emergency", string(Emergency):
		return Emergency, nil
	case "admin", "admin_emergency", string(AdminEmergency):
		return AdminEmergency, nil
	}
	return "", fmt.Errorf("unknown emergency flag %q", name)
}

type Snapshot struct {
	State          State         `json:"state"`
	Emergency      bool          `json:"emergency_mode"`
	AdminEmergency bool          `json:"admin_emergency_mode"`
	EmergencyTTL   time.Duration `json:"-"`
	AdminTTL       time.Duration `json:"-"`
}

// Machine reads and moves the posture flags. The only transitions are
// Activate (set with TTL), natural expiry and Clear.
type Machine struct {
	store  cache.Store
	logger *logrus.Logger
}

func NewMachine(store cache.Store, logger *logrus.Logger) *Machine {
	return &Machine{store: store, logger: logger}
}

func (m *Machine) Activate(ctx context.Context, flag Flag, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("posture flag %s requires a positive ttl", flag)
	}
	if err := m.store.Set(ctx, string(flag), "1", ttl); err != nil {
		m.logger.WithError(err).WithField("flag", flag).Error("failed to activate posture flag")
		return err
	}
	observe(flag, true)
	return nil
}

func (m *Machine) Clear(ctx context.Context, flag Flag) error {
	if err := m.store.Delete(ctx, string(flag)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", flag, err)
	}
	observe(flag, false)
	return nil
}

// Active fails open: a store error reads as inactive and leaves the gauge as
// last observed. Every successful read refreshes the gauge, so natural expiry
// shows up on the next check.
func (m *Machine) Active(ctx context.Context, flag Flag) bool {
	_, found, err := m.store.Get(ctx, string(flag))
	if err != nil {
		m.logger.WithError(err).WithField("flag", flag).Error("failed to read posture flag")
		return false
	}
	observe(flag, found)
	return found
}

func observe(flag Flag, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	prometheus.EmergencyMode.WithLabelValues(string(flag)).Set(v)
}

func (m *Machine) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		Emergency:      m.Active(ctx, Emergency),
		AdminEmergency: m.Active(ctx, AdminEmergency),
	}
	if snap.Emergency {
		snap.EmergencyTTL, _ = m.store.TTL(ctx, string(Emergency))
	}
	if snap.AdminEmergency {
		snap.AdminTTL, _ = m.store.TTL(ctx, string(AdminEmergency))
	}
	snap.State = StateOf(snap.Emergency, snap.AdminEmergency)
	return snap
}

func StateOf(emergency, adminEmergency bool) State {
	switch {
	case emergency && adminEmergency:
		return StateEmergencyAndAdmin
	case emergency:
		return StateEmergency
	case adminEmergency:
		return StateAdminEmergency
	default:
		return StateNormal
	}
}
