package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/geoip"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/global_attack"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/sirupsen/logrus"
)

const ReasonManual = "manual"

var (
	ErrInvalidIP       = errors.New("invalid ip address")
	ErrInvalidDuration = errors.New("duration must be a positive number of seconds")
)

//go:generate mockery --name=Service --dir=. --output=./mocks --filename=monitor_service_mock.go --case=underscore
type Service interface {
	Block(ctx context.Context, ip string, seconds int) (*blocklist.Entry, error)
	Unblock(ctx context.Context, ip string) error
	Health(ctx context.Context) Health
	Report(ctx context.Context) (*Report, error)
	Analyze(ctx context.Context) ([]threat.ActiveThreat, error)
	ClearEmergency(ctx context.Context, flag posture.Flag) error
	ClearBlocks(ctx context.Context) (int, error)
	Stats(ctx context.Context) stats.Summary
}

type Opts struct {
	// Locator is optional; without it the report has no geographic section.
	Locator geoip.Locator
	Clock   cache.Clock
}

type service struct {
	store     cache.Store
	blocklist blocklist.Manager
	posture   *posture.Machine
	stats     *stats.Recorder
	rate      *global_attack.RateCounter
	locator   geoip.Locator
	logger    *logrus.Logger
	clock     cache.Clock
}

func NewService(
	store cache.Store,
	bl blocklist.Manager,
	machine *posture.Machine,
	recorder *stats.Recorder,
	rate *global_attack.RateCounter,
	logger *logrus.Logger,
	opts Opts,
) Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &service{
		store:     store,
		blocklist: bl,
		posture:   machine,
		stats:     recorder,
		rate:      rate,
		locator:   opts.Locator,
		logger:    logger,
		clock:     opts.Clock,
	}
}

func normalizeIP(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	return parsed.String(), nil
}

func (s *service) Block(ctx context.Context, ip string, seconds int) (*blocklist.Entry, error) {
	addr, err := normalizeIP(ip)
	if err != nil {
		return nil, err
	}
	if seconds <= 0 {
		return nil, ErrInvalidDuration
	}
	if err := s.blocklist.Ban(ctx, addr, time.Duration(seconds)*time.Second, ReasonManual, threat.ActionManualBlock); err != nil {
		return nil, fmt.Errorf("failed to block %s: %w", addr, err)
	}
	s.logger.WithFields(logrus.Fields{
		"ip":      addr,
		"seconds": seconds,
	}).Warn("address blocked by operator")
	return s.blocklist.Get(ctx, addr)
}

func (s *service) Unblock(ctx context.Context, ip string) error {
	addr, err := normalizeIP(ip)
	if err != nil {
		return err
	}
	if err := s.blocklist.Unban(ctx, addr); err != nil {
		return err
	}
	s.logger.WithField("ip", addr).Info("address unblocked by operator")
	return nil
}

func (s *service) ClearEmergency(ctx context.Context, flag posture.Flag) error {
	if err := s.posture.Clear(ctx, flag); err != nil {
		return err
	}
	s.logger.WithField("flag", flag).Warn("emergency flag cleared by operator")
	return nil
}

func (s *service) ClearBlocks(ctx context.Context) (int, error) {
	n, err := s.blocklist.Clear(ctx)
	if err != nil {
		return n, err
	}
	s.logger.WithField("cleared", n).Warn("blocklist cleared by operator")
	return n, nil
}

func (s *service) Stats(ctx context.Context) stats.Summary {
	return s.stats.Summary(ctx)
}
