package ip_reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	ReputationPrefix = "ip_reputation:"
	HistoryPrefix    = "ip_history:"

	manyRequests    = 50
	manyPaths       = 20
	errorRatio      = 0.3
	maliciousPoints = 3
)

// Whitelist matches single addresses and CIDR ranges.
type Whitelist struct {
	ips   map[string]struct{}
	cidrs []*net.IPNet
}

func ParseWhitelist(entries []string) (*Whitelist, error) {
	w := &Whitelist{ips: make(map[string]struct{})}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, n, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR '%s'", entry)
			}
			w.cidrs = append(w.cidrs, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP '%s'", entry)
		}
		w.ips[ip.String()] = struct{}{}
	}
	return w, nil
}

func (w *Whitelist) Contains(ip net.IP) bool {
	if w == nil || ip == nil {
		return false
	}
	if _, ok := w.ips[ip.String()]; ok {
		return true
	}
	for _, n := range w.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Analyzer classifies addresses from their recent response history.
type Analyzer struct {
	store     cache.Store
	logger    *logrus.Logger
	whitelist *Whitelist
	cfg       config.ReputationConfig
	clock     cache.Clock
	group     singleflight.Group
}

func NewAnalyzer(
	store cache.Store,
	logger *logrus.Logger,
	whitelist *Whitelist,
	cfg config.ReputationConfig,
	clock cache.Clock,
) *Analyzer {
	if clock == nil {
		clock = time.Now
	}
	return &Analyzer{
		store:     store,
		logger:    logger,
		whitelist: whitelist,
		cfg:       cfg,
		clock:     clock,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, ip string) threat.Reputation {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return a.result(ip, threat.TierSuspicious, threat.ReasonInvalidIP, 0)
	}
	if parsed.IsPrivate() || parsed.IsLoopback() {
		return a.result(ip, threat.TierTrusted, threat.ReasonPrivate, 0)
	}
	if a.whitelist.Contains(parsed) {
		return a.result(ip, threat.TierTrusted, threat.ReasonWhitelisted, 0)
	}

	if rep, ok := a.cached(ctx, ip); ok {
		return rep
	}

	v, _, _ := a.group.Do(ip, func() (interface{}, error) {
		rep := a.fromHistory(ctx, ip)
		if rep.Reason != threat.ReasonInsufficientData {
			a.cache(ctx, rep)
		}
		return rep, nil
	})
	return v.(threat.Reputation)
}

func (a *Analyzer) result(ip string, tier threat.Tier, reason string, score int) threat.Reputation {
	return threat.Reputation{
		IP:         ip,
		Tier:       tier,
		Reason:     reason,
		Score:      score,
		ComputedAt: a.clock().UTC(),
	}
}

func (a *Analyzer) cached(ctx context.Context, ip string) (threat.Reputation, bool) {
	raw, ok, err := a.store.Get(ctx, ReputationPrefix+ip)
	if err != nil {
		a.logger.WithError(err).WithField("ip", ip).Debug("failed to read cached reputation")
		return threat.Reputation{}, false
	}
	if !ok {
		return threat.Reputation{}, false
	}
	var rep threat.Reputation
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return threat.Reputation{}, false
	}
	return rep, true
}

func (a *Analyzer) cache(ctx context.Context, rep threat.Reputation) {
	data, err := json.Marshal(rep)
	if err != nil {
		return
	}
	if err := a.store.Set(ctx, ReputationPrefix+rep.IP, string(data), a.cfg.CacheTTL); err != nil {
		a.logger.WithError(err).WithField("ip", rep.IP).Debug("failed to cache reputation")
	}
}

// History returns the tracked responses for ip, newest first.
func (a *Analyzer) History(ctx context.Context, ip string) ([]threat.HistoryEntry, error) {
	raw, err := a.store.Range(ctx, HistoryPrefix+ip)
	if err != nil {
		return nil, err
	}
	out := make([]threat.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry threat.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (a *Analyzer) fromHistory(ctx context.Context, ip string) threat.Reputation {
	history, err := a.History(ctx, ip)
	if err != nil {
		a.logger.WithError(err).WithField("ip", ip).Debug("failed to read request history")
	}
	if len(history) < a.cfg.MinHistory {
		return a.result(ip, threat.TierClean, threat.ReasonInsufficientData, 0)
	}
	score := Score(history)
	tier := threat.TierClean
	switch {
	case score >= maliciousPoints:
		tier = threat.TierMalicious
	case score >= 1:
		tier = threat.TierSuspicious
	}
	return a.result(ip, tier, threat.ReasonHistory, score)
}

// Score adds one point for a long history, two for a wide path spread and two
// for a high error ratio.
func Score(history []threat.HistoryEntry) int {
	score := 0
	if len(history) > manyRequests {
		score++
	}
	paths := make(map[string]struct{}, len(history))
	errors := 0
	for _, h := range history {
		paths[h.Path] = struct{}{}
		if h.Status >= 400 {
			errors++
		}
	}
	if len(paths) > manyPaths {
		score += 2
	}
	if float64(errors) > float64(len(history))*errorRatio {
		score += 2
	}
	return score
}

// Record appends one response to the history of ip.
func (a *Analyzer) Record(ctx context.Context, ip, path string, status int) error {
	data, err := json.Marshal(threat.HistoryEntry{
		Path:   path,
		Status: status,
		At:     a.clock().Unix(),
	})
	if err != nil {
		return err
	}
	return a.store.PushBounded(ctx, HistoryPrefix+ip, string(data), a.cfg.HistoryLength, a.cfg.HistoryTTL)
}
