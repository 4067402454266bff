package blocklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/event"
	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const KeyPrefix = "blocked_ip:"

var ErrInvalidDuration = errors.New("ban duration must be positive")

// Entry is a temporary ban. There is no permanent variant.
type Entry struct {
	IP        string        `json:"ip"`
	Reason    string        `json:"reason"`
	Action    threat.Action `json:"action"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type Opts struct {
	LocalCacheTTL  time.Duration
	LocalCacheSize int
	Clock          cache.Clock
	// Publisher announces unbans to peer processes. Nil on single-node setups.
	Publisher cache.EventPublisher
}

//go:generate mockery --name=Manager --dir=. --output=./mocks --filename=blocklist_mock.go --case=underscore --with-expecter
type Manager interface {
	Ban(ctx context.Context, ip string, duration time.Duration, reason string, action threat.Action) error
	IsBanned(ctx context.Context, ip string) bool
	Unban(ctx context.Context, ip string) error
	Get(ctx context.Context, ip string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
	ForgetLocal(ip string)
	PurgeLocal()
}

type manager struct {
	store     cache.Store
	logger    *logrus.Logger
	local     *expirable.LRU[string, time.Time]
	clock     cache.Clock
	publisher cache.EventPublisher
}

// NewManager returns the single blocklist for the process. The store is the
// source of truth; the local LRU only remembers recent positive answers so a
// banned client hammering the proxy does not cost a store round trip each.
func NewManager(store cache.Store, logger *logrus.Logger, opts Opts) Manager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LocalCacheSize <= 0 {
		opts.LocalCacheSize = 10_000
	}
	m := &manager{
		store:     store,
		logger:    logger,
		clock:     opts.Clock,
		publisher: opts.Publisher,
	}
	if opts.LocalCacheTTL > 0 {
		m.local = expirable.NewLRU[string, time.Time](opts.LocalCacheSize, nil, opts.LocalCacheTTL)
	}
	return m
}

func key(ip string) string {
	return KeyPrefix + ip
}

func (m *manager) Ban(
	ctx context.Context,
	ip string,
	duration time.Duration,
	reason string,
	action threat.Action,
) error {
	if duration <= 0 {
		return ErrInvalidDuration
	}
	now := m.clock()
	entry := Entry{
		IP:        ip,
		Reason:    reason,
		Action:    action,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(duration).UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ban entry: %w", err)
	}
	if err := m.store.Set(ctx, key(ip), string(data), duration); err != nil {
		m.logger.WithError(err).WithField("ip", ip).Error("failed to write ban")
		return err
	}
	if m.local != nil {
		m.local.Add(ip, entry.ExpiresAt)
	}
	prometheus.BansTotal.WithLabelValues(reason).Inc()
	m.logger.WithFields(logrus.Fields{
		"ip":       ip,
		"reason":   reason,
		"action":   action,
		"duration": int(duration.Seconds()),
	}).Warn("address banned")
	return nil
}

func (m *manager) IsBanned(ctx context.Context, ip string) bool {
	if m.local != nil {
		if expiresAt, ok := m.local.Get(ip); ok {
			if m.clock().Before(expiresAt) {
				return true
			}
			m.local.Remove(ip)
		}
	}
	raw, found, err := m.store.Get(ctx, key(ip))
	if err != nil {
		m.logger.WithError(err).WithField("ip", ip).Error("blocklist lookup failed, allowing request")
		return false
	}
	if !found {
		return false
	}
	if m.local != nil {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err == nil && !entry.ExpiresAt.IsZero() {
			m.local.Add(ip, entry.ExpiresAt)
		}
	}
	return true
}

func (m *manager) Unban(ctx context.Context, ip string) error {
	m.ForgetLocal(ip)
	if err := m.store.Delete(ctx, key(ip)); err != nil {
		return fmt.Errorf("failed to unban %s: %w", ip, err)
	}
	m.publish(ctx, event.BanLiftedEvent{IP: ip})
	return nil
}

// ForgetLocal drops ip from the local ban cache only.
func (m *manager) ForgetLocal(ip string) {
	if m.local != nil {
		m.local.Remove(ip)
	}
}

func (m *manager) PurgeLocal() {
	if m.local != nil {
		m.local.Purge()
	}
}

func (m *manager) publish(ctx context.Context, ev event.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.WithError(err).WithField("event", ev.Type()).Warn("failed to publish blocklist event")
	}
}

func (m *manager) Get(ctx context.Context, ip string) (*Entry, error) {
	raw, found, err := m.store.Get(ctx, key(ip))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// legacy or foreign value; the key alone still means banned
		entry = Entry{IP: ip, Reason: "unknown"}
	}
	return &entry, nil
}

func (m *manager) List(ctx context.Context) ([]Entry, error) {
	keys, err := m.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entry, err := m.Get(ctx, strings.TrimPrefix(k, KeyPrefix))
		if err != nil {
			m.logger.WithError(err).WithField("key", k).Warn("failed to read ban entry")
			continue
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (m *manager) Count(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (m *manager) Clear(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, k := range keys {
		if err := m.store.Delete(ctx, k); err != nil {
			return cleared, fmt.Errorf("failed to clear %s: %w", k, err)
		}
		cleared++
	}
	m.PurgeLocal()
	m.publish(ctx, event.BansClearedEvent{Cleared: cleared})
	return cleared, nil
}
