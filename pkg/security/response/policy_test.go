package response_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/response"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publisherStub struct {
	reports []*threat.Report
}

func (p *publisherStub) Publish(report *threat.Report) {
	p.reports = append(p.reports, report)
}

type env struct {
	policy    *response.Policy
	blocklist blocklist.Manager
	store     *cache.MemoryStore
	stats     *stats.Recorder
	published *publisherStub
}

func newEnv(t *testing.T) *env {
	t.Helper()
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store, err := cache.NewMemoryStore(cache.MemoryStoreOpts{Clock: clock})
	require.NoError(t, err)
	log := logrus.New()
	bl := blocklist.NewManager(store, log, blocklist.Opts{Clock: clock})
	rec := stats.NewRecorder(store, log, 0)
	pub := &publisherStub{}
	policy := response.NewPolicy(bl, store, rec, pub, log, logger.NewAlerter(log, 10), config.Default().Shield.Response)
	return &env{policy: policy, blocklist: bl, store: store, stats: rec, published: pub}
}

func report(ip string, findings ...threat.Finding) *threat.Report {
	return threat.NewReport(findings, threat.RequestMeta{SourceIP: ip, Path: "/", Method: http.MethodGet}, time.Now())
}

func (e *env) banTTL(t *testing.T, ip string) time.Duration {
	t.Helper()
	ttl, err := e.store.TTL(context.Background(), blocklist.KeyPrefix+ip)
	require.NoError(t, err)
	return ttl
}

func TestPolicy_Actions(t *testing.T) {
	tests := []struct {
		name     string
		severity threat.Severity
		denied   bool
		ban      time.Duration
	}{
		{name: "critical", severity: threat.SeverityCritical, denied: true, ban: 86400 * time.Second},
		{name: "high", severity: threat.SeverityHigh, denied: true, ban: 3600 * time.Second},
		{name: "medium", severity: threat.SeverityMedium},
		{name: "low", severity: threat.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			r := report("198.51.100.20", threat.Finding{Family: "test", Severity: tt.severity})

			err := e.policy.Apply(context.Background(), r)
			if tt.denied {
				var denial *types.PluginError
				require.ErrorAs(t, err, &denial)
				assert.Equal(t, http.StatusForbidden, denial.StatusCode)
				assert.Equal(t, "Access denied.", denial.Message)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.ban, e.banTTL(t, "198.51.100.20"))
			assert.Len(t, e.published.reports, 1)
			assert.Equal(t, int64(1), e.stats.Summary(context.Background()).ThreatsDetected)
		})
	}
}

func TestPolicy_CriticalBanCarriesAction(t *testing.T) {
	e := newEnv(t)
	r := report("198.51.100.21", threat.Finding{Family: "rat_patterns", Kind: threat.KindTrojan, Severity: threat.SeverityCritical})
	require.Error(t, e.policy.Apply(context.Background(), r))

	entry, err := e.blocklist.Get(context.Background(), "198.51.100.21")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, threat.ActionBlockImmediately, entry.Action)
	assert.Equal(t, response.ReasonCritical, entry.Reason)
}

func TestPolicy_MonitorEscalation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ip := "198.51.100.22"
	for i := 1; i <= 5; i++ {
		assert.NoError(t, e.policy.Apply(ctx, report(ip, threat.Finding{Family: "stealer_keywords", Severity: threat.SeverityMedium})))
		assert.False(t, e.blocklist.IsBanned(ctx, ip), "request %d", i)
	}

	// the sixth request still passes but the address is banned afterwards
	assert.NoError(t, e.policy.Apply(ctx, report(ip, threat.Finding{Family: "stealer_keywords", Severity: threat.SeverityMedium})))
	assert.True(t, e.blocklist.IsBanned(ctx, ip))
	assert.Equal(t, 1800*time.Second, e.banTTL(t, ip))
}

func TestPolicy_ObserveNeverBans(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := report("198.51.100.23", threat.Finding{Family: "webshells", Severity: threat.SeverityCritical})

	e.policy.Observe(ctx, r)
	assert.False(t, e.blocklist.IsBanned(ctx, "198.51.100.23"))
	assert.Len(t, e.published.reports, 1)
	assert.NoError(t, e.policy.Apply(ctx, nil))
}
