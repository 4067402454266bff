package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	now := time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC)
	store, err := cache.NewMemoryStore(cache.MemoryStoreOpts{Clock: func() time.Time { return now }})
	require.NoError(t, err)
	rec := stats.NewRecorder(store, logrus.New(), 24*time.Hour)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		rec.Request(ctx)
	}
	rec.Blocked(ctx)
	rec.Threat(ctx, &threat.Report{Threats: []threat.Finding{
		{Family: "sql_injection"},
		{Family: "sql_injection"},
		{Family: "xss_patterns"},
	}})
	rec.Threat(ctx, &threat.Report{Threats: []threat.Finding{{Family: "sql_injection"}}})

	assert.Equal(t, stats.Summary{TotalRequests: 4, BlockedRequests: 1, ThreatsDetected: 2}, rec.Summary(ctx))

	types, err := rec.AttackTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []stats.AttackType{
		{Type: "sql_injection", Count: 2},
		{Type: "xss_patterns", Count: 1},
	}, types)

	now = now.Add(24 * time.Hour)
	assert.Equal(t, stats.Summary{}, rec.Summary(ctx))
}
