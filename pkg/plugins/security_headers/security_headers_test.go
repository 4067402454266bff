package security_headers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/security_headers"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*posture.Machine, *security_headers.Plugin) {
	t.Helper()
	store, err := cache.NewMemoryStore(cache.MemoryStoreOpts{Clock: func() time.Time { return now }})
	require.NoError(t, err)
	machine := posture.NewMachine(store, logrus.New())
	plugin := security_headers.NewSecurityHeadersPlugin(machine, config.Default().Shield, func() time.Time { return now })
	return machine, plugin.(*security_headers.Plugin)
}

func header(resp *types.PluginResponse, name string) string {
	if v := resp.Headers[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func TestSecurityHeaders_Static(t *testing.T) {
	_, plugin := setup(t)
	req := &types.RequestContext{Method: http.MethodGet, Path: "/"}

	resp, err := plugin.Execute(context.Background(), types.PostResponse, req, types.NewResponseContext(context.Background()))
	require.NoError(t, err)

	assert.Equal(t, "nosniff", header(resp, "X-Content-Type-Options"))
	assert.Equal(t, "DENY", header(resp, "X-Frame-Options"))
	assert.Equal(t, "1; mode=block", header(resp, "X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", header(resp, "Referrer-Policy"))
	assert.Equal(t, "geolocation=(), microphone=(), camera=()", header(resp, "Permissions-Policy"))
	assert.Contains(t, header(resp, "Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, security_headers.ProtectionActive, header(resp, common.DDoSProtectionHeader))
}

func TestSecurityHeaders_RateLimitFromRequest(t *testing.T) {
	_, plugin := setup(t)
	req := &types.RequestContext{Method: http.MethodGet, Path: "/"}
	req.SetMetadata(common.MetadataRateLimit, int64(50))
	req.SetMetadata(common.MetadataRateLimitRemaining, int64(12))
	req.SetMetadata(common.MetadataRateLimitReset, int64(1740830460))
	req.SetMetadata(common.MetadataEmergency, false)

	resp, err := plugin.Execute(context.Background(), types.PostResponse, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "50", header(resp, common.RateLimitLimitHeader))
	assert.Equal(t, "12", header(resp, common.RateLimitRemainingHeader))
	assert.Equal(t, "1740830460", header(resp, common.RateLimitResetHeader))
}

func TestSecurityHeaders_RateLimitDefaults(t *testing.T) {
	machine, plugin := setup(t)
	ctx := context.Background()

	resp, err := plugin.Execute(ctx, types.PostResponse, &types.RequestContext{Method: http.MethodPost, Path: "/orders"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "10", header(resp, common.RateLimitLimitHeader))
	assert.Equal(t, "10", header(resp, common.RateLimitRemainingHeader))
	assert.Equal(t, "1740830460", header(resp, common.RateLimitResetHeader))

	require.NoError(t, machine.Activate(ctx, posture.Emergency, 10*time.Minute))
	resp, err = plugin.Execute(ctx, types.PostResponse, &types.RequestContext{Method: http.MethodGet, Path: "/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, security_headers.ProtectionEmergency, header(resp, common.DDoSProtectionHeader))
	assert.Equal(t, "10", header(resp, common.RateLimitLimitHeader))
}
