package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/jwt"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/middleware"
	"github.com/NeuralTrust/TrustShield/pkg/plugins"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/admin_guard"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/ip_blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/rate_limiter"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/security_headers"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staffSecret = "staff-secret"

type shieldFixture struct {
	app       *fiber.App
	store     *cache.MemoryStore
	blocklist blocklist.Manager
	posture   *posture.Machine
	stats     *stats.Recorder
	manager   plugins.Manager
	reached   int
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newShieldFixture(t *testing.T, profile string) *shieldFixture {
	t.Helper()
	log := quietLogger()
	store, err := cache.NewMemoryStore(cache.MemoryStoreOpts{Capacity: 1000})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	cfg := config.Default().Shield
	cfg.RateLimit.DefaultLimit = 3

	f := &shieldFixture{
		store:     store,
		blocklist: blocklist.NewManager(store, log, blocklist.Opts{}),
		posture:   posture.NewMachine(store, log),
		stats:     stats.NewRecorder(store, log, time.Hour),
		manager:   plugins.NewManager(log),
	}
	require.NoError(t, f.manager.RegisterPlugin(ip_blocklist.NewIPBlocklistPlugin(f.blocklist, log)))
	require.NoError(t, f.manager.RegisterPlugin(rate_limiter.NewRateLimiterPlugin(store, f.posture, log, cfg, nil)))
	require.NoError(t, f.manager.RegisterPlugin(security_headers.NewSecurityHeadersPlugin(f.posture, cfg, nil)))
	require.NoError(t, f.manager.SetProfile(profile))

	guard := admin_guard.NewAdminGuardPlugin(store, f.posture, logger.NewAlerter(log, 0), log, cfg)

	f.app = fiber.New()
	f.app.Use(
		middleware.NewFingerPrintMiddleware(log).Middleware(),
		middleware.NewShieldMiddleware(log, f.manager, middleware.ShieldOpts{
			AdminGuard: guard,
			Jwt:        jwt.NewJwtManager(staffSecret),
			Stats:      f.stats,
		}).Middleware(),
	)
	f.app.Use(func(c *fiber.Ctx) error {
		f.reached++
		req, ok := c.Locals(common.RequestContextKey).(*types.RequestContext)
		if ok {
			c.Set("X-Seen-Path", req.Path)
		}
		return c.SendString("ok")
	})
	return f
}

func (f *shieldFixture) do(t *testing.T, method, path, ip string, mutate ...func(r *http.Request)) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-For", ip)
	for _, m := range mutate {
		m(req)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestShield_PassesAndInjectsHeaders(t *testing.T) {
	f := newShieldFixture(t, plugins.ProfileDDoSProtection)

	resp := f.do(t, "GET", "/products/1", "198.51.100.10")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, f.reached)
	assert.Equal(t, "3", resp.Header.Get(common.RateLimitLimitHeader))
	assert.Equal(t, "2", resp.Header.Get(common.RateLimitRemainingHeader))
	assert.Equal(t, security_headers.ProtectionActive, resp.Header.Get(common.DDoSProtectionHeader))
	assert.Equal(t, "/products/1", resp.Header.Get("X-Seen-Path"))
	assert.NotEmpty(t, resp.Header.Get(common.TraceIDHeader))
}

func TestShield_BannedAddress(t *testing.T) {
	f := newShieldFixture(t, plugins.ProfileDDoSProtection)
	require.NoError(t, f.blocklist.Ban(context.Background(), "203.0.113.9", time.Hour, "test", threat.ActionManualBlock))

	resp := f.do(t, "GET", "/", "203.0.113.9")
	assert.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, 0, f.reached)
	assert.Empty(t, resp.Header.Get(common.DDoSProtectionHeader))

	summary := f.stats.Summary(context.Background())
	assert.Equal(t, int64(1), summary.TotalRequests)
	assert.Equal(t, int64(1), summary.BlockedRequests)
}

func TestShield_RateLimitRetryAfter(t *testing.T) {
	f := newShieldFixture(t, plugins.ProfileDDoSProtection)

	for i := 0; i < 3; i++ {
		resp := f.do(t, "GET", "/", "198.51.100.20")
		require.Equal(t, 200, resp.StatusCode, "request %d", i+1)
	}
	resp := f.do(t, "GET", "/", "198.51.100.20")
	assert.Equal(t, 429, resp.StatusCode)
	retry, err := strconv.Atoi(resp.Header.Get(common.RetryAfterHeader))
	require.NoError(t, err)
	assert.Equal(t, 30, retry)
	assert.Equal(t, 3, f.reached)

	// other addresses are unaffected
	resp = f.do(t, "GET", "/", "198.51.100.21")
	assert.Equal(t, 200, resp.StatusCode)
}

func TestShield_AdminEmergencyStaffBypass(t *testing.T) {
	f := newShieldFixture(t, plugins.ProfileDDoSProtection)
	require.NoError(t, f.posture.Activate(context.Background(), posture.AdminEmergency, time.Hour))

	resp := f.do(t, "POST", "/admin/login", "198.51.100.30")
	assert.Equal(t, 403, resp.StatusCode)

	token, err := jwt.NewJwtManager(staffSecret).CreateToken("alice", true, time.Hour)
	require.NoError(t, err)
	resp = f.do(t, "POST", "/admin/login", "198.51.100.31", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: common.StaffCookieName, Value: token})
	})
	assert.Equal(t, 200, resp.StatusCode)

	visitor, err := jwt.NewJwtManager(staffSecret).CreateToken("bob", false, time.Hour)
	require.NoError(t, err)
	resp = f.do(t, "POST", "/admin/login", "198.51.100.32", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+visitor)
	})
	assert.Equal(t, 403, resp.StatusCode)
}

func TestShield_ObserveProfileNeverDenies(t *testing.T) {
	f := newShieldFixture(t, plugins.ProfileObserve)
	require.NoError(t, f.blocklist.Ban(context.Background(), "203.0.113.9", time.Hour, "test", threat.ActionManualBlock))
	require.NoError(t, f.posture.Activate(context.Background(), posture.AdminEmergency, time.Hour))

	resp := f.do(t, "GET", "/", "203.0.113.9")
	assert.Equal(t, 200, resp.StatusCode)
	resp = f.do(t, "POST", "/admin/login", "203.0.113.9")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, f.reached)
}

func TestShield_DecodedTraversalPath(t *testing.T) {
	f := newShieldFixture(t, plugins.ProfileDDoSProtection)

	resp := f.do(t, "GET", "/static/%2e%2e/%2e%2e/etc/passwd", "198.51.100.40")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "/static/../../etc/passwd", resp.Header.Get("X-Seen-Path"))
}
