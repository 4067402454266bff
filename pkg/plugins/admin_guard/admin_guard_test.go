package admin_guard_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/admin_guard"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	plugin  pluginiface.Plugin
	posture *posture.Machine
	store   *cache.MemoryStore
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{now: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)}
	store, err := cache.NewMemoryStore(cache.MemoryStoreOpts{Clock: func() time.Time { return e.now }})
	require.NoError(t, err)
	log := logrus.New()
	e.store = store
	e.posture = posture.NewMachine(store, log)
	e.plugin = admin_guard.NewAdminGuardPlugin(store, e.posture, logger.NewAlerter(log, 100), log, config.Default().Shield)
	return e
}

func (e *env) do(ip, method, path string, staff bool) error {
	req := &types.RequestContext{IP: ip, Method: method, Path: path, Staff: staff}
	_, err := e.plugin.Execute(context.Background(), types.PreRequest, req, nil)
	return err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr), "expected a denial, got %v", err)
	return pluginErr.StatusCode
}

func TestAdminGuard_IgnoresOtherPaths(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, e.do("203.0.113.1", http.MethodPost, "/login/", false))
	}
}

func TestAdminGuard_PerAddressBruteForce(t *testing.T) {
	e := newEnv(t)
	for i := 1; i <= 5; i++ {
		require.NoError(t, e.do("203.0.113.1", http.MethodPost, "/admin/login/", false), "attempt %d", i)
		e.now = e.now.Add(5 * time.Second)
	}
	err := e.do("203.0.113.1", http.MethodPost, "/admin/login/", false)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	assert.Contains(t, err.Error(), "Too many failed login attempts.")

	// another address is unaffected
	assert.NoError(t, e.do("203.0.113.2", http.MethodPost, "/admin/login/", false))
}

func TestAdminGuard_GlobalAttemptsActivateEmergency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 1; i < 30; i++ {
		ip := fmt.Sprintf("198.51.100.%d", i)
		require.NoError(t, e.do(ip, http.MethodPost, "/admin/login/", false), "attempt %d", i)
	}
	assert.False(t, e.posture.Active(ctx, posture.AdminEmergency))

	err := e.do("198.51.100.30", http.MethodPost, "/admin/login/", false)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	assert.True(t, e.posture.Active(ctx, posture.AdminEmergency))

	ttl, err := e.store.TTL(ctx, string(posture.AdminEmergency))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	// fresh address, still denied while the flag is up
	err = e.do("192.0.2.200", http.MethodPost, "/admin/login/", false)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	// non-login admin pages keep working
	assert.NoError(t, e.do("192.0.2.200", http.MethodGet, "/admin/", false))

	e.now = e.now.Add(time.Hour)
	assert.False(t, e.posture.Active(ctx, posture.AdminEmergency))
}

func TestAdminGuard_StaffBypass(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.posture.Activate(context.Background(), posture.AdminEmergency, time.Hour))

	for i := 0; i < 40; i++ {
		require.NoError(t, e.do("203.0.113.9", http.MethodPost, "/admin/login/", true))
	}
}

func TestAdminGuard_Flood(t *testing.T) {
	e := newEnv(t)
	for i := 1; i <= 20; i++ {
		require.NoError(t, e.do("203.0.113.5", http.MethodGet, "/admin/users/", false), "request %d", i)
	}
	err := e.do("203.0.113.5", http.MethodGet, "/admin/users/", false)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, 60, pluginErr.RetryAfter)

	e.now = e.now.Add(time.Minute)
	assert.NoError(t, e.do("203.0.113.5", http.MethodGet, "/admin/users/", false))
}

func TestStaffToken(t *testing.T) {
	assert.Equal(t, "abc", admin_guard.StaffToken("Bearer abc", "cookie"))
	assert.Equal(t, "cookie", admin_guard.StaffToken("", "cookie"))
	assert.Equal(t, "cookie", admin_guard.StaffToken("Basic xyz", "cookie"))
}
