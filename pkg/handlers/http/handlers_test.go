package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/app/monitor/mocks"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/handlers/http/request"
	"github.com/NeuralTrust/TrustShield/pkg/security/blocklist"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestBlockHandler_Success(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Post("/api/v1/blocks", NewBlockHandler(quietLogger(), svc).Handle)

	expires := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Block", mock.Anything, "198.51.100.7", 600).Return(&blocklist.Entry{
		IP:        "198.51.100.7",
		Reason:    monitor.ReasonManual,
		Action:    threat.ActionManualBlock,
		ExpiresAt: expires,
	}, nil)

	req := httptest.NewRequest("POST", "/api/v1/blocks", jsonBody(t, map[string]interface{}{"ip": "198.51.100.7", "duration": 600}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	var entry blocklist.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entry))
	assert.Equal(t, "198.51.100.7", entry.IP)
	assert.Equal(t, threat.ActionManualBlock, entry.Action)
}

func TestBlockHandler_DefaultDuration(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Post("/api/v1/blocks", NewBlockHandler(quietLogger(), svc).Handle)

	svc.On("Block", mock.Anything, "2001:db8::1", request.DefaultBlockSeconds).Return(&blocklist.Entry{IP: "2001:db8::1"}, nil)

	req := httptest.NewRequest("POST", "/api/v1/blocks", jsonBody(t, map[string]interface{}{"ip": "2001:db8::1"}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
}

func TestBlockHandler_BadRequest(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Post("/api/v1/blocks", NewBlockHandler(quietLogger(), svc).Handle)

	cases := []map[string]interface{}{
		{"duration": 60},
		{"ip": "999.1.1.1"},
		{"ip": "198.51.100.7", "duration": -1},
	}
	for _, body := range cases {
		req := httptest.NewRequest("POST", "/api/v1/blocks", jsonBody(t, body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode, "%v", body)
	}
	svc.AssertNotCalled(t, "Block", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnblockHandler(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Delete("/api/v1/blocks/:ip", NewUnblockHandler(quietLogger(), svc).Handle)

	svc.On("Unblock", mock.Anything, "198.51.100.7").Return(nil)
	svc.On("Unblock", mock.Anything, "nope").Return(monitor.ErrInvalidIP)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/blocks/198.51.100.7", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/api/v1/blocks/nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestClearBlocksHandler(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Delete("/api/v1/blocks", NewClearBlocksHandler(quietLogger(), svc).Handle)

	svc.On("ClearBlocks", mock.Anything).Return(3, nil).Once()
	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/blocks", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 3, out["cleared"])

	svc.On("ClearBlocks", mock.Anything).Return(1, errors.New("store down")).Once()
	resp, err = app.Test(httptest.NewRequest("DELETE", "/api/v1/blocks", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}

func TestHealthHandler(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Get("/api/v1/health", NewHealthHandler(svc).Handle)

	svc.On("Health", mock.Anything).Return(monitor.Health{
		DDoSProtection: monitor.StatusActive,
		EmergencyMode:  true,
		State:          posture.StateEmergency,
		Store:          monitor.StoreOK,
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ACTIVE", out["ddos_protection"])
	assert.Equal(t, true, out["emergency_mode"])
	assert.Equal(t, "EMERGENCY", out["state"])
}

func TestReportHandler(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Get("/api/v1/report", NewReportHandler(quietLogger(), svc).Handle)

	svc.On("Report", mock.Anything).Return(&monitor.Report{ReportID: "SEC-20250101-000000", Period: "24_hours"}, nil).Once()
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/report", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "SEC-20250101-000000", out["report_id"])
	assert.NotContains(t, out, "geographic_analysis")

	svc.On("Report", mock.Anything).Return(nil, errors.New("boom")).Once()
	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/report", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}

func TestThreatsHandler(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Get("/api/v1/threats", NewThreatsHandler(quietLogger(), svc).Handle)

	svc.On("Analyze", mock.Anything).Return([]threat.ActiveThreat{
		{Type: monitor.ThreatDistributed, Severity: threat.SeverityCritical},
	}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/threats", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out struct {
		ActiveThreats []map[string]interface{} `json:"active_threats"`
		Count         int                      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "CRITICAL", out.ActiveThreats[0]["severity"])
}

func TestClearEmergencyHandler(t *testing.T) {
	svc := mocks.NewService(t)
	app := fiber.New()
	app.Delete("/api/v1/emergency/:mode", NewClearEmergencyHandler(quietLogger(), svc).Handle)

	svc.On("ClearEmergency", mock.Anything, posture.Emergency).Return(nil)
	svc.On("ClearEmergency", mock.Anything, posture.AdminEmergency).Return(nil)

	for _, mode := range []string{"emergency", "admin"} {
		resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/emergency/"+mode, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode, mode)
	}

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/v1/emergency/everything", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestForwardedHandler_NoUpstream(t *testing.T) {
	app := fiber.New()
	app.Use(NewForwardedHandler(quietLogger(), "").Handle)

	resp, err := app.Test(httptest.NewRequest("GET", "/anything", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 502, resp.StatusCode)
}
