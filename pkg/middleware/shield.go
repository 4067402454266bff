package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/infra/fingerprint"
	"github.com/NeuralTrust/TrustShield/pkg/infra/jwt"
	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustShield/pkg/plugins"
	"github.com/NeuralTrust/TrustShield/pkg/plugins/admin_guard"
	"github.com/NeuralTrust/TrustShield/pkg/security/stats"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ShieldOpts struct {
	// AdminGuard runs ahead of the pipeline for the admin prefix. Optional.
	AdminGuard *admin_guard.Plugin
	// Jwt verifies staff tokens. Without it no request is staff.
	Jwt   jwt.Manager
	Stats *stats.Recorder
	Clock func() time.Time
}

type shieldMiddleware struct {
	logger        *logrus.Logger
	pluginManager plugins.Manager
	adminGuard    *admin_guard.Plugin
	jwtManager    jwt.Manager
	stats         *stats.Recorder
	clock         func() time.Time
}

// NewShieldMiddleware mounts the inspection pipeline in front of the
// upstream. Denied requests never reach c.Next().
func NewShieldMiddleware(
	logger *logrus.Logger,
	pluginManager plugins.Manager,
	opts ShieldOpts,
) Middleware {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &shieldMiddleware{
		logger:        logger,
		pluginManager: pluginManager,
		adminGuard:    opts.AdminGuard,
		jwtManager:    opts.Jwt,
		stats:         opts.Stats,
		clock:         opts.Clock,
	}
}

func (m *shieldMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		reqCtx := m.requestContext(c, ctx)
		respCtx := types.NewResponseContext(ctx)

		if m.stats != nil {
			m.stats.Request(ctx)
		}

		if err := m.guardAdmin(ctx, reqCtx, respCtx); err != nil {
			return m.deny(c, ctx, err)
		}

		if _, err := m.pluginManager.ExecuteStage(ctx, types.PreRequest, reqCtx, respCtx); err != nil {
			return m.deny(c, ctx, err)
		}

		c.Locals(common.RequestContextKey, reqCtx)
		nextErr := c.Next()

		respCtx.StatusCode = c.Response().StatusCode()
		if _, err := m.pluginManager.ExecuteStage(ctx, types.PostResponse, reqCtx, respCtx); err != nil {
			m.logger.WithFields(logrus.Fields{
				"trace_id": reqCtx.TraceID,
				"ip":       reqCtx.IP,
			}).WithError(err).Error("post_response stage failed")
		}
		for k, values := range respCtx.Headers {
			for i, v := range values {
				if i == 0 {
					c.Set(k, v)
					continue
				}
				c.Response().Header.Add(k, v)
			}
		}
		return nextErr
	}
}

// guardAdmin returns a denial or nil. Failures other than a denial are logged
// and let the request through.
func (m *shieldMiddleware) guardAdmin(
	ctx context.Context,
	reqCtx *types.RequestContext,
	respCtx *types.ResponseContext,
) error {
	if m.adminGuard == nil || !m.adminGuard.Applies(reqCtx) || !m.pluginManager.Profile().Enforce {
		return nil
	}
	_, err := m.adminGuard.Execute(ctx, types.PreRequest, reqCtx, respCtx)
	if err == nil {
		return nil
	}
	var denial *types.PluginError
	if errors.As(err, &denial) {
		if denial.Plugin == "" {
			denial.Plugin = admin_guard.PluginName
		}
		prometheus.DenialsTotal.WithLabelValues(denial.Plugin, strconv.Itoa(denial.StatusCode)).Inc()
		return denial
	}
	m.logger.WithField("ip", reqCtx.IP).WithError(err).Error("admin guard failed, continuing")
	return nil
}

func (m *shieldMiddleware) deny(c *fiber.Ctx, ctx context.Context, err error) error {
	var denial *types.PluginError
	if !errors.As(err, &denial) {
		return err
	}
	if m.stats != nil {
		m.stats.Blocked(ctx)
	}
	status := denial.StatusCode
	if status == 0 {
		status = http.StatusForbidden
	}
	if denial.RetryAfter > 0 {
		c.Set(common.RetryAfterHeader, strconv.Itoa(denial.RetryAfter))
	}
	m.logger.WithFields(logrus.Fields{
		"trace_id": c.Locals(common.TraceIdKey),
		"ip":       c.Locals(common.ClientIPKey),
		"plugin":   denial.Plugin,
		"status":   status,
		"path":     c.Path(),
	}).Info("request denied")
	return c.Status(status).JSON(fiber.Map{"error": denial.Message})
}

func (m *shieldMiddleware) requestContext(c *fiber.Ctx, ctx context.Context) *types.RequestContext {
	ip, ok := c.Locals(common.ClientIPKey).(string)
	if !ok || ip == "" {
		ip = fingerprint.ClientIP(c)
	}
	traceID, _ := c.Locals(common.TraceIdKey).(string)

	uri := c.Request().URI()
	rawPath := string(uri.PathOriginal())
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		path = rawPath
	}
	reqCtx := &types.RequestContext{
		Context:   ctx,
		TraceID:   traceID,
		IP:        ip,
		Method:    c.Method(),
		Path:      path,
		RawPath:   rawPath,
		RawQuery:  string(uri.QueryString()),
		Headers:   c.GetReqHeaders(),
		Metadata:  make(map[string]interface{}),
		ProcessAt: m.clock(),
	}
	if reqCtx.IsMutating() {
		reqCtx.Body = append([]byte(nil), c.Body()...)
	}
	reqCtx.Staff = m.isStaff(c)
	return reqCtx
}

func (m *shieldMiddleware) isStaff(c *fiber.Ctx) bool {
	if m.jwtManager == nil {
		return false
	}
	token := admin_guard.StaffToken(c.Get(authorizationHeader), c.Cookies(common.StaffCookieName))
	if token == "" {
		return false
	}
	return m.jwtManager.ValidateStaff(token) == nil
}
