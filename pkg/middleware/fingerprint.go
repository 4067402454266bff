package middleware

import (
	"context"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type fingerPrintMiddleware struct {
	logger *logrus.Logger
}

// NewFingerPrintMiddleware resolves the client address once per request and
// tags the request with a trace id, reusing an inbound X-Request-Id.
func NewFingerPrintMiddleware(logger *logrus.Logger) Middleware {
	return &fingerPrintMiddleware{
		logger: logger,
	}
}

func (m *fingerPrintMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		ip := fingerprint.ClientIP(ctx)
		ctx.Locals(common.ClientIPKey, ip)

		id := ctx.Get(common.TraceIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		ctx.Locals(common.TraceIdKey, id)
		ctx.Set(common.TraceIDHeader, id)

		c := context.WithValue(ctx.UserContext(), common.ClientIPKey, ip)
		c = context.WithValue(c, common.TraceIdKey, id)
		ctx.SetUserContext(c)
		return ctx.Next()
	}
}
