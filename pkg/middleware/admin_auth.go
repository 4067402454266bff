package middleware

import (
	"errors"
	"strings"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/infra/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

type adminAuthMiddleware struct {
	logger     *logrus.Logger
	jwtManager jwt.Manager
}

func NewAdminAuthMiddleware(
	logger *logrus.Logger,
	jwtManager jwt.Manager,
) Middleware {
	return &adminAuthMiddleware{
		logger:     logger,
		jwtManager: jwtManager,
	}
}

// Middleware admits operator API calls carrying a valid bearer token. The
// token subject is kept in the context for the audit log lines of handlers.
func (m *adminAuthMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get(authorizationHeader)
		if authHeader == "" {
			m.logger.Debug("no authorization header provided")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authorization required"})
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			m.logger.Debug("invalid authorization header format")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization format"})
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		if tokenString == "" {
			m.logger.Debug("empty token provided")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Empty token provided"})
		}

		claims, err := m.jwtManager.DecodeToken(tokenString)
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"ip":      ctx.Locals(common.ClientIPKey),
				"expired": errors.Is(err, jwt.ErrExpiredToken),
			}).WithError(err).Warn("rejected operator token")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		ctx.Locals(common.OperatorContextKey, claims.Subject)
		return ctx.Next()
	}
}
