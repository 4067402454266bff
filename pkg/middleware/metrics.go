package middleware

import (
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/infra/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type metricsMiddleware struct {
	logger *logrus.Logger
	worker metrics.Worker
}

func NewMetricsMiddleware(logger *logrus.Logger, worker metrics.Worker) Middleware {
	return &metricsMiddleware{
		logger: logger,
		worker: worker,
	}
}

func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()
		c.Locals(common.LatencyContextKey, startTime)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		m.worker.Process(c.Method(), status, startTime, time.Now())
		return err
	}
}
