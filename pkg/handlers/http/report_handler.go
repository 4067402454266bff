package http

import (
	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type reportHandler struct {
	logger  *logrus.Logger
	service monitor.Service
}

func NewReportHandler(logger *logrus.Logger, service monitor.Service) Handler {
	return &reportHandler{
		logger:  logger,
		service: service,
	}
}

// Handle @Summary Security report
// @Tags Monitoring
// @Produce json
// @Success 200 {object} monitor.Report
// @Security BearerAuth
// @Router /api/v1/report [get]
func (h *reportHandler) Handle(c *fiber.Ctx) error {
	report, err := h.service.Report(c.UserContext())
	if err != nil {
		h.logger.WithError(err).Error("failed to build security report")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build report"})
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
