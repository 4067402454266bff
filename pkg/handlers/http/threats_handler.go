package http

import (
	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type threatsHandler struct {
	logger  *logrus.Logger
	service monitor.Service
}

func NewThreatsHandler(logger *logrus.Logger, service monitor.Service) Handler {
	return &threatsHandler{
		logger:  logger,
		service: service,
	}
}

// Handle @Summary Active threats
// @Tags Monitoring
// @Produce json
// @Success 200 {array} threat.ActiveThreat
// @Security BearerAuth
// @Router /api/v1/threats [get]
func (h *threatsHandler) Handle(c *fiber.Ctx) error {
	threats, err := h.service.Analyze(c.UserContext())
	if err != nil {
		// the posture part is still meaningful
		h.logger.WithError(err).Warn("threat analysis incomplete")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"active_threats": threats,
		"count":          len(threats),
	})
}
