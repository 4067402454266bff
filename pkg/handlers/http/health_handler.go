package http

import (
	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/gofiber/fiber/v2"
)

type healthHandler struct {
	service monitor.Service
}

func NewHealthHandler(service monitor.Service) Handler {
	return &healthHandler{service: service}
}

// Handle @Summary Protection health
// @Tags Monitoring
// @Produce json
// @Success 200 {object} monitor.Health
// @Security BearerAuth
// @Router /api/v1/health [get]
func (h *healthHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.service.Health(c.UserContext()))
}
