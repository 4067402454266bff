package http

import (
	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/gofiber/fiber/v2"
)

type statsHandler struct {
	service monitor.Service
}

func NewStatsHandler(service monitor.Service) Handler {
	return &statsHandler{service: service}
}

// Handle @Summary Request counters of the last day
// @Tags Monitoring
// @Produce json
// @Success 200 {object} stats.Summary
// @Security BearerAuth
// @Router /api/v1/stats [get]
func (h *statsHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.service.Stats(c.UserContext()))
}
