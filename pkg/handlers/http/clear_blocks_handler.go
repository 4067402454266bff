package http

import (
	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type clearBlocksHandler struct {
	logger  *logrus.Logger
	service monitor.Service
}

func NewClearBlocksHandler(logger *logrus.Logger, service monitor.Service) Handler {
	return &clearBlocksHandler{
		logger:  logger,
		service: service,
	}
}

// Handle @Summary Remove every ban
// @Tags Blocklist
// @Produce json
// @Success 200 {object} map[string]int
// @Security BearerAuth
// @Router /api/v1/blocks [delete]
func (h *clearBlocksHandler) Handle(c *fiber.Ctx) error {
	n, err := h.service.ClearBlocks(c.UserContext())
	if err != nil {
		h.logger.WithError(err).WithField("cleared", n).Error("failed to clear blocklist")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear blocklist", "cleared": n})
	}
	h.logger.WithField("operator", c.Locals(common.OperatorContextKey)).Warn("operator cleared blocklist")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"cleared": n})
}
