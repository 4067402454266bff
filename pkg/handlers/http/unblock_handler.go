package http

import (
	"errors"
	"net/http"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type unblockHandler struct {
	logger  *logrus.Logger
	service monitor.Service
}

func NewUnblockHandler(logger *logrus.Logger, service monitor.Service) Handler {
	return &unblockHandler{
		logger:  logger,
		service: service,
	}
}

// Handle @Summary Remove the ban on an address
// @Tags Blocklist
// @Param ip path string true "Address"
// @Success 204
// @Security BearerAuth
// @Router /api/v1/blocks/{ip} [delete]
func (h *unblockHandler) Handle(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ip is required"})
	}
	if err := h.service.Unblock(c.UserContext(), ip); err != nil {
		if errors.Is(err, monitor.ErrInvalidIP) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.WithError(err).WithField("ip", ip).Error("failed to unblock address")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to unblock address"})
	}
	h.logger.WithFields(logrus.Fields{
		"operator": c.Locals(common.OperatorContextKey),
		"ip":       ip,
	}).Info("operator unblock")
	return c.SendStatus(http.StatusNoContent)
}
