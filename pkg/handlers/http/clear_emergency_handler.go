package http

import (
	"net/http"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/security/posture"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type clearEmergencyHandler struct {
	logger  *logrus.Logger
	service monitor.Service
}

func NewClearEmergencyHandler(logger *logrus.Logger, service monitor.Service) Handler {
	return &clearEmergencyHandler{
		logger:  logger,
		service: service,
	}
}

// Handle @Summary Clear an emergency flag
// @Tags Posture
// @Param mode path string true "emergency or admin"
// @Success 204
// @Security BearerAuth
// @Router /api/v1/emergency/{mode} [delete]
func (h *clearEmergencyHandler) Handle(c *fiber.Ctx) error {
	flag, err := posture.ParseFlag(c.Params("mode"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.service.ClearEmergency(c.UserContext(), flag); err != nil {
		h.logger.WithError(err).WithField("flag", flag).Error("failed to clear emergency flag")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear emergency flag"})
	}
	h.logger.WithFields(logrus.Fields{
		"operator": c.Locals(common.OperatorContextKey),
		"flag":     flag,
	}).Warn("operator cleared emergency flag")
	return c.SendStatus(http.StatusNoContent)
}
