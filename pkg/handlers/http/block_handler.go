package http

import (
	"errors"

	"github.com/NeuralTrust/TrustShield/pkg/app/monitor"
	"github.com/NeuralTrust/TrustShield/pkg/common"
	"github.com/NeuralTrust/TrustShield/pkg/handlers/http/request"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type blockHandler struct {
	logger  *logrus.Logger
	service monitor.Service
}

func NewBlockHandler(logger *logrus.Logger, service monitor.Service) Handler {
	return &blockHandler{
		logger:  logger,
		service: service,
	}
}

// Handle @Summary Block an address
// @Tags Blocklist
// @Accept json
// @Produce json
// @Param request body request.BlockRequest true "Address and duration in seconds"
// @Success 201 {object} blocklist.Entry
// @Security BearerAuth
// @Router /api/v1/blocks [post]
func (h *blockHandler) Handle(c *fiber.Ctx) error {
	var req request.BlockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	entry, err := h.service.Block(c.UserContext(), req.IP, req.Duration)
	if err != nil {
		if errors.Is(err, monitor.ErrInvalidIP) || errors.Is(err, monitor.ErrInvalidDuration) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.logger.WithError(err).WithField("ip", req.IP).Error("failed to block address")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to block address"})
	}
	h.logger.WithFields(logrus.Fields{
		"operator": c.Locals(common.OperatorContextKey),
		"ip":       req.IP,
		"duration": req.Duration,
	}).Info("operator block")
	return c.Status(fiber.StatusCreated).JSON(entry)
}
