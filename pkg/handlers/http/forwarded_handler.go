package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

type forwardedHandler struct {
	logger   *logrus.Logger
	upstream string
	client   *fasthttp.Client
}

// NewForwardedHandler relays requests that passed the shield to upstream.
// With an empty upstream every request is answered with 502.
func NewForwardedHandler(logger *logrus.Logger, upstream string) Handler {
	client := &fasthttp.Client{
		ReadTimeout:                   60 * time.Second,
		WriteTimeout:                  60 * time.Second,
		MaxConnsPerHost:               16384,
		MaxIdleConnDuration:           120 * time.Second,
		ReadBufferSize:                32768,
		WriteBufferSize:               32768,
		NoDefaultUserAgentHeader:      true,
		DisableHeaderNamesNormalizing: true,
		DisablePathNormalizing:        true,
	}
	return &forwardedHandler{
		logger:   logger,
		upstream: strings.TrimRight(upstream, "/"),
		client:   client,
	}
}

func (h *forwardedHandler) Handle(c *fiber.Ctx) error {
	if h.upstream == "" {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "no upstream configured"})
	}
	target := h.upstream + c.OriginalURL()
	if err := proxy.Do(c, target, h.client); err != nil {
		h.logger.WithFields(logrus.Fields{
			"upstream": h.upstream,
			"path":     c.Path(),
		}).WithError(err).Error("failed to forward request")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream unavailable"})
	}
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
