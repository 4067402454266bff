package router

import (
	"net/http"

	handlers "github.com/NeuralTrust/TrustShield/pkg/handlers/http"
	"github.com/NeuralTrust/TrustShield/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

// PingPath answers liveness probes ahead of the shield.
const PingPath = "/__/ping"

type proxyRouter struct {
	middlewareTransport middleware.Transport
	handlerTransport    handlers.HandlerTransport
}

func NewProxyRouter(
	middlewareTransport middleware.Transport,
	handlerTransport handlers.HandlerTransport,
) ServerRouter {
	return &proxyRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
}

func (r *proxyRouter) BuildRoutes(router *fiber.App) error {
	if r.handlerTransport.ForwardedHandler == nil {
		return ErrMissingHandler
	}

	router.Get(PingPath, ping)
	router.Post(PingPath, ping)

	if mws := r.middlewareTransport.Proxy(); len(mws) > 0 {
		router.Use(mws...)
	}
	router.Use(r.handlerTransport.ForwardedHandler.Handle)
	return nil
}

func ping(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"message": "pong",
	})
}
