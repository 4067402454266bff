package router

import (
	"fmt"

	handlers "github.com/NeuralTrust/TrustShield/pkg/handlers/http"
	"github.com/NeuralTrust/TrustShield/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

const (
	VersionPath     = "/version"
	SwaggerSpecPath = "/swagger.json"
	DocsPath        = "/docs/*"
)

type adminRouter struct {
	middlewareTransport middleware.Transport
	handlerTransport    handlers.HandlerTransport
	docsFile            string
}

type AdminRouterOption func(*adminRouter)

// WithDocs serves the generated OpenAPI file and the swagger UI. Without it
// the admin router exposes no documentation routes.
func WithDocs(file string) AdminRouterOption {
	return func(r *adminRouter) {
		r.docsFile = file
	}
}

func NewAdminRouter(
	middlewareTransport middleware.Transport,
	handlerTransport handlers.HandlerTransport,
	opts ...AdminRouterOption,
) ServerRouter {
	r := &adminRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *adminRouter) BuildRoutes(router *fiber.App) error {
	h := r.handlerTransport
	required := map[string]handlers.Handler{
		"block":           h.BlockHandler,
		"unblock":         h.UnblockHandler,
		"clear_blocks":    h.ClearBlocksHandler,
		"health":          h.HealthHandler,
		"report":          h.ReportHandler,
		"threats":         h.ThreatsHandler,
		"stats":           h.StatsHandler,
		"clear_emergency": h.ClearEmergencyHandler,
	}
	for name, handler := range required {
		if handler == nil {
			return fmt.Errorf("%w: %s", ErrMissingHandler, name)
		}
	}

	router.Get(PingPath, ping)
	if r.docsFile != "" {
		router.Static(SwaggerSpecPath, r.docsFile)
		router.Get(DocsPath, swagger.New(swagger.Config{
			URL: SwaggerSpecPath,
		}))
	}
	if h.GetVersionHandler != nil {
		router.Get(VersionPath, h.GetVersionHandler.Handle)
	}

	v1 := router.Group("/api/v1")
	{
		if mws := r.middlewareTransport.Admin(); len(mws) > 0 {
			v1.Use(mws...)
		}

		blocks := v1.Group("/blocks")
		{
			blocks.Post("", h.BlockHandler.Handle)
			blocks.Delete("", h.ClearBlocksHandler.Handle)
			blocks.Delete("/:ip", h.UnblockHandler.Handle)
		}

		v1.Get("/health", h.HealthHandler.Handle)
		v1.Get("/report", h.ReportHandler.Handle)
		v1.Get("/threats", h.ThreatsHandler.Handle)
		v1.Get("/stats", h.StatsHandler.Handle)
		v1.Delete("/emergency/:mode", h.ClearEmergencyHandler.Handle)
	}
	return nil
}
