package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	// Proxy
	ForwardedHandler Handler

	// Blocklist
	BlockHandler       Handler
	UnblockHandler     Handler
	ClearBlocksHandler Handler

	// Monitoring
	HealthHandler  Handler
	ReportHandler  Handler
	ThreatsHandler Handler
	StatsHandler   Handler

	// Posture
	ClearEmergencyHandler Handler

	GetVersionHandler Handler
}
