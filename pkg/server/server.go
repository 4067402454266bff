package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustShield/pkg/server/router"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Server interface defines the common behavior for all servers
type Server interface {
	Run() error
	Shutdown() error
}

type BaseServer struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Router     *fiber.App
	metricsApp *fiber.App
}

func NewBaseServer(config *config.Config, logger *logrus.Logger) *BaseServer {
	r := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReduceMemoryUsage:     true,
		Network:               fiber.NetworkTCP,
		EnablePrintRoutes:     false,
		BodyLimit:             8 * 1024 * 1024,
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
		Concurrency:           16384,
	})

	r.Server().MaxConnsPerIP = 1024
	r.Server().ReadBufferSize = 8192
	r.Server().WriteBufferSize = 8192
	r.Server().NoDefaultServerHeader = true
	r.Server().NoDefaultDate = true

	return &BaseServer{
		Config: config,
		Logger: logger,
		Router: r,
	}
}

func (s *BaseServer) WithRouters(routers ...router.ServerRouter) *BaseServer {
	for _, r := range routers {
		if err := r.BuildRoutes(s.Router); err != nil {
			s.Logger.WithError(err).Error("failed to build routes")
		}
	}
	return s
}

func (s *BaseServer) setupMetricsEndpoint() {
	if !s.Config.Metrics.Enabled {
		s.Logger.Info("prometheus metrics are disabled by configuration")
		return
	}
	if s.metricsApp != nil {
		return
	}
	prometheus.Initialize(prometheus.MetricsConfig{
		EnableLatency: s.Config.Metrics.EnableLatency,
	})

	metricsApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	metricsApp.Use(recover.New())

	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	metricsApp.Get("/metrics", func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	})
	s.metricsApp = metricsApp

	// Start metrics server on a different port
	go func() {
		addr := fmt.Sprintf(":%d", s.Config.Server.MetricsPort)
		if err := metricsApp.Listen(addr); err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) && opErr.Op == "listen" {
				s.Logger.WithError(err).Warn("metrics port already bound, skipping metrics server")
				return
			}
			s.Logger.WithError(err).Error("failed to start metrics server")
		}
	}()
}

func (s *BaseServer) listen(kind string, port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.Logger.WithField("addr", addr).Infof("starting %s server", kind)
	return s.Router.Listen(addr)
}

func (s *BaseServer) Shutdown() error {
	if s.metricsApp != nil {
		if err := s.metricsApp.Shutdown(); err != nil {
			s.Logger.WithError(err).Warn("failed to stop metrics server")
		}
	}
	return s.Router.Shutdown()
}
