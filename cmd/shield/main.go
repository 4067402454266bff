package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/dependency_container"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/channel"
	infraLogger "github.com/NeuralTrust/TrustShield/pkg/infra/logger"
	"github.com/NeuralTrust/TrustShield/pkg/server"
	"github.com/NeuralTrust/TrustShield/pkg/server/router"
	"github.com/NeuralTrust/TrustShield/pkg/version"
	"github.com/joho/godotenv"
)

const (
	serverTypeProxy = "proxy"
	serverTypeAdmin = "admin"
)

//go:generate swag init --dir ../../ --generalInfo cmd/shield/main.go --output ../../docs --outputTypes json

// @title TrustShield Admin API
// @version 0.4.0
// @description Operator API of the TrustShield request-inspection proxy.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	serverType := getServerType()
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger(serverType)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config"
	}
	if err := config.Load(configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	container, err := dependency_container.NewContainer(dependency_container.ContainerDI{
		Cfg:    cfg,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("failed to initialize dependencies: %v", err)
	}
	container.MetricsWorker.StartWorkers(runtime.NumCPU())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if container.EventListener != nil {
		go container.EventListener.Listen(ctx, channel.BlocklistEventsChannel)
	}

	var srv server.Server
	switch serverType {
	case serverTypeAdmin:
		srv = server.NewAdminServer(server.AdminServerDI{
			Config: cfg,
			Logger: logger,
			Routers: []router.ServerRouter{
				router.NewAdminRouter(
					container.MiddlewareTransport,
					container.HandlerTransport,
					router.WithDocs(cfg.Server.DocsFile),
				),
			},
		})
	default:
		srv = server.NewProxyServer(server.ProxyServerDI{
			Config: cfg,
			Logger: logger,
			Routers: []router.ServerRouter{
				router.NewProxyRouter(container.MiddlewareTransport, container.HandlerTransport),
			},
		})
	}

	logger.WithField("version", version.Version).
		WithField("profile", container.PluginManager.Profile().Name).
		Infof("starting %s", version.AppName)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	fmt.Println("shutting down server...")
	cancel()
	if err := srv.Shutdown(); err != nil {
		fmt.Println("error shutting down server:", err)
	}
	container.Close()
	fmt.Println("server gracefully stopped")
}

func getServerType() string {
	if len(os.Args) > 1 && os.Args[1] == serverTypeAdmin {
		return serverTypeAdmin
	}
	return serverTypeProxy
}
