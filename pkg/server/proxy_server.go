package server

import (
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/server/router"
	"github.com/sirupsen/logrus"
)

type (
	ProxyServerDI struct {
		Config  *config.Config
		Logger  *logrus.Logger
		Routers []router.ServerRouter
	}
	ProxyServer struct {
		*BaseServer
	}
)

func NewProxyServer(di ProxyServerDI) *ProxyServer {
	s := &ProxyServer{
		BaseServer: NewBaseServer(di.Config, di.Logger).WithRouters(di.Routers...),
	}
	s.BaseServer.setupMetricsEndpoint()
	return s
}

func (s *ProxyServer) Run() error {
	return s.listen("proxy", s.Config.Server.ProxyPort)
}
