package server

import (
	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/server/router"
	"github.com/sirupsen/logrus"
)

type (
	AdminServerDI struct {
		Config  *config.Config
		Logger  *logrus.Logger
		Routers []router.ServerRouter
	}
	AdminServer struct {
		*BaseServer
	}
)

func NewAdminServer(di AdminServerDI) *AdminServer {
	s := &AdminServer{
		BaseServer: NewBaseServer(di.Config, di.Logger).WithRouters(di.Routers...),
	}
	s.BaseServer.setupMetricsEndpoint()
	return s
}

func (s *AdminServer) Run() error {
	return s.listen("admin", s.Config.Server.AdminPort)
}
