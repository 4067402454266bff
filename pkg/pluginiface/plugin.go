package pluginiface

import (
	"context"

	"github.com/NeuralTrust/TrustShield/pkg/types"
)

//go:generate mockery --name=Plugin --dir=. --output=./mocks --filename=plugin_mock.go --case=underscore --with-expecter
type Plugin interface {
	Name() string
	// Stages returns the fixed stages where the plugin must run.
	Stages() []types.Stage
	// Execute returns a *types.PluginError to deny the request. Any other
	// error is logged and the request continues.
	Execute(
		ctx context.Context,
		stage types.Stage,
		req *types.RequestContext,
		resp *types.ResponseContext,
	) (*types.PluginResponse, error)
}

// Observer is implemented by plugins that can report without enforcing.
type Observer interface {
	Observe(ctx context.Context, req *types.RequestContext)
}
