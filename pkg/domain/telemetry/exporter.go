package telemetry

import (
	"context"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
)

// Exporter ships threat reports to an external sink.
type Exporter interface {
	Name() string
	ValidateConfig(settings map[string]interface{}) error
	Handle(ctx context.Context, report *threat.Report) error
	WithSettings(settings map[string]interface{}) (Exporter, error)
	Close()
}
