package telemetry

import (
	"fmt"

	"github.com/NeuralTrust/TrustShield/pkg/config"
	"github.com/NeuralTrust/TrustShield/pkg/domain/telemetry"
)

type ExporterLocator struct {
	exporters map[string]telemetry.Exporter
}

func NewExporterLocator(opts ...ExporterLocatorOption) *ExporterLocator {
	el := &ExporterLocator{
		exporters: make(map[string]telemetry.Exporter),
	}
	for _, opt := range opts {
		opt(el)
	}
	return el
}

func (p *ExporterLocator) GetExporter(exporter config.ExporterConfig) (telemetry.Exporter, error) {
	base, ok := p.exporters[exporter.Name]
	if !ok {
		return nil, fmt.Errorf("unknown exporter: %s", exporter.Name)
	}
	if err := base.ValidateConfig(exporter.Settings); err != nil {
		return nil, err
	}
	return base.WithSettings(exporter.Settings)
}

func (p *ExporterLocator) ValidateExporter(exporter config.ExporterConfig) error {
	base, ok := p.exporters[exporter.Name]
	if !ok {
		return fmt.Errorf("unknown exporter: %s", exporter.Name)
	}
	return base.ValidateConfig(exporter.Settings)
}

// Build configures every exporter in order and closes the ones already built
// when a later one fails.
func (p *ExporterLocator) Build(configs []config.ExporterConfig) ([]telemetry.Exporter, error) {
	var built []telemetry.Exporter
	for _, cfg := range configs {
		exporter, err := p.GetExporter(cfg)
		if err != nil {
			for _, e := range built {
				e.Close()
			}
			return nil, fmt.Errorf("failed to build exporter %s: %w", cfg.Name, err)
		}
		built = append(built, exporter)
	}
	return built, nil
}
