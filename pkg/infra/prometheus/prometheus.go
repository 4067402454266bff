package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		1, 5, 10, 25,
		50, 100, 250,
		500, 1000, 2500,
		5000, 10000,
	}

	RequestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustshield_requests_total",
			Help: "Total number of requests inspected",
		},
		[]string{"method", "status"},
	)

	RequestLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustshield_latency_ms",
			Help:    "Request latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"type"}, // "total" or "pipeline"
	)

	DenialsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustshield_denials_total",
			Help: "Requests denied by a shield plugin",
		},
		[]string{"plugin", "status"},
	)

	ThreatFindingsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustshield_threat_findings_total",
			Help: "Threat signature matches",
		},
		[]string{"family", "severity"},
	)

	BansTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustshield_bans_total",
			Help: "Blocklist entries written",
		},
		[]string{"reason"},
	)

	EmergencyMode = promauto.With(registerer).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trustshield_emergency_mode",
			Help: "1 while the given emergency flag is active, as last read by this process",
		},
		[]string{"flag"},
	)

	StoreErrorsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustshield_store_errors_total",
			Help: "Failed state store operations",
		},
		[]string{"op"},
	)
)

type MetricsConfig struct {
	EnableLatency bool
}

var (
	Config   MetricsConfig
	initOnce sync.Once
)

// Initialize is safe to call more than once; only the first call registers
// the process collector.
func Initialize(cfg MetricsConfig) {
	Config = cfg
	initOnce.Do(func() {
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prometheus.DefaultRegisterer = registry
		prometheus.DefaultGatherer = registry
	})
}
