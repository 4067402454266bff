package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/domain/telemetry"
	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
)

const exportTimeout = 10 * time.Second

//go:generate mockery --name=Worker --dir=. --output=../../../mocks --filename=metrics_worker_mock.go --case=underscore --with-expecter
type Worker interface {
	Shutdown()
	StartWorkers(n int)
	Process(method string, statusCode int, startTime, endTime time.Time)
	Publish(report *threat.Report)
}

type worker struct {
	logger    *logrus.Logger
	exporters []telemetry.Exporter
	taskChan  chan func()
	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// NewWorker owns the exporters and closes them on Shutdown.
func NewWorker(logger *logrus.Logger, exporters []telemetry.Exporter) Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		logger:    logger,
		exporters: exporters,
		taskChan:  make(chan func(), 1000),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *worker) Shutdown() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.logger.Info("shutting down metrics workers")
	close(m.taskChan)
	m.wg.Wait()
	m.cancel()
	for _, exporter := range m.exporters {
		exporter.Close()
	}
	m.logger.Info("metrics workers stopped")
}

func (m *worker) Process(method string, statusCode int, startTime, endTime time.Time) {
	m.enqueueTask(func() {
		prometheus.RequestsTotal.WithLabelValues(method, m.getStatusClass(statusCode)).Inc()
		if prometheus.Config.EnableLatency {
			prometheus.RequestLatency.WithLabelValues("total").
				Observe(float64(endTime.Sub(startTime).Milliseconds()))
		}
	})
}

func (m *worker) Publish(report *threat.Report) {
	if report == nil || len(m.exporters) == 0 {
		return
	}
	m.enqueueTask(func() {
		m.export(report)
	})
}

func (m *worker) export(report *threat.Report) {
	var failedExporters []string
	for _, exporter := range m.exporters {
		ctx, cancel := context.WithTimeout(m.ctx, exportTimeout)
		err := exporter.Handle(ctx, report)
		cancel()
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"exporter":  exporter.Name(),
				"source_ip": report.SourceIP,
				"severity":  report.Severity.String(),
			}).WithError(err).Error("exporter failed")
			failedExporters = append(failedExporters, exporter.Name())
		}
	}
	if len(failedExporters) > 0 {
		m.logger.WithField("failedExporters", failedExporters).
			Warnf("%d exporters failed to handle threat report", len(failedExporters))
	}
}

func (m *worker) StartWorkers(n int) {
	m.logger.WithField("workers", n).Info("starting metrics workers")
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for task := range m.taskChan {
				m.run(task)
			}
		}()
	}
}

func (m *worker) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("metrics task panicked: %v", r)
		}
	}()
	task()
}

func (m *worker) enqueueTask(task func()) {
	if m.closed.Load() {
		return
	}
	defer func() {
		// Shutdown may close the channel concurrently
		_ = recover()
	}()
	select {
	case m.taskChan <- task:
	default:
		m.logger.Warn("taskChan is full, dropping metrics task")
	}
}

func (m *worker) getStatusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return fmt.Sprintf("%dxx", code/100)
}
