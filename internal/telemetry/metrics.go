package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Metrics HTTP exporter.
type MetricsConfig struct {
	Addr string
}

// Metrics exposes a fuzzing session's running totals on a Prometheus
// /metrics endpoint for a Prometheus server to scrape.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler
	server   *http.Server

	totalExecs    prometheus.Counter
	queueLength   prometheus.Gauge
	uniqueCrashes prometheus.Gauge
	uniqueHangs   prometheus.Gauge
	execsPerSec   prometheus.Gauge
}

// NewMetrics creates a Metrics exporter registered on its own registry
// (not the global one, so multiple sessions in one process never
// collide).
func NewMetrics(cfg MetricsConfig) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		totalExecs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "protofuzz_total_execs",
			Help: "Total number of target executions since session start.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protofuzz_queue_length",
			Help: "Current number of test cases in the queue.",
		}),
		uniqueCrashes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protofuzz_unique_crashes",
			Help: "Number of distinct crashing test cases found.",
		}),
		uniqueHangs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protofuzz_unique_hangs",
			Help: "Number of distinct hanging test cases found.",
		}),
		execsPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protofuzz_execs_per_sec",
			Help: "Rolling executions-per-second rate.",
		}),
	}

	registry.MustRegister(m.totalExecs, m.queueLength, m.uniqueCrashes, m.uniqueHangs, m.execsPerSec)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	m.handler = mux
	m.server = &http.Server{Addr: cfg.Addr, Handler: mux}

	return m
}

// Handler returns the /metrics HTTP handler directly, for embedding in a
// caller-owned server or exercising in tests without opening a socket.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Serve starts the metrics HTTP server and blocks until ctx is
// cancelled, at which point it shuts the server down gracefully.
func (m *Metrics) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
			return
		}
		errCh <- nil
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.server.Shutdown(shutdownCtx)

	return <-errCh
}

// RecordExec increments the total exec counter by delta.
func (m *Metrics) RecordExec(delta uint64) {
	m.totalExecs.Add(float64(delta))
}

// SetQueueLength sets the current queue length gauge.
func (m *Metrics) SetQueueLength(n int) {
	m.queueLength.Set(float64(n))
}

// SetUniqueCrashes sets the distinct-crash gauge.
func (m *Metrics) SetUniqueCrashes(n int) {
	m.uniqueCrashes.Set(float64(n))
}

// SetUniqueHangs sets the distinct-hang gauge.
func (m *Metrics) SetUniqueHangs(n int) {
	m.uniqueHangs.Set(float64(n))
}

// SetExecsPerSec sets the rolling exec-rate gauge.
func (m *Metrics) SetExecsPerSec(rate float64) {
	m.execsPerSec.Set(rate)
}
