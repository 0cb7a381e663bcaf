package output

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// PrometheusMetrics exports sanitizer activity. Line totals are read from
// the shared domain.ProcessingMetrics so the two never disagree.
type PrometheusMetrics struct {
	linesTotal      prometheus.CounterFunc
	fragmentsTotal  *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	processingTime  prometheus.Histogram
	reloadsTotal    *prometheus.CounterVec
	processedResult *prometheus.CounterVec
	memoryUsage     prometheus.GaugeFunc

	registry *prometheus.Registry
	server   *http.Server
	mu       sync.Mutex
}

type MetricsConfig struct {
	Addr string
	Path string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr: ":9464",
		Path: "/metrics",
	}
}

// NewPrometheusMetrics registers the collectors on a private registry.
func NewPrometheusMetrics(namespace string, internalMetrics *domain.ProcessingMetrics) *PrometheusMetrics {
	if namespace == "" {
		namespace = "safeterm"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &PrometheusMetrics{registry: reg}

	m.linesTotal = factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lines_total",
		Help:      "Total number of lines sanitized",
	}, func() float64 {
		if internalMetrics != nil {
			return float64(internalMetrics.TotalLines())
		}
		return 0
	})

	m.fragmentsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fragments_total",
		Help:      "Escape fragments seen, by classification",
	}, []string{"class"})

	m.bytesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_total",
		Help:      "Bytes read and written",
	}, []string{"direction"})

	m.processingTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "processing_duration_seconds",
		Help:      "Time spent sanitizing each line",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
	})

	m.reloadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "config_reloads_total",
		Help:      "Configuration reloads by outcome",
	}, []string{"outcome"})

	m.processedResult = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inputs_processed_total",
		Help:      "Processed inputs by result",
	}, []string{"result"})

	m.memoryUsage = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_bytes",
		Help:      "Current heap allocation in bytes",
	}, func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.Alloc)
	})

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) ObserveLine(redacted, allowed, inputBytes, outputBytes int) {
	if redacted > 0 {
		m.fragmentsTotal.WithLabelValues("redacted").Add(float64(redacted))
	}
	if allowed > 0 {
		m.fragmentsTotal.WithLabelValues("allowed_escape").Add(float64(allowed))
	}
	m.bytesTotal.WithLabelValues("in").Add(float64(inputBytes))
	m.bytesTotal.WithLabelValues("out").Add(float64(outputBytes))
}

func (m *PrometheusMetrics) ObserveProcessingTime(seconds float64) {
	m.processingTime.Observe(seconds)
}

func (m *PrometheusMetrics) IncrementReloads(outcome string) {
	m.reloadsTotal.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) IncrementProcessedByResult(result string) {
	m.processedResult.WithLabelValues(result).Inc()
}

// StartServer serves metrics on config.Path and, when ready is non-nil, a
// readiness check on /ready.
func (m *PrometheusMetrics) StartServer(config MetricsConfig, ready http.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(config.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	if ready != nil {
		mux.Handle("/ready", ready)
	}

	m.server = &http.Server{
		Addr:              config.Addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", config.Addr).Str("path", config.Path).Msg("Starting Prometheus metrics server")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

func (m *PrometheusMetrics) StopServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return m.server.Close()
	}
	return nil
}
