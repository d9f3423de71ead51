package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the global metrics container exposed on the Prometheus endpoint.
type Metrics struct {
	// Broker metrics
	CommandsTotal       *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
	BrokerReconnects    prometheus.Counter
	PublishFailures     *prometheus.CounterVec

	// World / simulation metrics
	WorldsActive      prometheus.Gauge
	ShipsActive       *prometheus.GaugeVec
	StepDuration      *prometheus.HistogramVec
	SimulatedSeconds  *prometheus.CounterVec

	// System metrics
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Service info
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics builds and registers the metric set under the given
// namespace/subsystem.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "commands_total",
				Help:      "Total number of broker commands processed",
			},
			[]string{"command", "status"},
		),

		CommandDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "command_duration_seconds",
				Help:      "Duration of broker command handling",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"command"},
		),

		BrokerReconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "broker_reconnects_total",
				Help:      "Total number of broker reconnect attempts",
			},
		),

		PublishFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "publish_failures_total",
				Help:      "Total number of failed broker publish attempts",
			},
			[]string{"routing_key"},
		),

		WorldsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "worlds_active",
				Help:      "Current number of registered worlds",
			},
		),

		ShipsActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ships_active",
				Help:      "Current number of ships loaded per world",
			},
			[]string{"world"},
		),

		StepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "step_duration_seconds",
				Help:      "Wall-clock duration of one simulator step",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"world"},
		),

		SimulatedSeconds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "simulated_seconds_total",
				Help:      "Total simulated clock-seconds advanced per world",
			},
			[]string{"world"},
		),

		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the process-wide metrics, initializing a default set if none
// has been built yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("shipnetsim", "")
	}
	return defaultMetrics
}

// RecordCommand records a processed broker command.
func (m *Metrics) RecordCommand(command string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}

	m.CommandsTotal.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordReconnect records one broker reconnect attempt.
func (m *Metrics) RecordReconnect() {
	m.BrokerReconnects.Inc()
}

// RecordPublishFailure records a failed publish on the given routing key.
func (m *Metrics) RecordPublishFailure(routingKey string) {
	m.PublishFailures.WithLabelValues(routingKey).Inc()
}

// SetWorldsActive sets the current count of registered worlds.
func (m *Metrics) SetWorldsActive(count int) {
	m.WorldsActive.Set(float64(count))
}

// SetShipsActive sets the current ship count for a world.
func (m *Metrics) SetShipsActive(world string, count int) {
	m.ShipsActive.WithLabelValues(world).Set(float64(count))
}

// RecordStep records the wall-clock duration of one simulator step.
func (m *Metrics) RecordStep(world string, duration time.Duration) {
	m.StepDuration.WithLabelValues(world).Observe(duration.Seconds())
}

// AddSimulatedSeconds accumulates simulated clock-seconds advanced for a world.
func (m *Metrics) AddSimulatedSeconds(world string, seconds float64) {
	m.SimulatedSeconds.WithLabelValues(world).Add(seconds)
}

// SetServiceInfo sets the service version/environment info gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts the HTTP server exposing /metrics and /health.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write failure is not actionable
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
