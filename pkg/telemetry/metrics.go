package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/o3go/o3go/pkg/command"
)

// Metrics provides Prometheus metrics for command emission. It implements
// command.Observer.
type Metrics struct {
	config MetricsConfig

	commandsEmitted *prometheus.CounterVec
	emitDuration    *prometheus.HistogramVec
	errorsByKind    *prometheus.CounterVec
	engineCodes     *prometheus.CounterVec

	sessionsStarted *prometheus.CounterVec
	activeSessions  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled collector accepts every call and records nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		commandsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_emitted_total",
				Help:      "Total number of commands handed to a backend",
			},
			[]string{"command", "backend", "status"},
		),
		emitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "emit_duration_seconds",
				Help:      "Time spent in the backend per command",
				Buckets:   buckets,
			},
			[]string{"command", "backend"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed constructions and emissions by error kind",
			},
			[]string{"kind"},
		),
		engineCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_nonzero_codes_total",
				Help:      "Commands the engine answered with a nonzero code",
			},
			[]string{"command"},
		),
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Total number of sessions started",
			},
			[]string{"backend"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Current number of open sessions",
			},
		),
	}

	registry.MustRegister(
		m.commandsEmitted,
		m.emitDuration,
		m.errorsByKind,
		m.engineCodes,
		m.sessionsStarted,
		m.activeSessions,
	)

	return m
}

// Registry returns the collector's registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe implements command.Observer.
func (m *Metrics) Observe(ctx context.Context, ev command.Event) {
	if m.registry == nil {
		return
	}
	cmd := ev.Invocation.Command

	if ev.Err != nil {
		m.errorsByKind.WithLabelValues(string(command.KindOf(ev.Err))).Inc()
		if command.IsConstruction(ev.Err) {
			return
		}
		m.commandsEmitted.WithLabelValues(cmd, ev.Backend, "error").Inc()
	} else {
		m.commandsEmitted.WithLabelValues(cmd, ev.Backend, "ok").Inc()
		if !ev.Status.OK() {
			m.engineCodes.WithLabelValues(cmd).Inc()
		}
	}
	m.emitDuration.WithLabelValues(cmd, ev.Backend).Observe(ev.Duration.Seconds())
}

// RecordSessionStarted counts a new session.
func (m *Metrics) RecordSessionStarted(backend string) {
	if m.registry == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(backend).Inc()
	m.activeSessions.Inc()
}

// RecordSessionClosed counts a session end.
func (m *Metrics) RecordSessionClosed() {
	if m.registry == nil {
		return
	}
	m.activeSessions.Dec()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is done. It returns once the
// listener is bound, so a bad address is reported to the caller.
func (m *Metrics) Serve(ctx context.Context, logger zerolog.Logger) error {
	if !m.config.Enabled {
		return nil
	}

	ln, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return err
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Str("path", path).Msg("Serving metrics")
	return nil
}
