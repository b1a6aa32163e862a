// Package metrics provides Prometheus metrics for the interaction loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ema_vision"

type Metrics struct {
	registry *prometheus.Registry

	TurnsStarted       prometheus.Counter
	TurnsFinished      *prometheus.CounterVec
	TurnsActive        prometheus.Gauge
	ResponderSeconds   *prometheus.HistogramVec
	ChunksSubmitted    prometheus.Counter
	RecognizerRestarts prometheus.Counter
}

// New registers all metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		TurnsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_started_total",
			Help:      "Total number of turns started by a final transcript",
		}),
		TurnsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_finished_total",
			Help:      "Total number of turns that ended, by outcome",
		}, []string{"outcome"}),
		TurnsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of turns in flight",
		}),
		ResponderSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "responder_latency_seconds",
			Help:      "Time from request to answer of the responder backend",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 10, 20, 30},
		}, []string{"backend"}),
		ChunksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_submitted_total",
			Help:      "Total number of synthesized audio chunks handed to the output device",
		}),
		RecognizerRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_restarts_total",
			Help:      "Total number of recognition sessions reopened after the engine ended one",
		}),
	}
}

func (m *Metrics) TurnStarted() {
	m.TurnsStarted.Inc()
	m.TurnsActive.Inc()
}

func (m *Metrics) TurnFinished(outcome string) {
	m.TurnsActive.Dec()
	m.TurnsFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ResponderLatency(backend string, latency time.Duration) {
	m.ResponderSeconds.WithLabelValues(backend).Observe(latency.Seconds())
}

func (m *Metrics) ChunkSubmitted() {
	m.ChunksSubmitted.Inc()
}

func (m *Metrics) RecognizerRestarted() {
	m.RecognizerRestarts.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
