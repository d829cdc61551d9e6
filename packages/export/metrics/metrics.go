// Package metrics exposes Prometheus collectors for request dispatch and
// response streaming.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name
const Namespace = "httpbridge"

// OutcomeOK labels requests that produced a response
const OutcomeOK = "ok"

// Metrics holds the collectors updated by transports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ResponsesTotal   *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
	ActiveStreams    prometheus.Gauge
	StreamBytes      prometheus.Counter
	ClientsBuilt     *prometheus.CounterVec
	ServedTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "requests_total",
				Help:      "Total number of dispatched requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from dispatch to response head",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"method"},
		),
		ResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "responses_total",
				Help:      "Responses received by status class",
			},
			[]string{"class"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "requests_in_flight",
				Help:      "Requests waiting for a response head",
			},
		),
		ActiveStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "streams_active",
				Help:      "Response streams whose producer is still running",
			},
		),
		StreamBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "stream_bytes_total",
				Help:      "Body bytes delivered through streams",
			},
		),
		ClientsBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "clients_built_total",
				Help:      "HTTP clients constructed by transport flavour",
			},
			[]string{"flavour"},
		),
		ServedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "served_total",
				Help:      "Requests answered by the benchmark server by route and status class",
			},
			[]string{"route", "class"},
		),
		registry: reg,
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RequestStarted marks a request as in flight.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Inc()
}

// RequestFinished records the outcome of a dispatch. outcome is OutcomeOK
// or an error kind name; status is ignored for failures.
func (m *Metrics) RequestFinished(method, outcome string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsInFlight.Dec()
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
	if outcome == OutcomeOK {
		m.ResponsesTotal.WithLabelValues(StatusClass(status)).Inc()
	}
}

// StreamOpened counts a new live stream.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamClosed counts a stream whose producer has exited.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// StreamRead adds n delivered bytes.
func (m *Metrics) StreamRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StreamBytes.Add(float64(n))
}

// ClientBuilt counts a client construction for flavour ("async" or "sync").
func (m *Metrics) ClientBuilt(flavour string) {
	if m == nil {
		return
	}
	m.ClientsBuilt.WithLabelValues(flavour).Inc()
}

// RequestServed counts a request answered by the benchmark server.
func (m *Metrics) RequestServed(route string, status int) {
	if m == nil {
		return
	}
	m.ServedTotal.WithLabelValues(route, StatusClass(status)).Inc()
}

// StatusClass maps 200 to "2xx" and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
