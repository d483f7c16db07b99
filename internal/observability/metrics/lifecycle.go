package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

// LifecycleMetrics observes extraction, mirror, delete and undo outcomes.
type LifecycleMetrics struct {
	service string

	extractionTotal    *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionInFlight prometheus.Gauge
	mirrorTotal        *prometheus.CounterVec
	deleteTotal        *prometheus.CounterVec
	undoTotal          *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

// NewLifecycleMetrics registers the collectors on registerer, or on a private
// registry when registerer is nil.
func NewLifecycleMetrics(service string, registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardsnap",
			Subsystem: "lifecycle",
			Name:      "extraction_total",
			Help:      "Total card extractions by outcome.",
		},
		[]string{"service", "outcome"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cardsnap",
			Subsystem: "lifecycle",
			Name:      "extraction_duration_seconds",
			Help:      "Extraction round-trip duration in seconds by outcome.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"service", "outcome"},
	)
	extractionInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cardsnap",
			Subsystem: "lifecycle",
			Name:      "extraction_in_flight",
			Help:      "Number of extractions awaiting the remote service.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	mirrorTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardsnap",
			Subsystem: "lifecycle",
			Name:      "mirror_total",
			Help:      "Total mirror attempts by status.",
		},
		[]string{"service", "status"},
	)
	deleteTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardsnap",
			Subsystem: "lifecycle",
			Name:      "delete_total",
			Help:      "Total deleted cards.",
		},
		[]string{"service"},
	)
	undoTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardsnap",
			Subsystem: "lifecycle",
			Name:      "undo_total",
			Help:      "Total undo requests by status.",
		},
		[]string{"service", "status"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cardsnap",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(extractionTotal, extractionDuration, extractionInFlight, mirrorTotal, deleteTotal, undoTotal, breakerState)

	return &LifecycleMetrics{
		service:            service,
		extractionTotal:    extractionTotal,
		extractionDuration: extractionDuration,
		extractionInFlight: extractionInFlight,
		mirrorTotal:        mirrorTotal,
		deleteTotal:        deleteTotal,
		undoTotal:          undoTotal,
		breakerState:       breakerState,
	}
}

func (m *LifecycleMetrics) StartExtraction() {
	m.extractionInFlight.Inc()
}

func (m *LifecycleMetrics) FinishExtraction(outcome string, seconds float64) {
	m.extractionInFlight.Dec()
	if outcome == "" {
		outcome = "unknown"
	}
	m.extractionTotal.WithLabelValues(m.service, outcome).Inc()
	m.extractionDuration.WithLabelValues(m.service, outcome).Observe(seconds)
}

func (m *LifecycleMetrics) ObserveMirror(err error) {
	m.mirrorTotal.WithLabelValues(m.service, statusOf(err)).Inc()
}

func (m *LifecycleMetrics) ObserveDelete() {
	m.deleteTotal.WithLabelValues(m.service).Inc()
}

func (m *LifecycleMetrics) ObserveUndo(err error) {
	status := statusOf(err)
	if errors.Is(err, domain.ErrUndoExpired) {
		status = "expired"
	}
	m.undoTotal.WithLabelValues(m.service, status).Inc()
}

// ObserveBreaker records a breaker transition reported by resilience.Guard.
func (m *LifecycleMetrics) ObserveBreaker(operation, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
