package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for booking
// conversation flows.
type ConversationMetrics struct {
	turnsTotal       *prometheus.CounterVec
	nluFallbackTotal *prometheus.CounterVec
	bookingsTotal    *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docadesk",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed conversation turns",
		}, []string{"stage", "intent"}),
		nluFallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docadesk",
			Subsystem: "conversation",
			Name:      "nlu_fallback_total",
			Help:      "Total NLU operations served by the heuristic fallback",
		}, []string{"operation"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docadesk",
			Subsystem: "booking",
			Name:      "outcomes_total",
			Help:      "Total booking outcomes by final state",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docadesk",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of conversation turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.nluFallbackTotal, m.bookingsTotal, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(stage, intent string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(stage, intent).Inc()
}

func (m *ConversationMetrics) ObserveFallback(operation string) {
	if m == nil {
		return
	}
	m.nluFallbackTotal.WithLabelValues(operation).Inc()
}

func (m *ConversationMetrics) ObserveBookingOutcome(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *ConversationMetrics) ObserveTurnLatency(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(stage).Observe(seconds)
}
