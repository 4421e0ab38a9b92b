package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestConversationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.ObserveTurn("date_selection", "proceed")
	m.ObserveFallback("detect_intent")
	m.ObserveBookingOutcome("confirmed")
	m.ObserveTurnLatency("date_selection", 0.5)
}

func TestConversationMetricsNilSafe(t *testing.T) {
	var m *ConversationMetrics
	m.ObserveTurn("stage", "intent")
	m.ObserveFallback("operation")
	m.ObserveBookingOutcome("cancelled")
	m.ObserveTurnLatency("stage", 0.1)
}
