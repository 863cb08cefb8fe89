package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters exported by the serving and billing paths.
type Metrics struct {
	Registry *prometheus.Registry

	// ChargesTotal counts charge attempts by channel (impression|click) and
	// outcome (charged|free|rejected|failed).
	ChargesTotal *prometheus.CounterVec

	// FraudRejectionsTotal counts clicks dropped by the fraud gate, by indicator.
	FraudRejectionsTotal *prometheus.CounterVec

	// AutoPausesTotal counts system-initiated pauses by reason code.
	AutoPausesTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ChargesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adlane",
			Name:      "charges_total",
			Help:      "Charge attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		FraudRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adlane",
			Name:      "fraud_rejections_total",
			Help:      "Clicks dropped by the fraud gate.",
		}, []string{"indicator"}),
		AutoPausesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adlane",
			Name:      "auto_pauses_total",
			Help:      "System-initiated ad pauses by reason.",
		}, []string{"reason"}),
	}
	m.Registry.MustRegister(m.ChargesTotal, m.FraudRejectionsTotal, m.AutoPausesTotal)
	return m
}
