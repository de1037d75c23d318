package visit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	visitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitorguard_visits_total",
			Help: "Total number of assessed visits",
		},
		[]string{"decision", "risk_label"},
	)

	riskScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visitorguard_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	providerLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visitorguard_provider_lookups_total",
			Help: "Total number of provider event detail lookups",
		},
		[]string{"outcome"},
	)
)

func recordAssessment(assessment RiskAssessment) {
	visitsTotal.WithLabelValues(string(assessment.Decision), string(assessment.RiskLabel)).Inc()
	riskScores.Observe(float64(assessment.RiskScore))
}
