// Package telemetry exposes kerntune's runtime counters to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerntune_loop_ticks_total",
			Help: "Control loop ticks by outcome",
		},
		[]string{"status"}, // sampled or error
	)

	workloadTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerntune_workload_transitions_total",
			Help: "Workload label changes observed by the control loop",
		},
		[]string{"from", "to"},
	)

	currentWorkload = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kerntune_workload_current",
			Help: "Current workload label (1 for the active label)",
		},
		[]string{"workload"},
	)

	parameterAppliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerntune_parameter_applies_total",
			Help: "Kernel parameter writes by parameter and outcome",
		},
		[]string{"parameter", "status"}, // applied or failed
	)

	recommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kerntune_recommendation_duration_seconds",
			Help:    "Time taken to produce a parameter recommendation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"strategy"}, // search or regression
	)

	predictedScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kerntune_predicted_score",
			Help: "Predicted performance score of the last recommended configuration",
		},
	)

	perfScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kerntune_perf_score",
			Help: "Measured performance score of the last sampling cycle",
		},
		[]string{"workload"},
	)

	samplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kerntune_samples_total",
			Help: "Snapshots captured by workload label",
		},
		[]string{"workload"},
	)
)

// ObserveTick counts one control loop tick.
func ObserveTick(status string) {
	loopTicksTotal.WithLabelValues(status).Inc()
}

// ObserveTransition records a workload label change and the new current label.
func ObserveTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	workloadTransitionsTotal.WithLabelValues(from, to).Inc()
	currentWorkload.Reset()
	currentWorkload.WithLabelValues(to).Set(1)
}

func ObserveApply(parameter, status string) {
	parameterAppliesTotal.WithLabelValues(parameter, status).Inc()
}

func ObserveRecommendation(strategy string, d time.Duration) {
	recommendationDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func SetPredictedScore(score float64) {
	predictedScore.Set(score)
}

func SetPerfScore(workload string, score float64) {
	perfScore.WithLabelValues(workload).Set(score)
}

func AddSamples(workload string, n int) {
	samplesTotal.WithLabelValues(workload).Add(float64(n))
}
