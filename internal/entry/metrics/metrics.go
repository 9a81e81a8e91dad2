package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of the admission counter.
const (
	OutcomeAdmitted           = "admitted"
	OutcomeInvalid            = "invalid"
	OutcomeDuplicate          = "duplicate"
	OutcomeAdmissionFailed    = "admission_failed"
	OutcomeConfirmationFailed = "confirmation_failed"
	OutcomeSchedulingFailed   = "scheduling_failed"
)

// Metrics provides observability for the admission pipeline.
type Metrics struct {
	// Submissions by final outcome. An admitted entry whose confirmation
	// failed counts under both admitted and confirmation_failed.
	Outcomes *prometheus.CounterVec

	// Per-stage latency (validate, admit, confirm, schedule)
	StageLatency *prometheus.HistogramVec

	// Scheduling-only repairs by result
	Repairs *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrygate_submissions_total",
			Help: "Entry submissions by outcome",
		}, []string{"outcome"}),

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "entrygate_pipeline_stage_duration_seconds",
			Help:    "Duration of each admission pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}),

		Repairs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrygate_schedule_repairs_total",
			Help: "Scheduling-only repairs by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncrementRepair(result string) {
	if m != nil {
		m.Repairs.WithLabelValues(result).Inc()
	}
}
