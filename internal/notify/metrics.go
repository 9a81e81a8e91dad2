package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts sent and failed messages per template.
type Metrics struct {
	Sent        *prometheus.CounterVec
	Failed      *prometheus.CounterVec
	SendLatency *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrygate_notifications_sent_total",
			Help: "Messages accepted by the mail provider",
		}, []string{"template", "locale"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entrygate_notifications_failed_total",
			Help: "Messages that could not be rendered or sent",
		}, []string{"template"}),
		SendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "entrygate_notification_send_duration_seconds",
			Help:    "Mail provider call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"template"}),
	}
}

func (m *Metrics) IncrementSent(template, locale string) {
	if m != nil {
		m.Sent.WithLabelValues(template, locale).Inc()
	}
}

func (m *Metrics) IncrementFailed(template string) {
	if m != nil {
		m.Failed.WithLabelValues(template).Inc()
	}
}

func (m *Metrics) ObserveSend(template string, start time.Time) {
	if m != nil {
		m.SendLatency.WithLabelValues(template).Observe(time.Since(start).Seconds())
	}
}
