package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks classification verdicts, upload failures, ledger writes and
// intent writes. All methods are safe on a nil receiver.
type Metrics struct {
	Classifications       *prometheus.CounterVec
	ClassificationLatency prometheus.Histogram
	UploadFailures        *prometheus.CounterVec
	LedgerAppends         *prometheus.CounterVec
	IntentWrites          *prometheus.CounterVec
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmvagent_classifications_total",
			Help: "Document classifications by verdict",
		}, []string{"verdict"}),
		ClassificationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dmvagent_classification_duration_seconds",
			Help:    "Duration of classification calls including retries",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		UploadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmvagent_upload_failures_total",
			Help: "Failed uploads by error kind",
		}, []string{"kind"}),
		LedgerAppends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmvagent_ledger_appends_total",
			Help: "Verified-document ledger results by outcome",
		}, []string{"outcome"}),
		IntentWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dmvagent_intent_writes_total",
			Help: "Intent writes by source and result",
		}, []string{"source", "result"}),
	}
}

func (m *Metrics) ObserveClassification(verdict string, start time.Time) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(verdict).Inc()
	m.ClassificationLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncUploadFailure(kind string) {
	if m == nil {
		return
	}
	m.UploadFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncLedger(outcome string) {
	if m == nil {
		return
	}
	m.LedgerAppends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncIntentWrite(source, result string) {
	if m == nil {
		return
	}
	m.IntentWrites.WithLabelValues(source, result).Inc()
}
