// Package metrics exposes ingestion counters in Prometheus form.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for Metrics.Files.
const (
	ResultOK          = "ok"
	ResultUnsupported = "unsupported"
	ResultFailed      = "failed"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "applicants"

// Metrics holds the ingestion collectors.
type Metrics struct {
	Files      *prometheus.CounterVec
	Applicants prometheus.Counter
	Dropped    *prometheus.CounterVec
	Created    *prometheus.CounterVec
	Warnings   *prometheus.CounterVec
	Duration   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests use.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Documents ingested, by result.",
		}, []string{"result"}),
		Applicants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applicants_inserted_total",
			Help:      "Applicant rows inserted.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applicants_dropped_total",
			Help:      "Applicant rows not inserted, by reason.",
		}, []string{"reason"}),
		Created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_created_total",
			Help:      "Reference entities and programs created, by kind.",
		}, []string{"kind"}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Recoverable parse conditions, by code.",
		}, []string{"code"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Wall time of one document ingestion.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Files, m.Applicants, m.Dropped, m.Created, m.Warnings, m.Duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// File records one finished document.
func (m *Metrics) File(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(result).Inc()
	m.Duration.Observe(d.Seconds())
}

// Applicant records one inserted applicant.
func (m *Metrics) Applicant() {
	if m == nil {
		return
	}
	m.Applicants.Inc()
}

// Drop records one applicant row that was not inserted.
func (m *Metrics) Drop(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

// Create records n new entities of kind.
func (m *Metrics) Create(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Created.WithLabelValues(kind).Add(float64(n))
}

// Warn records one warning.
func (m *Metrics) Warn(code string) {
	if m == nil {
		return
	}
	m.Warnings.WithLabelValues(code).Inc()
}
