// Package metrics exposes Prometheus counters for formatted documents.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "naromat"

// Document outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics holds the collectors on a private registry so tests and
// multiple servers never collide on the global one.
type Metrics struct {
	Registry     *prometheus.Registry
	Documents    *prometheus.CounterVec
	Lines        prometheus.Counter
	CommentLines prometheus.Counter
	Duration     prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"outcome"}),
		Lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Lines written to formatted output.",
		}),
		CommentLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_lines_total",
			Help:      "Comment lines dropped from input.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "format_duration_seconds",
			Help:      "Time spent loading, formatting and writing one document.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	m.Registry.MustRegister(
		m.Documents,
		m.Lines,
		m.CommentLines,
		m.Duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDocument records one processed document.
func (m *Metrics) ObserveDocument(outcome string, lines, comments int, took time.Duration) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCompleted {
		return
	}
	m.Lines.Add(float64(lines))
	m.CommentLines.Add(float64(comments))
	m.Duration.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
