// Package metrics provides Prometheus metrics for ragchat
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ragchat/internal/domain"
)

// Metrics holds all Prometheus metrics for ragchat
type Metrics struct {
	Registry *prometheus.Registry

	// Ingestion metrics
	DocumentsLoadedTotal     prometheus.Counter
	DocumentsSkippedTotal    *prometheus.CounterVec
	SegmentsEmbeddedTotal    prometheus.Counter
	SegmentsStoredTotal      prometheus.Counter
	EmbeddingRequestDuration *prometheus.HistogramVec
	StoreSegments            prometheus.Gauge

	// Question metrics
	QuestionsTotal  *prometheus.CounterVec
	AnswerDuration  prometheus.Histogram
	QuestionsActive prometheus.Gauge
}

// New creates all metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		DocumentsLoadedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ragchat_documents_loaded_total",
			Help: "Total number of documents loaded from the knowledge base",
		}),
		DocumentsSkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_documents_skipped_total",
			Help: "Total number of documents skipped, by reason",
		}, []string{"reason"}),
		SegmentsEmbeddedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ragchat_segments_embedded_total",
			Help: "Total number of segments embedded during ingestion",
		}),
		SegmentsStoredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ragchat_segments_stored_total",
			Help: "Total number of new segments written to the vector store",
		}),
		EmbeddingRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragchat_embedding_request_duration_seconds",
			Help:    "Duration of embedding requests in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
		StoreSegments: f.NewGauge(prometheus.GaugeOpts{
			Name: "ragchat_store_segments",
			Help: "Number of segments in the vector store after the last ingestion",
		}),

		QuestionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragchat_questions_total",
			Help: "Total number of questions, by outcome",
		}, []string{"outcome"}),
		AnswerDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragchat_answer_duration_seconds",
			Help:    "Time from question to final answer in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		QuestionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "ragchat_questions_active",
			Help: "Number of questions currently being answered",
		}),
	}
}

// RecordLoad records the documents accepted and skipped by one load.
func (m *Metrics) RecordLoad(loaded int, skipped []domain.Skip) {
	m.DocumentsLoadedTotal.Add(float64(loaded))
	for _, s := range skipped {
		m.DocumentsSkippedTotal.WithLabelValues(SkipReason(s)).Inc()
	}
}

// RecordEmbedding records one embedding request.
func (m *Metrics) RecordEmbedding(segments int, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		m.SegmentsEmbeddedTotal.Add(float64(segments))
	}
	m.EmbeddingRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordQuestion records a finished question. outcome is one of
// "answered", "failed" or "cancelled".
func (m *Metrics) RecordQuestion(outcome string, duration time.Duration) {
	m.QuestionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "answered" {
		m.AnswerDuration.Observe(duration.Seconds())
	}
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// SkipReason maps a skip to its metric label.
func SkipReason(s domain.Skip) string {
	switch {
	case errors.Is(s.Kind, domain.ErrEmptyContent):
		return "empty_content"
	case errors.Is(s.Kind, domain.ErrParseFailure):
		return "parse_failure"
	default:
		return "other"
	}
}
