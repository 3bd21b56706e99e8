package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	uploads          prometheus.Counter
	chunksIndexed    prometheus.Counter
	questions        *prometheus.CounterVec
	upstreamFailures prometheus.Counter
	retrievedChunks  prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "askpdf",
			Name:      "uploads_total",
			Help:      "Documents ingested successfully.",
		}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "askpdf",
			Name:      "chunks_indexed_total",
			Help:      "Chunks written to the vector index.",
		}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askpdf",
			Name:      "questions_total",
			Help:      "Document questions answered, by persona.",
		}, []string{"persona"}),
		upstreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "askpdf",
			Name:      "upstream_failures_total",
			Help:      "Requests failed by the language model, embedding model or OCR.",
		}),
		retrievedChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "askpdf",
			Name:      "retrieved_chunks",
			Help:      "Chunks retrieved per question.",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 20, 50},
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads,
		m.chunksIndexed,
		m.questions,
		m.upstreamFailures,
		m.retrievedChunks,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
