package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_ask_duration_seconds",
			Help:    "Question processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	AskTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_ask_total",
			Help: "Total number of questions processed",
		},
		[]string{"status"},
	)

	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_ingest_documents_total",
			Help: "Total number of documents ingested",
		},
		[]string{"status"},
	)

	IngestChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_ingest_chunks",
			Help:    "Number of chunks created per upload",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
	)

	RetrievedChunks = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_retrieved_chunks",
			Help:    "Number of chunks returned per retrieval",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
		[]string{"source"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docqa_active_sessions",
			Help: "Number of live sessions",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		AskDuration,
		AskTotal,
		IngestTotal,
		IngestChunks,
		RetrievedChunks,
		LLMTokensUsed,
		ActiveSessions,
	)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
