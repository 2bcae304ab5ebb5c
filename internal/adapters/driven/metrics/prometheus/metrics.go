// Package prometheus records pipeline metrics with the Prometheus client.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.PipelineMetrics = (*Metrics)(nil)

// Metrics holds the pipeline collectors.
type Metrics struct {
	chunks           *prometheus.CounterVec
	embedCalls       *prometheus.CounterVec
	embedLatency     prometheus.Histogram
	batchSize        prometheus.Histogram
	batchDuration    prometheus.Histogram
	questions        *prometheus.CounterVec
	questionDuration prometheus.Histogram
	retrievals       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "chunks_processed_total",
			Help:      "Chunks resolved by the embedding worker, by outcome.",
		}, []string{"outcome"}),
		embedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "embedding_calls_total",
			Help:      "Embedding provider calls, by result.",
		}, []string{"result"}),
		embedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verity",
			Name:      "embedding_call_seconds",
			Help:      "Embedding provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verity",
			Name:      "embedding_batch_size",
			Help:      "Chunks claimed per embedding batch.",
			Buckets:   prometheus.LinearBuckets(1, 5, 10),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verity",
			Name:      "embedding_batch_seconds",
			Help:      "Wall time per embedding batch.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "questions_total",
			Help:      "Questions handled, by outcome.",
		}, []string{"outcome"}),
		questionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verity",
			Name:      "question_seconds",
			Help:      "Time to answer a question.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "retrievals_total",
			Help:      "Retrievals served, by provenance.",
		}, []string{"provenance"}),
	}

	for _, c := range []prometheus.Collector{
		m.chunks, m.embedCalls, m.embedLatency, m.batchSize,
		m.batchDuration, m.questions, m.questionDuration, m.retrievals,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ChunkProcessed(outcome string) {
	m.chunks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EmbeddingAttempt(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.embedCalls.WithLabelValues(result).Inc()
	m.embedLatency.Observe(d.Seconds())
}

func (m *Metrics) BatchCompleted(size int, d time.Duration) {
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(d.Seconds())
}

func (m *Metrics) QuestionAnswered(outcome string, d time.Duration) {
	m.questions.WithLabelValues(outcome).Inc()
	m.questionDuration.Observe(d.Seconds())
}

func (m *Metrics) RetrievalServed(provenance string) {
	m.retrievals.WithLabelValues(provenance).Inc()
}

// Noop discards all observations.
type Noop struct{}

var _ driven.PipelineMetrics = Noop{}

func (Noop) ChunkProcessed(string)                  {}
func (Noop) EmbeddingAttempt(time.Duration, error)  {}
func (Noop) BatchCompleted(int, time.Duration)      {}
func (Noop) QuestionAnswered(string, time.Duration) {}
func (Noop) RetrievalServed(string)                 {}
