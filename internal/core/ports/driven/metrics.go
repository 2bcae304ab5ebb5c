package driven

import "time"

// PipelineMetrics records pipeline activity.
type PipelineMetrics interface {
	// ChunkProcessed counts a chunk outcome ("embedded", "skipped", "failed").
	ChunkProcessed(outcome string)

	// EmbeddingAttempt observes one provider call.
	EmbeddingAttempt(d time.Duration, err error)

	// BatchCompleted observes one embedding batch.
	BatchCompleted(size int, d time.Duration)

	// QuestionAnswered counts a question outcome: an answer mode or an error kind.
	QuestionAnswered(outcome string, d time.Duration)

	// RetrievalServed counts a retrieval by provenance.
	RetrievalServed(provenance string)
}
