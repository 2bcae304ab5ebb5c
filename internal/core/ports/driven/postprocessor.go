package driven

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// PostProcessor turns extracted text into chunks.
// PostProcessors are chained in a pipeline (e.g., chunking, statistics).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives the document, its extracted text and the chunks
	// produced so far. A chunker receives nil and returns new chunks; later
	// processors annotate or filter what they receive.
	Process(ctx context.Context, doc *domain.Document, text string, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the text through all processors in order.
	Process(ctx context.Context, doc *domain.Document, text string) ([]domain.Chunk, error)
}
