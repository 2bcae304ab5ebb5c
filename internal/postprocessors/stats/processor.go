// Package stats annotates chunks with word and character counts.
package stats

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// Processor records word_count and character_count on every chunk.
type Processor struct{}

// New creates a stats processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "stats"
}

// Process annotates the chunks in place and returns them.
func (p *Processor) Process(_ context.Context, _ *domain.Document, _ string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		chunks[i].Metadata[domain.MetaWordCount] = domain.CountWords(chunks[i].Content)
		chunks[i].Metadata[domain.MetaCharacterCount] = utf8.RuneCountInString(chunks[i].Content)
	}
	return chunks, nil
}
