package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.Pipeline = (*Pipeline)(nil)

// DefaultMaxRounds bounds embedding rounds when the caller passes none.
const DefaultMaxRounds = 10

// Pipeline drives a document from upload to ready.
type Pipeline struct {
	ingestion driving.IngestionService
	worker    driving.EmbeddingWorker
	status    driving.StatusService
}

// NewPipeline creates a pipeline. The worker is optional (can be nil);
// without it documents are ingested and left processing.
func NewPipeline(
	ingestion driving.IngestionService,
	worker driving.EmbeddingWorker,
	status driving.StatusService,
) *Pipeline {
	return &Pipeline{ingestion: ingestion, worker: worker, status: status}
}

// Process ingests the document, embeds it round by round until nothing is
// claimable or maxRounds is reached, then reconciles.
func (p *Pipeline) Process(ctx context.Context, ownerID, documentID string, maxRounds int) (*driving.PipelineResult, error) {
	ingest, err := p.ingestion.Ingest(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	result := &driving.PipelineResult{Ingest: ingest}

	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	if p.worker != nil {
		scope := driving.BatchScope{OwnerID: ownerID, DocumentID: documentID}
		for round := 0; round < maxRounds; round++ {
			batch, err := p.worker.RunBatch(ctx, scope, DefaultClaimLimit)
			if errors.Is(err, domain.ErrEmbeddingUnavailable) {
				logger.Warn("No embedding provider configured, leaving %s processing", documentID)
				break
			}
			if batch != nil && batch.Total > 0 {
				result.Batches++
				result.Embedded += batch.Embedded
				result.Skipped += batch.Skipped
			}
			if err != nil {
				return result, fmt.Errorf("embed round %d: %w", round+1, err)
			}
			if batch.Total == 0 {
				break
			}
			logger.Debug("Round %d: %d embedded, %d skipped, %d failed",
				round+1, batch.Embedded, batch.Skipped, batch.Failed)
		}
	}

	progress, err := p.status.Reconcile(ctx, documentID)
	if err != nil {
		return result, err
	}
	result.Progress = progress
	result.Failed = progress.Counts.Failed
	return result, nil
}
