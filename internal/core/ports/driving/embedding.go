package driving

import (
	"context"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// BatchScope selects the chunks a batch may claim.
type BatchScope struct {
	OwnerID    string
	DocumentID string // optional; empty embeds across all of the owner's documents
}

// BatchResult summarises one embedding run.
type BatchResult struct {
	// Total is the number of chunks claimed.
	Total int

	// Processed is the number resolved (embedded or skipped).
	Processed int

		Embedded int
	Skipped  int
	Failed   int

	// Lost counts chunks this run no longer owned when it came to record
	// them, because its claim expired and another worker took them over.
	Lost int


	// Documents lists the documents whose chunks were touched.
	Documents []string
}

// EmbeddingWorker embeds pending chunks.
type EmbeddingWorker interface {
	// RunBatch claims up to limit pending chunks and embeds them.
	RunBatch(ctx context.Context, scope BatchScope, limit int) (*BatchResult, error)
}

// StatusService reports document readiness.
type StatusService interface {
	// Reconcile recomputes a document's status from its chunks.
	Reconcile(ctx context.Context, documentID string) (domain.DocumentProgress, error)

	// GetDocumentStatus reconciles and reports an owner's document.
	GetDocumentStatus(ctx context.Context, ownerID, documentID string) (domain.DocumentProgress, error)
}
