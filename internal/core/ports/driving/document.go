package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// DocumentService manages a user's documents.
type DocumentService interface {
	// List returns the owner's documents, newest first.
	List(ctx context.Context, ownerID string) ([]domain.Document, error)

	// Get retrieves a document owned by ownerID.
	Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error)

	// Chunks returns the document's chunks in order.
	Chunks(ctx context.Context, ownerID, documentID string) ([]domain.Chunk, error)

	// Delete removes the document, its chunks and its stored blob.
	Delete(ctx context.Context, ownerID, documentID string) error
}

// UploadRequest describes a new upload.
type UploadRequest struct {
	OwnerID   string
	Name      string
	MediaType string // detected from Name when empty
	Content   io.Reader
}

// IngestResult is the outcome of ingesting a document.
type IngestResult struct {
	Document   *domain.Document
	ChunkCount int
}

// IngestionService stores uploads and turns them into chunks.
type IngestionService interface {
	// Upload stores the blob and creates a not_started document.
	Upload(ctx context.Context, req UploadRequest) (*domain.Document, error)

	// Ingest extracts, chunks and persists a document's chunks, leaving it
	// in processing. Re-ingesting replaces existing chunks.
	Ingest(ctx context.Context, ownerID, documentID string) (*IngestResult, error)
}

// PipelineResult summarises a full pipeline run.
type PipelineResult struct {
	Ingest   *IngestResult
	Batches  int
	Embedded int
	Skipped  int
	Failed   int
	Progress domain.DocumentProgress
}

// Pipeline drives a document through every stage.
type Pipeline interface {
	// Process ingests the document, then runs embedding batches until nothing
	// is pending or maxRounds batches have run, then reconciles.
	Process(ctx context.Context, ownerID, documentID string, maxRounds int) (*PipelineResult, error)
}
