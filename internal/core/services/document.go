package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages a user's documents.
type DocumentService struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
	objects    driven.ObjectStore
}

// NewDocumentService creates a new document service.
// The objects parameter is optional (can be nil); blobs are then left in place.
func NewDocumentService(
	docStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	objects driven.ObjectStore,
) *DocumentService {
	return &DocumentService{
		docStore:   docStore,
		chunkStore: chunkStore,
		objects:    objects,
	}
}

// List returns the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx, ownerID)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, ownerID, documentID)
}

// Chunks returns the document's chunks in position order.
func (s *DocumentService) Chunks(ctx context.Context, ownerID, documentID string) ([]domain.Chunk, error) {
	// Verify document exists
	if _, err := s.docStore.GetDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	return s.chunkStore.GetChunks(ctx, documentID)
}

// Delete removes the document and its chunks, then its stored blob.
// A blob that cannot be removed is logged and left behind.
func (s *DocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.docStore.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	if err := s.docStore.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if s.objects != nil && doc.StoragePointer != "" {
		if err := s.objects.Delete(ctx, doc.StoragePointer); err != nil {
			logger.Error("delete blob %s for document %s: %v", doc.StoragePointer, doc.ID, err)
		}
	}
	return nil
}
