package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure Reconciler implements the interface.
var _ driving.StatusService = (*Reconciler)(nil)

// Reconciler derives document status from chunk counts.
// Status is never trusted from the document row alone.
type Reconciler struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
}

// NewReconciler creates a new reconciler.
func NewReconciler(docStore driven.DocumentStore, chunkStore driven.ChunkStore) *Reconciler {
	return &Reconciler{docStore: docStore, chunkStore: chunkStore}
}

// Reconcile recomputes and, when it changed, persists a document's status.
func (r *Reconciler) Reconcile(ctx context.Context, documentID string) (domain.DocumentProgress, error) {
	doc, err := r.docStore.GetDocumentByID(ctx, documentID)
	if err != nil {
		return domain.DocumentProgress{}, fmt.Errorf("get document: %w", err)
	}
	return r.reconcile(ctx, doc)
}

// GetDocumentStatus reconciles an owner's document and reports its progress.
func (r *Reconciler) GetDocumentStatus(ctx context.Context, ownerID, documentID string) (domain.DocumentProgress, error) {
	doc, err := r.docStore.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return domain.DocumentProgress{}, fmt.Errorf("get document: %w", err)
	}
	return r.reconcile(ctx, doc)
}

func (r *Reconciler) reconcile(ctx context.Context, doc *domain.Document) (domain.DocumentProgress, error) {
	counts, err := r.chunkStore.CountChunks(ctx, doc.ID)
	if err != nil {
		return domain.DocumentProgress{}, fmt.Errorf("count chunks: %w", err)
	}

	status := domain.DeriveStatus(doc.Status, counts)
	if status != doc.Status {
		if err := r.docStore.UpdateDocumentStatus(ctx, doc.ID, status); err != nil {
			return domain.DocumentProgress{}, fmt.Errorf("update document status: %w", err)
		}
		logger.Debug("Document %s: %s -> %s (%d/%d resolved)",
			doc.ID, doc.Status, status, counts.Resolved(), counts.Total)
		doc.Status = status
		doc.UpdatedAt = time.Now()
	}

	return domain.NewDocumentProgress(doc.ID, status, counts), nil
}
