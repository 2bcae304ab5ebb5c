package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// sniffLen is how many leading bytes a media type detector sees.
const sniffLen = 512

// MediaTypeDetector guesses a media type from a filename and leading bytes.
type MediaTypeDetector func(name string, head []byte) string

// IngestionService stores uploads and turns them into chunks.
type IngestionService struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
	objects    driven.ObjectStore
	text       driven.TextSource
	pipeline   driven.PostProcessorPipeline
	detect     MediaTypeDetector
	now        func() time.Time
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	docStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	objects driven.ObjectStore,
	text driven.TextSource,
	pipeline driven.PostProcessorPipeline,
) *IngestionService {
	return &IngestionService{
		docStore:   docStore,
		chunkStore: chunkStore,
		objects:    objects,
		text:       text,
		pipeline:   pipeline,
		now:        time.Now,
	}
}

// SetMediaTypeDetector sets the detector used for uploads without a media type.
func (s *IngestionService) SetMediaTypeDetector(detect MediaTypeDetector) {
	s.detect = detect
}

// Upload stores the blob and creates a not_started document.
func (s *IngestionService) Upload(ctx context.Context, req driving.UploadRequest) (*domain.Document, error) {
	name := strings.TrimSpace(req.Name)
	if req.OwnerID == "" || name == "" || req.Content == nil {
		return nil, fmt.Errorf("upload needs an owner, a name and content: %w", domain.ErrInvalidInput)
	}

	content := req.Content
	mediaType := req.MediaType
	if mediaType == "" {
		br := bufio.NewReaderSize(req.Content, sniffLen)
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		mediaType = s.detectMediaType(name, head)
		content = br
	}

	pointer, size, err := s.objects.Put(ctx, name, content)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := s.now()
	doc := &domain.Document{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		Name:           name,
		MediaType:      mediaType,
		Size:           size,
		StoragePointer: pointer,
		Status:         domain.DocumentNotStarted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), pointer); delErr != nil {
			logger.Error("remove orphaned blob %s: %v", pointer, delErr)
		}
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.Info("Uploaded %s (%s, %d bytes) as %s", name, mediaType, size, doc.ID)
	return doc, nil
}

func (s *IngestionService) detectMediaType(name string, head []byte) string {
	if s.detect == nil {
		return "application/octet-stream"
	}
	return s.detect(name, head)
}

// Ingest extracts, chunks and stores a document's chunks, leaving the
// document in processing. Existing chunks are replaced. A document that
// yields no text or no chunks is marked error.
func (s *IngestionService) Ingest(ctx context.Context, ownerID, documentID string) (*driving.IngestResult, error) {
	logger.Section("Ingest")

	doc, err := s.docStore.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	text, err := s.text.FetchText(ctx, doc)
	if err != nil {
		return nil, s.fail(ctx, doc, fmt.Errorf("extract text: %w", err))
	}

	chunks, err := s.pipeline.Process(ctx, doc, text)
	if err != nil {
		return nil, s.fail(ctx, doc, fmt.Errorf("chunk text: %w", err))
	}

	if err := s.chunkStore.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, s.fail(ctx, doc, domain.ErrNoExtractableContent)
	}

	if err := s.docStore.UpdateDocumentStatus(ctx, doc.ID, domain.DocumentProcessing); err != nil {
		return nil, fmt.Errorf("update document status: %w", err)
	}
	doc.Status = domain.DocumentProcessing
	doc.UpdatedAt = s.now()

	logger.Debug("Ingested %s: %d chunks from %d bytes of text", doc.ID, len(chunks), len(text))
	return &driving.IngestResult{Document: doc, ChunkCount: len(chunks)}, nil
}

// fail marks the document as errored unless the caller gave up.
func (s *IngestionService) fail(ctx context.Context, doc *domain.Document, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := s.docStore.UpdateDocumentStatus(ctx, doc.ID, domain.DocumentError); err != nil {
		logger.Error("mark document %s as error: %v", doc.ID, err)
	}
	doc.Status = domain.DocumentError
	logger.Warn("Ingest %s failed: %v", doc.ID, cause)
	return cause
}
