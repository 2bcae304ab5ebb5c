package domain

import (
	"strings"
	"time"
)

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

// Document lifecycle states.
const (
	// DocumentNotStarted is a stored upload that has not been ingested.
	DocumentNotStarted DocumentStatus = "not_started"

	// DocumentProcessing has chunks, some of which are unresolved.
	DocumentProcessing DocumentStatus = "processing"

	// DocumentReady has every chunk embedded or skipped.
	DocumentReady DocumentStatus = "ready"

	// DocumentError produced no chunks or failed ingestion.
	DocumentError DocumentStatus = "error"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentNotStarted, DocumentProcessing, DocumentReady, DocumentError:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document represents an uploaded document.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// OwnerID is the user that uploaded the document.
	OwnerID string

	// Name is the display name, usually the original filename.
	Name string

	// MediaType is the MIME type of the stored blob.
	MediaType string

	// Size is the blob size in bytes.
	Size int64

	// StoragePointer is the opaque handle resolved by the object store.
	StoragePointer string

	// Status is the lifecycle state.
	Status DocumentStatus

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document was last changed.
	UpdatedAt time.Time
}

// ChunkStatus distinguishes the embedding state of a chunk.
type ChunkStatus string

// Chunk embedding states.
const (
	ChunkPending  ChunkStatus = "pending"
	ChunkEmbedded ChunkStatus = "embedded"
	ChunkSkipped  ChunkStatus = "skipped"
	ChunkFailed   ChunkStatus = "failed"
)

// IsResolved reports whether the chunk needs no further embedding work.
func (s ChunkStatus) IsResolved() bool {
	return s == ChunkEmbedded || s == ChunkSkipped
}

// Chunk metadata keys.
const (
	MetaWordCount      = "word_count"
	MetaCharacterCount = "character_count"
	MetaFailureReason  = "failure_reason"
	MetaAttempts       = "attempts"
)

// Chunk represents a bounded, ordered slice of a document's text.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the zero-based ordinal within the document.
	Position int

	// Embedding is nil until the chunk is embedded.
	Embedding []float32

	// Status is the embedding state.
	Status ChunkStatus

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the chunk was written.
	CreatedAt time.Time
}

// WordCount returns the recorded word count, computing it when absent.
func (c *Chunk) WordCount() int {
	if n, ok := MetaInt(c.Metadata, MetaWordCount); ok {
		return n
	}
	return CountWords(c.Content)
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// MetaInt reads an integer metadata value. JSON round-trips turn integers
// into float64, so both are accepted.
func MetaInt(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

// ChunkCounts aggregates a document's chunks by status.
type ChunkCounts struct {
	Total    int
	Pending  int
	Embedded int
	Skipped  int
	Failed   int
}

// Resolved returns the number of chunks that need no further work.
func (c ChunkCounts) Resolved() int {
	return c.Embedded + c.Skipped
}

// DocumentProgress is the status view returned to callers.
type DocumentProgress struct {
	DocumentID      string
	Status          DocumentStatus
	Counts          ChunkCounts
	ProgressPercent int
}

// NewDocumentProgress derives progress from counts.
func NewDocumentProgress(documentID string, status DocumentStatus, counts ChunkCounts) DocumentProgress {
	pct := 0
	if counts.Total > 0 {
		pct = (counts.Resolved()*100 + counts.Total/2) / counts.Total
	}
	return DocumentProgress{
		DocumentID:      documentID,
		Status:          status,
		Counts:          counts,
		ProgressPercent: pct,
	}
}

// DeriveStatus computes a document's status from its chunk counts.
// A document that was never ingested keeps its not_started state.
func DeriveStatus(current DocumentStatus, counts ChunkCounts) DocumentStatus {
	switch {
	case counts.Total == 0 && current == DocumentNotStarted:
		return DocumentNotStarted
	case counts.Total == 0:
		return DocumentError
	case counts.Resolved() == counts.Total:
		return DocumentReady
	default:
		return DocumentProcessing
	}
}
