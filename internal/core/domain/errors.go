package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist,
	// or exists but is not visible to the requesting owner.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedMediaType indicates no extractor handles a media type.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrNoExtractableContent indicates extraction and chunking produced nothing.
	ErrNoExtractableContent = errors.New("no extractable content")

	// ErrDocumentNotReady indicates a document has not finished embedding.
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrInvalidTransition indicates a task status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

		// ErrLockHeld indicates another worker holds the lease.
	ErrLockHeld = errors.New("lock held")

	// ErrClaimLost indicates a chunk write was refused because the worker's
	// claim expired and the chunk was taken or resolved by someone else.
	ErrClaimLost = errors.New("chunk claim lost")

	// Provider Errors.

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrProviderUnavailable indicates a provider call failed at the transport
	// or returned a non-success response. Callers may retry.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrEmbeddingFailed indicates a chunk exhausted its embedding retries.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrVectorIndexUnavailable indicates similarity ranking cannot be served.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)
