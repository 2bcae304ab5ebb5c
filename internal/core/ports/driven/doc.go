// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore, ChunkStore, VectorSearcher: document and chunk persistence
//   - ChatStore, TaskStore: exchange log and task persistence
//   - ObjectStore: raw upload blobs
//   - Normaliser, NormaliserRegistry, TextSource: text extraction
//   - ConfigStore, PromptStore: configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: without it documents cannot be embedded and retrieval
//     uses the recency fallback.
//   - LLMService: without it questions cannot be answered.
//   - Locker: without it the scheduler relies on chunk claims alone.
//   - PipelineMetrics: without it nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
