// Package domain defines the core business entities for Verity.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded document and its lifecycle status
//   - Chunk: A bounded slice of a document, the unit of embedding and retrieval
//   - ChatExchange: One question and its answer
//   - Task: An actionable item, entered manually or derived from an answer
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
