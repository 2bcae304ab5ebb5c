// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// A document moves through upload, ingestion (extract and chunk), paced
// embedding batches and reconciliation. Questions are answered by the
// AnswerService from the chunks that reached the index.
//
// Services depend only on domain types and port interfaces.
package services
