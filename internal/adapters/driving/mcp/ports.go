package mcp

import (
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// OwnerID is the user every tool call acts as.
	OwnerID string

	// Answer answers questions.
	Answer driving.AnswerService

	// Status reports document readiness.
	Status driving.StatusService

	// Documents lists and reads documents.
	Documents driving.DocumentService

	// Tasks lists tasks.
	Tasks driving.TaskService
}

// Validate ensures all required ports are set.
// Status, Documents and Tasks are optional; their tools report an error when absent.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}
