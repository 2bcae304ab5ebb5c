// Package mcp provides an MCP (Model Context Protocol) server adapter for Verity.
// It lets AI assistants ask questions against a user's documents and inspect
// their processing state and tasks.
package mcp

import "errors"

var (
	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("mcp: answer service is required")

	// ErrMissingOwner is returned when no owner is configured.
	ErrMissingOwner = errors.New("mcp: owner ID is required")
)
