package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question   string `json:"question" jsonschema:"the compliance question to answer"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"restrict the answer to one document"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer      string          `json:"answer"`
	Mode        string          `json:"mode"`
	Provenance  string          `json:"provenance"`
	Excerpts    []ExcerptOutput `json:"excerpts"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// ExcerptOutput is a document excerpt that grounded an answer.
type ExcerptOutput struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Position     int     `json:"position"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}

// DocumentStatusInput is the input schema for the document_status tool.
type DocumentStatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to report on"`
}

// DocumentStatusOutput reports a document's readiness.
type DocumentStatusOutput struct {
	DocumentID      string `json:"document_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	Total           int    `json:"total_chunks"`
	Embedded        int    `json:"embedded"`
	Skipped         int    `json:"skipped"`
	Pending         int    `json:"pending"`
	Failed          int    `json:"failed"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct{}

// ListDocumentsOutput lists the owner's documents.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput is a document summary.
type DocumentOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Status    string `json:"status"`
	URI       string `json:"uri"`
}

// ListTasksInput is the input schema for the list_tasks tool.
type ListTasksInput struct {
	Status     string `json:"status,omitempty" jsonschema:"filter by status: open, in_progress or done"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"filter by document"`
}

// ListTasksOutput lists tasks.
type ListTasksOutput struct {
	Tasks []TaskOutput `json:"tasks"`
	Count int          `json:"count"`
}

// TaskOutput is a task summary.
type TaskOutput struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Source      string `json:"source"`
	DocumentID  string `json:"document_id,omitempty"`
}

var errServiceUnavailable = errors.New("service not available")

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a compliance question from the user's uploaded documents",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Report whether a document has finished processing",
	}, s.handleDocumentStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the user's uploaded documents",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List compliance tasks, optionally filtered",
	}, s.handleListTasks)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Answer.Ask(ctx, domain.AskRequest{
		Query:      input.Question,
		OwnerID:    s.ports.OwnerID,
		DocumentID: input.DocumentID,
	})
	if err != nil {
		return nil, AskOutput{}, toolError(err)
	}

	output := AskOutput{
		Answer:      answer.Text,
		Mode:        string(answer.Mode),
		Provenance:  string(answer.Provenance),
		Excerpts:    make([]ExcerptOutput, len(answer.Excerpts)),
		Suggestions: answer.Suggestions,
	}
	for i, ex := range answer.Excerpts {
		output.Excerpts[i] = ExcerptOutput{
			DocumentID:   ex.DocumentID,
			DocumentName: ex.DocumentName,
			Position:     ex.Position,
			Score:        ex.Score,
			Content:      ex.Content,
		}
	}
	return nil, output, nil
}

func (s *Server) handleDocumentStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentStatusInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	if s.ports.Status == nil {
		return nil, DocumentStatusOutput{}, fmt.Errorf("document_status: %w", errServiceUnavailable)
	}

	progress, err := s.ports.Status.GetDocumentStatus(ctx, s.ports.OwnerID, input.DocumentID)
	if err != nil {
		return nil, DocumentStatusOutput{}, toolError(err)
	}

	return nil, DocumentStatusOutput{
		DocumentID:      progress.DocumentID,
		Status:          string(progress.Status),
		ProgressPercent: progress.ProgressPercent,
		Total:           progress.Counts.Total,
		Embedded:        progress.Counts.Embedded,
		Skipped:         progress.Counts.Skipped,
		Pending:         progress.Counts.Pending,
		Failed:          progress.Counts.Failed,
	}, nil
}

func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.Documents == nil {
		return nil, ListDocumentsOutput{}, fmt.Errorf("list_documents: %w", errServiceUnavailable)
	}

	docs, err := s.ports.Documents.List(ctx, s.ports.OwnerID)
	if err != nil {
		return nil, ListDocumentsOutput{}, toolError(err)
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i, doc := range docs {
		output.Documents[i] = DocumentOutput{
			ID:        doc.ID,
			Name:      doc.Name,
			MediaType: doc.MediaType,
			Status:    string(doc.Status),
			URI:       documentURI(doc.ID),
		}
	}
	return nil, output, nil
}

func (s *Server) handleListTasks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListTasksInput,
) (*mcp.CallToolResult, ListTasksOutput, error) {
	if s.ports.Tasks == nil {
		return nil, ListTasksOutput{}, fmt.Errorf("list_tasks: %w", errServiceUnavailable)
	}

	tasks, err := s.ports.Tasks.List(ctx, s.ports.OwnerID, domain.TaskFilter{
		Status:     domain.TaskStatus(input.Status),
		DocumentID: input.DocumentID,
	})
	if err != nil {
		return nil, ListTasksOutput{}, toolError(err)
	}

	output := ListTasksOutput{
		Tasks: make([]TaskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, task := range tasks {
		output.Tasks[i] = TaskOutput{
			ID:          task.ID,
			Description: task.Description,
			Status:      string(task.Status),
			Source:      string(task.Source),
			DocumentID:  task.DocumentID,
		}
	}
	return nil, output, nil
}

// toolError flattens an error into "kind: message" so clients can branch on the kind.
func toolError(err error) error {
	if askErr, ok := domain.AsAskError(err); ok {
		return fmt.Errorf("%s: %s", askErr.Kind, askErr.Message)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%s: %w", domain.KindNotFound, err)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%s: %w", domain.KindInvalidInput, err)
	default:
		return fmt.Errorf("%s: %w", domain.KindInternal, err)
	}
}
