package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/core/domain"
)

const timeFormat = "2006-01-02 15:04:05"

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Manage uploaded documents",
	Long:    `List, inspect, or delete uploaded documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Print a document's chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentRemoveCmd = &cobra.Command{
	Use:     "rm [doc-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a document",
	Long:    `Deletes the document, its chunks and its stored file.`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDocumentRemove,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	rootCmd.AddCommand(documentCmd)
}

type documentOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newDocumentOutput(doc *domain.Document) documentOutput {
	return documentOutput{
		ID:        doc.ID,
		Name:      doc.Name,
		MediaType: doc.MediaType,
		Size:      doc.Size,
		Status:    string(doc.Status),
		CreatedAt: doc.CreatedAt.Format(timeFormat),
		UpdatedAt: doc.UpdatedAt.Format(timeFormat),
	}
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Documents == nil {
		return notConfigured("document service")
	}

	docs, err := services.Documents.List(cmd.Context(), currentUser())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if jsonOutput {
		out := make([]documentOutput, len(docs))
		for i := range docs {
			out[i] = newDocumentOutput(&docs[i])
		}
		return printJSON(cmd, out)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found. Upload one with 'verity upload <file>'.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Name:   %s\n", docs[i].Name)
		cmd.Printf("    Status: %s\n", docs[i].Status)
		cmd.Println()
	}
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return notConfigured("document service")
	}

	doc, err := services.Documents.Get(cmd.Context(), currentUser(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, newDocumentOutput(doc))
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Name:     %s\n", doc.Name)
	cmd.Printf("  Type:     %s\n", doc.MediaType)
	cmd.Printf("  Size:     %d bytes\n", doc.Size)
	cmd.Printf("  Status:   %s\n", doc.Status)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format(timeFormat))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format(timeFormat))
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return notConfigured("document service")
	}

	chunks, err := services.Documents.Chunks(cmd.Context(), currentUser(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if jsonOutput {
		type chunkOutput struct {
			ID       string `json:"id"`
			Position int    `json:"position"`
			Status   string `json:"status"`
			Content  string `json:"content"`
		}
		out := make([]chunkOutput, len(chunks))
		for i := range chunks {
			out[i] = chunkOutput{chunks[i].ID, chunks[i].Position, string(chunks[i].Status), chunks[i].Content}
		}
		return printJSON(cmd, out)
	}

	for i := range chunks {
		cmd.Printf("[%d] %s (%d words)\n", chunks[i].Position, chunks[i].Status, chunks[i].WordCount())
		cmd.Println(chunks[i].Content)
		cmd.Println()
	}
	cmd.Printf("Total: %d chunks\n", len(chunks))
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	if services == nil || services.Documents == nil {
		return notConfigured("document service")
	}

	if err := services.Documents.Delete(cmd.Context(), currentUser(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
