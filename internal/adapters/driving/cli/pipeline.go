package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

var (
	uploadProcess   bool
	uploadMediaType string
	processRounds   int
	embedLimit      int
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a document",
	Long: `Stores a document for processing. Supported types are plain text,
Markdown, HTML and DOCX.

With --process the document is also chunked and embedded before the
command returns.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [doc-id]",
	Short: "Extract and chunk a document",
	Long:  `Extracts the document's text and replaces its chunks. Use this to reprocess a document in error.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var processCmd = &cobra.Command{
	Use:   "process [doc-id]",
	Short: "Ingest and embed a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var embedCmd = &cobra.Command{
	Use:   "embed [doc-id]",
	Short: "Embed pending chunks",
	Long:  `Runs one embedding batch, scoped to a document when one is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEmbed,
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show a document's processing status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadProcess, "process", "p", false, "ingest and embed after uploading")
	uploadCmd.Flags().StringVar(&uploadMediaType, "type", "", "media type (detected from the file name when empty)")
	processCmd.Flags().IntVar(&processRounds, "rounds", 0, "maximum embedding batches (0 = default)")
	embedCmd.Flags().IntVarP(&embedLimit, "limit", "n", 0, "maximum chunks to claim (0 = default)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(statusCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestion == nil {
		return notConfigured("ingestion service")
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ctx := cmd.Context()
	doc, err := services.Ingestion.Upload(ctx, driving.UploadRequest{
		OwnerID:   currentUser(),
		Name:      filepath.Base(path),
		MediaType: uploadMediaType,
		Content:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}

	if !uploadProcess {
		if jsonOutput {
			return printJSON(cmd, newDocumentOutput(doc))
		}
		cmd.Printf("Uploaded %s as %s\n", doc.Name, doc.ID)
		cmd.Printf("Run 'verity process %s' to make it searchable.\n", doc.ID)
		return nil
	}

	if services.Pipeline == nil {
		return notConfigured("embedding provider")
	}
	if !jsonOutput {
		cmd.Printf("Uploaded %s as %s, processing...\n", doc.Name, doc.ID)
	}
	result, err := services.Pipeline.Process(ctx, doc.OwnerID, doc.ID, 0)
	if err != nil {
		return fmt.Errorf("failed to process: %w", err)
	}
	return printPipelineResult(cmd, doc.ID, result)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestion == nil {
		return notConfigured("ingestion service")
	}

	result, err := services.Ingestion.Ingest(cmd.Context(), currentUser(), args[0])
	if err != nil {
		return fmt.Errorf("failed to ingest: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{
			"document": newDocumentOutput(result.Document),
			"chunks":   result.ChunkCount,
		})
	}
	cmd.Printf("Ingested %s: %d chunks, status %s\n", result.Document.ID, result.ChunkCount, result.Document.Status)
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	if services == nil || services.Pipeline == nil {
		return notConfigured("embedding provider")
	}

	result, err := services.Pipeline.Process(cmd.Context(), currentUser(), args[0], processRounds)
	if err != nil {
		return fmt.Errorf("failed to process: %w", err)
	}
	return printPipelineResult(cmd, args[0], result)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if services == nil || services.Worker == nil {
		return notConfigured("embedding provider")
	}

	scope := driving.BatchScope{OwnerID: currentUser()}
	if len(args) == 1 {
		scope.DocumentID = args[0]
	}

	batch, err := services.Worker.RunBatch(cmd.Context(), scope, embedLimit)
	if err != nil {
		return fmt.Errorf("embedding batch failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{
			"total":     batch.Total,
			"processed": batch.Processed,
			"embedded":  batch.Embedded,
			"skipped":   batch.Skipped,
			"failed":    batch.Failed,
			"lost":      batch.Lost,
			"documents": batch.Documents,
		})
	}
	if batch.Total == 0 {
		cmd.Println("No pending chunks.")
		return nil
	}
	cmd.Printf("Claimed %d chunks: %d embedded, %d skipped, %d failed\n",
		batch.Total, batch.Embedded, batch.Skipped, batch.Failed)
	if batch.Lost > 0 {
		cmd.Printf("%d chunks were taken over by another worker after the claim expired\n", batch.Lost)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if services == nil || services.Status == nil {
		return notConfigured("status service")
	}

	progress, err := services.Status.GetDocumentStatus(cmd.Context(), currentUser(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, progressOutput(progress))
	}
	printProgress(cmd, progress)
	return nil
}

func progressOutput(p domain.DocumentProgress) map[string]any {
	return map[string]any{
		"document_id":      p.DocumentID,
		"status":           p.Status,
		"progress_percent": p.ProgressPercent,
		"total_chunks":     p.Counts.Total,
		"embedded":         p.Counts.Embedded,
		"skipped":          p.Counts.Skipped,
		"pending":          p.Counts.Pending,
		"failed":           p.Counts.Failed,
	}
}

func printProgress(cmd *cobra.Command, p domain.DocumentProgress) {
	cmd.Printf("Document: %s\n", p.DocumentID)
	cmd.Printf("  Status:   %s (%d%%)\n", p.Status, p.ProgressPercent)
	cmd.Printf("  Chunks:   %d total, %d embedded, %d skipped, %d pending, %d failed\n",
		p.Counts.Total, p.Counts.Embedded, p.Counts.Skipped, p.Counts.Pending, p.Counts.Failed)
}

func printPipelineResult(cmd *cobra.Command, documentID string, r *driving.PipelineResult) error {
	if jsonOutput {
		out := progressOutput(r.Progress)
		out["batches"] = r.Batches
		if r.Ingest != nil {
			out["ingested_chunks"] = r.Ingest.ChunkCount
		}
		return printJSON(cmd, out)
	}

	cmd.Printf("Processed %s in %d batches\n", documentID, r.Batches)
	printProgress(cmd, r.Progress)
	if r.Progress.Status == domain.DocumentProcessing {
		cmd.Printf("Some chunks are still pending. Run 'verity embed %s' to continue.\n", documentID)
	}
	return nil
}
