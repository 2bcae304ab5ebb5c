package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

// maxUploadBytes bounds multipart uploads.
const maxUploadBytes = 32 << 20

type documentView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MediaType string    `json:"media_type"`
	Size      int64     `json:"size"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newDocumentView(doc *domain.Document) documentView {
	return documentView{
		ID:        doc.ID,
		Name:      doc.Name,
		MediaType: doc.MediaType,
		Size:      doc.Size,
		Status:    string(doc.Status),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

type chunkView struct {
	ID        string `json:"id"`
	Position  int    `json:"position"`
	Status    string `json:"status"`
	WordCount int    `json:"word_count"`
	Content   string `json:"content"`
}

type progressView struct {
	DocumentID      string `json:"document_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	Total           int    `json:"total_chunks"`
	Embedded        int    `json:"embedded"`
	Skipped         int    `json:"skipped"`
	Pending         int    `json:"pending"`
	Failed          int    `json:"failed"`
}

func newProgressView(p domain.DocumentProgress) progressView {
	return progressView{
		DocumentID:      p.DocumentID,
		Status:          string(p.Status),
		ProgressPercent: p.ProgressPercent,
		Total:           p.Counts.Total,
		Embedded:        p.Counts.Embedded,
		Skipped:         p.Counts.Skipped,
		Pending:         p.Counts.Pending,
		Failed:          p.Counts.Failed,
	}
}

type batchView struct {
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Embedded  int      `json:"embedded"`
	Skipped   int      `json:"skipped"`
		Failed    int      `json:"failed"`
	Lost      int      `json:"lost"`
	Documents []string `json:"documents"`
}

type uploadResponse struct {
	Document documentView `json:"document"`
	Process  *processView `json:"process,omitempty"`
}

type processView struct {
	Chunks   int          `json:"chunks"`
	Batches  int          `json:"batches"`
	Embedded int          `json:"embedded"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Progress progressView `json:"progress"`
}

func newProcessView(r *driving.PipelineResult) *processView {
	view := &processView{
		Batches:  r.Batches,
		Embedded: r.Embedded,
		Skipped:  r.Skipped,
		Failed:   r.Failed,
		Progress: newProgressView(r.Progress),
	}
	if r.Ingest != nil {
		view.Chunks = r.Ingest.ChunkCount
	}
	return view
}

type embedRequest struct {
	DocumentID string `json:"document_id"`
	Limit      int    `json:"limit"`
}

type documentsHandler struct {
	ports *Ports
}

func (h *documentsHandler) register(g *echo.Group) {
	g.GET("/documents", h.list)
	g.POST("/documents", h.upload)
	g.GET("/documents/:id", h.get)
	g.DELETE("/documents/:id", h.remove)
	g.GET("/documents/:id/chunks", h.chunks)
	g.GET("/documents/:id/status", h.status)
	g.POST("/documents/:id/ingest", h.ingest)
	g.POST("/documents/:id/process", h.process)
	g.POST("/embed", h.embed)
}

func (h *documentsHandler) list(c echo.Context) error {
	docs, err := h.ports.Documents.List(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	views := make([]documentView, len(docs))
	for i := range docs {
		views[i] = newDocumentView(&docs[i])
	}
	return c.JSON(http.StatusOK, views)
}

func (h *documentsHandler) get(c echo.Context) error {
	doc, err := h.ports.Documents.Get(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newDocumentView(doc))
}

func (h *documentsHandler) remove(c echo.Context) error {
	if err := h.ports.Documents.Delete(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *documentsHandler) chunks(c echo.Context) error {
	chunks, err := h.ports.Documents.Chunks(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return err
	}
	views := make([]chunkView, len(chunks))
	for i := range chunks {
		views[i] = chunkView{
			ID:        chunks[i].ID,
			Position:  chunks[i].Position,
			Status:    string(chunks[i].Status),
			WordCount: chunks[i].WordCount(),
			Content:   chunks[i].Content,
		}
	}
	return c.JSON(http.StatusOK, views)
}

func (h *documentsHandler) status(c echo.Context) error {
	if h.ports.Status == nil {
		return errUnavailable("status")
	}
	progress, err := h.ports.Status.GetDocumentStatus(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newProgressView(progress))
}

// upload accepts a multipart "file" field. With ?process=true the document
// is ingested and embedded before responding.
func (h *documentsHandler) upload(c echo.Context) error {
	if h.ports.Ingestion == nil {
		return errUnavailable("ingestion")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return badRequest("multipart field \"file\" is required")
	}
	if header.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	ctx := c.Request().Context()
	doc, err := h.ports.Ingestion.Upload(ctx, driving.UploadRequest{
		OwnerID:   userID(c),
		Name:      header.Filename,
		MediaType: c.FormValue("media_type"),
		Content:   file,
	})
	if err != nil {
		return err
	}

	resp := uploadResponse{Document: newDocumentView(doc)}
	if process, _ := strconv.ParseBool(c.QueryParam("process")); process && h.ports.Pipeline != nil {
		result, err := h.ports.Pipeline.Process(ctx, doc.OwnerID, doc.ID, 0)
		if err != nil {
			return err
		}
		resp.Process = newProcessView(result)
		resp.Document.Status = string(result.Progress.Status)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *documentsHandler) ingest(c echo.Context) error {
	if h.ports.Ingestion == nil {
		return errUnavailable("ingestion")
	}
	result, err := h.ports.Ingestion.Ingest(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"document": newDocumentView(result.Document),
		"chunks":   result.ChunkCount,
	})
}

func (h *documentsHandler) process(c echo.Context) error {
	if h.ports.Pipeline == nil {
		return errUnavailable("pipeline")
	}
	// Zero rounds lets the pipeline apply its default.
	rounds, _ := strconv.Atoi(c.QueryParam("rounds"))
	result, err := h.ports.Pipeline.Process(c.Request().Context(), userID(c), c.Param("id"), rounds)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newProcessView(result))
}

func (h *documentsHandler) embed(c echo.Context) error {
	if h.ports.Worker == nil {
		return errUnavailable("embedding")
	}

	var req embedRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	batch, err := h.ports.Worker.RunBatch(c.Request().Context(), driving.BatchScope{
		OwnerID:    userID(c),
		DocumentID: req.DocumentID,
	}, req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, batchView{
		Total:     batch.Total,
		Processed: batch.Processed,
		Embedded:  batch.Embedded,
		Skipped:   batch.Skipped,
		Failed:    batch.Failed,
		Lost:      batch.Lost,
		Documents: batch.Documents,
	})
}

func errUnavailable(what string) error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, what+" is not configured")
}
