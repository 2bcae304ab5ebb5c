package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

type askRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id"`
	SaveTasks  bool   `json:"save_tasks"`
}

type excerptView struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Position     int     `json:"position"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}

type answerView struct {
	ExchangeID  string        `json:"exchange_id,omitempty"`
	Answer      string        `json:"answer"`
	Mode        string        `json:"mode"`
	Provenance  string        `json:"provenance"`
	Excerpts    []excerptView `json:"excerpts"`
	Suggestions []string      `json:"suggestions"`
	Tasks       []taskView    `json:"tasks,omitempty"`
}

type exchangeView struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Mode       string    `json:"mode"`
	CreatedAt  time.Time `json:"created_at"`
}

type askHandler struct {
	answer driving.AnswerService
	tasks  driving.TaskService
}

func (h *askHandler) register(g *echo.Group) {
	g.POST("/ask", h.ask)
	g.GET("/chats", h.history)
}

// ask answers a question. With save_tasks the answer's suggestions become
// derived tasks; failing to save them does not fail the answer.
func (h *askHandler) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}

	ctx := c.Request().Context()
	answer, err := h.answer.Ask(ctx, domain.AskRequest{
		Query:      req.Question,
		OwnerID:    userID(c),
		DocumentID: strings.TrimSpace(req.DocumentID),
	})
	if err != nil {
		return err
	}

	view := answerView{
		ExchangeID:  answer.ExchangeID,
		Answer:      answer.Text,
		Mode:        string(answer.Mode),
		Provenance:  string(answer.Provenance),
		Excerpts:    make([]excerptView, len(answer.Excerpts)),
		Suggestions: answer.Suggestions,
	}
	if view.Suggestions == nil {
		view.Suggestions = []string{}
	}
	for i, ex := range answer.Excerpts {
		view.Excerpts[i] = excerptView{
			ChunkID:      ex.ChunkID,
			DocumentID:   ex.DocumentID,
			DocumentName: ex.DocumentName,
			Position:     ex.Position,
			Score:        ex.Score,
			Content:      ex.Content,
		}
	}

	if req.SaveTasks && h.tasks != nil && len(answer.Suggestions) > 0 {
		created, err := h.tasks.CreateFromSuggestions(ctx, userID(c), req.DocumentID, answer.Suggestions)
		if err != nil {
			logger.Warn("save suggested tasks: %v", err)
		}
		for i := range created {
			view.Tasks = append(view.Tasks, newTaskView(&created[i]))
		}
	}

	return c.JSON(http.StatusOK, view)
}

func (h *askHandler) history(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	exchanges, err := h.answer.History(c.Request().Context(), userID(c), c.QueryParam("document_id"), limit)
	if err != nil {
		return err
	}

	views := make([]exchangeView, len(exchanges))
	for i, ex := range exchanges {
		views[i] = exchangeView{
			ID:         ex.ID,
			DocumentID: ex.DocumentID,
			Question:   ex.Query,
			Answer:     ex.Answer,
			Mode:       string(ex.Mode),
			CreatedAt:  ex.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, views)
}
