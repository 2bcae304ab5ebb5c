package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

type taskView struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	DocumentID  string    `json:"document_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTaskView(t *domain.Task) taskView {
	return taskView{
		ID:          t.ID,
		Description: t.Description,
		Status:      string(t.Status),
		Source:      string(t.Source),
		DocumentID:  t.DocumentID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type createTaskRequest struct {
	Description string `json:"description"`
	DocumentID  string `json:"document_id"`
}

type updateTaskRequest struct {
	Status string `json:"status"`
}

type tasksHandler struct {
	tasks driving.TaskService
}

func (h *tasksHandler) register(g *echo.Group) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.tasks == nil {
				return errUnavailable("tasks")
			}
			return next(c)
		}
	})
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.remove)
}

func (h *tasksHandler) list(c echo.Context) error {
	tasks, err := h.tasks.List(c.Request().Context(), userID(c), domain.TaskFilter{
		Status:     domain.TaskStatus(c.QueryParam("status")),
		DocumentID: c.QueryParam("document_id"),
	})
	if err != nil {
		return err
	}
	views := make([]taskView, len(tasks))
	for i := range tasks {
		views[i] = newTaskView(&tasks[i])
	}
	return c.JSON(http.StatusOK, views)
}

func (h *tasksHandler) create(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	task, err := h.tasks.Create(c.Request().Context(), userID(c), req.Description, req.DocumentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newTaskView(task))
}

func (h *tasksHandler) get(c echo.Context) error {
	task, err := h.tasks.Get(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTaskView(task))
}

func (h *tasksHandler) update(c echo.Context) error {
	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	task, err := h.tasks.Transition(c.Request().Context(), userID(c), c.Param("id"), domain.TaskStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTaskView(task))
}

func (h *tasksHandler) remove(c echo.Context) error {
	if err := h.tasks.Delete(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
