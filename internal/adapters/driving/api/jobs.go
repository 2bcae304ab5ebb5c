package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

type jobView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Interval    string    `json:"interval"`
	Enabled     bool      `json:"enabled"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
}

type jobResultView struct {
	JobID          string    `json:"job_id"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	ItemsProcessed int       `json:"items_processed"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// jobsHandler exposes the background scheduler.
type jobsHandler struct {
	scheduler driving.Scheduler
}

func (h *jobsHandler) register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("/:id/run", h.run)
}

func (h *jobsHandler) list(c echo.Context) error {
	if h.scheduler == nil {
		return errUnavailable("scheduler")
	}
	jobs := h.scheduler.Jobs()
	views := make([]jobView, len(jobs))
	for i, t := range jobs {
		views[i] = jobView{
			ID:          t.ID,
			Name:        t.Name,
			Interval:    t.Interval.String(),
			Enabled:     t.Enabled,
			LastRun:     t.LastRun,
			NextRun:     t.NextRun,
			LastSuccess: t.LastSuccess,
			LastError:   t.LastError,
		}
	}
	return c.JSON(http.StatusOK, views)
}

// run executes a job synchronously. A failed run is still a 200; the
// result carries the error.
func (h *jobsHandler) run(c echo.Context) error {
	if h.scheduler == nil {
		return errUnavailable("scheduler")
	}
	result, err := h.scheduler.RunNow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobResultView{
		JobID:          result.JobID,
		Success:        result.Success,
		Error:          result.Error,
		ItemsProcessed: result.ItemsProcessed,
		StartedAt:      result.StartedAt,
		EndedAt:        result.EndedAt,
	})
}
