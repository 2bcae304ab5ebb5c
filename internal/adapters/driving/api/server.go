// Package api exposes Verity over a JSON HTTP API built on echo.
//
// Routes live under /api/v1. The caller's identity is taken from the
// X-Verity-User header and defaults to the configured user; there is no
// authentication layer.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// UserHeader names the request header that selects the acting user.
const UserHeader = "X-Verity-User"

const ctxUserKey = "user_id"

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	// DefaultUser acts for requests without a UserHeader.
	DefaultUser string

	Ingestion driving.IngestionService
	Pipeline  driving.Pipeline
	Worker    driving.EmbeddingWorker
	Status    driving.StatusService
	Answer    driving.AnswerService
	Tasks     driving.TaskService
	Documents driving.DocumentService

	// Scheduler is optional; its routes return 503 when nil.
	Scheduler driving.Scheduler

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP API server.
type Server struct {
	ports *Ports
	echo  *echo.Echo
}

// NewServer builds the echo instance and registers every route.
func NewServer(ports *Ports) (*Server, error) {
	switch {
	case ports.Answer == nil:
		return nil, errors.New("api: answer service is required")
	case ports.Documents == nil:
		return nil, errors.New("api: document service is required")
	case ports.DefaultUser == "":
		return nil, errors.New("api: default user is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler

	s := &Server{ports: ports, echo: e}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() {
	s.echo.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.ports.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.ports.Metrics))
	}

	v1 := s.echo.Group("/api/v1", s.withUser)

	docs := &documentsHandler{ports: s.ports}
	docs.register(v1)

	ask := &askHandler{answer: s.ports.Answer, tasks: s.ports.Tasks}
	ask.register(v1)

	tasks := &tasksHandler{tasks: s.ports.Tasks}
	tasks.register(v1.Group("/tasks"))

	jobs := &jobsHandler{scheduler: s.ports.Scheduler}
	jobs.register(v1.Group("/jobs"))
}

func (s *Server) withUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := c.Request().Header.Get(UserHeader)
		if user == "" {
			user = s.ports.DefaultUser
		}
		c.Set(ctxUserKey, user)
		return next(c)
	}
}

func userID(c echo.Context) string {
	user, _ := c.Get(ctxUserKey).(string)
	return user
}
