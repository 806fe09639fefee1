// Package api exposes the service's small operational surface: manual task
// triggering, task status, health probes, and Prometheus metrics. It is not
// a data API; readings are consumed straight from the database.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oogsj/coastwatch/internal/scheduler"
)

// Triggerable is the slice of the scheduler the server needs.
type Triggerable interface {
	Trigger(name string) (string, error)
	Status() []scheduler.TaskStatus
}

// ReadinessChecker reports whether the service's dependencies are reachable.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server is the operational HTTP server.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	sched           Triggerable
	readiness       ReadinessChecker
	logger          *slog.Logger
	engine          *gin.Engine
}

// New constructs the server with routes registered.
func New(
	addr string,
	shutdownTimeout time.Duration,
	sched Triggerable,
	readiness ReadinessChecker,
	logger *slog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		sched:           sched,
		readiness:       readiness,
		logger:          logger,
		engine:          engine,
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("http server started", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/readyz", s.handleReadyz)
	s.engine.GET("/status", s.handleStatus)
	s.engine.POST("/update/:task", s.handleTrigger)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) handleReadyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.readiness.CheckReadiness(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.sched.Status()})
}

func (s *Server) handleTrigger(c *gin.Context) {
	name := c.Param("task")

	jobID, err := s.sched.Trigger(name)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "task": name})
	case errors.Is(err, scheduler.ErrUnknownTask):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrTaskBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("trigger failed", "task", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
