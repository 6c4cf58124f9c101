// Package api contains the HTTP handlers for the rating console.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"huddle-admin/backend/internal/auth"
	"huddle-admin/backend/internal/logging"
	"huddle-admin/backend/internal/services"
	"huddle-admin/backend/pkg/models"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the API server.
type Server struct {
	orch   *services.Orchestrator
	dir    *services.Directory
	worker services.WorkerTrigger
	db     Pinger
	log    *logging.Logger
}

// NewServer creates a new Server.
func NewServer(orch *services.Orchestrator, dir *services.Directory, worker services.WorkerTrigger, db Pinger, logger *logging.Logger) *Server {
	return &Server{orch: orch, dir: dir, worker: worker, db: db, log: logger.With("component", "api")}
}

// RegisterRoutes mounts the session-authenticated routes on g (/api/v1).
func RegisterRoutes(g *echo.Group, s *Server) {
	g.POST("/configs", s.CreateConfiguration)
	g.GET("/configs", s.ListConfigurations)
	g.GET("/configs/:id", s.GetConfiguration)
	g.POST("/configs/:id/instances", s.AddInstances)
	g.POST("/configs/:id/execute", s.StartRun)
	g.GET("/configs/:id/execute", s.RunHistory)
	g.POST("/configs/:id/force-complete", s.ForceComplete)
	g.POST("/configs/:id/reset", s.Reset)
	g.GET("/configs/:id/ratings", s.Ratings)
	g.POST("/matches/:id/responses", s.SubmitResponse)
	g.GET("/queue", s.QueueSnapshot)
	g.POST("/queue", s.TriggerWorker)
	g.GET("/employees/:id/reports", s.Reports)
}

// RegisterInternalRoutes mounts the worker-token routes on g (/internal).
func RegisterInternalRoutes(g *echo.Group, s *Server) {
	g.POST("/instances/:id/completions", s.IngestCompletion)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Database  string    `json:"database"`
}

// HandleHealth reports liveness and database reachability. It answers 503
// when the database cannot be pinged.
func (s *Server) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "huddle-admin",
		Database:  "ok",
	}
	code := http.StatusOK
	if err := s.db.Ping(c.Request().Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		status.Status = "degraded"
		status.Database = "unreachable"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

func session(c echo.Context) models.Session {
	sess, _ := auth.SessionFromContext(c.Request().Context())
	return sess
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// CreateConfiguration creates a DRAFT configuration
// (POST /api/v1/configs)
func (s *Server) CreateConfiguration(c echo.Context) error {
	var in services.ConfigurationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	cfg, err := s.orch.CreateConfiguration(c.Request().Context(), session(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cfg)
}

// ListConfigurations returns the tenant's configurations
// (GET /api/v1/configs)
func (s *Server) ListConfigurations(c echo.Context) error {
	cfgs, err := s.orch.ListConfigurations(c.Request().Context(), session(c))
	if err != nil {
		return err
	}
	if cfgs == nil {
		cfgs = []*models.Configuration{}
	}
	return c.JSON(http.StatusOK, cfgs)
}

// GetConfiguration returns one configuration
// (GET /api/v1/configs/{id})
func (s *Server) GetConfiguration(c echo.Context) error {
	cfg, err := s.orch.GetConfiguration(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

// AddInstancesRequest is the body of POST /configs/{id}/instances.
type AddInstancesRequest struct {
	Instances []map[string]any `json:"instances"`
}

// AddInstances appends PENDING instances
// (POST /api/v1/configs/{id}/instances)
func (s *Server) AddInstances(c echo.Context) error {
	var req AddInstancesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	insts, err := s.orch.AddInstances(c.Request().Context(), session(c), c.Param("id"), req.Instances)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, insts)
}

// StartRunResponse is the body returned by POST /configs/{id}/execute.
type StartRunResponse struct {
	RunID          string `json:"runId"`
	TotalInstances int    `json:"totalInstances"`
}

// StartRun queues a generation run
// (POST /api/v1/configs/{id}/execute)
func (s *Server) StartRun(c echo.Context) error {
	run, err := s.orch.StartRun(c.Request().Context(), session(c), c.Param("id"))
	if errors.Is(err, services.ErrRunAlreadyInProgress) {
		// This route reports a busy configuration as a bad request.
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StartRunResponse{RunID: run.ID, TotalInstances: run.TotalInstances})
}

// RunHistory lists the most recent runs
// (GET /api/v1/configs/{id}/execute)
func (s *Server) RunHistory(c echo.Context) error {
	runs, err := s.orch.RunHistory(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*models.GenerationRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

// ForceComplete salvages a stalled configuration
// (POST /api/v1/configs/{id}/force-complete)
func (s *Server) ForceComplete(c echo.Context) error {
	res, err := s.orch.ForceComplete(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ResetRequest is the body of POST /configs/{id}/reset.
type ResetRequest struct {
	Mode string `json:"mode"`
}

// Reset returns a configuration to DRAFT
// (POST /api/v1/configs/{id}/reset)
func (s *Server) Reset(c echo.Context) error {
	var req ResetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	mode, err := services.ParseResetMode(req.Mode)
	if err != nil {
		return err
	}
	res, err := s.orch.Reset(c.Request().Context(), session(c), c.Param("id"), mode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Ratings lists matches with summary counts
// (GET /api/v1/configs/{id}/ratings)
func (s *Server) Ratings(c echo.Context) error {
	view, err := s.orch.Ratings(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// SubmitResponseRequest is the body of POST /matches/{id}/responses.
type SubmitResponseRequest struct {
	WinnerID string `json:"winnerId"`
}

// SubmitResponse records a rater's pick
// (POST /api/v1/matches/{id}/responses)
func (s *Server) SubmitResponse(c echo.Context) error {
	var req SubmitResponseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.orch.SubmitResponse(c.Request().Context(), session(c), c.Param("id"), req.WinnerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// QueueSnapshot returns tenant-wide run progress
// (GET /api/v1/queue)
func (s *Server) QueueSnapshot(c echo.Context) error {
	snap, err := s.orch.QueueSnapshot(c.Request().Context(), session(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// TriggerWorker relays to the tenant's worker
// (POST /api/v1/queue)
func (s *Server) TriggerWorker(c echo.Context) error {
	res, err := s.worker.Trigger(c.Request().Context(), session(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Reports lists an employee's transitive reports
// (GET /api/v1/employees/{id}/reports)
func (s *Server) Reports(c echo.Context) error {
	reports, err := s.dir.Reports(c.Request().Context(), session(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reports)
}

// IngestCompletion stores a worker-produced completion
// (POST /internal/instances/{id}/completions)
func (s *Server) IngestCompletion(c echo.Context) error {
	var in services.CompletionInput
	if err := bind(c, &in); err != nil {
		return err
	}
	res, err := s.orch.IngestCompletion(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}
