// Package httpapi exposes the engine's operations over HTTP for the
// surrounding platform. Authentication and permission checks belong to
// the gateway in front of this service.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accredia/stepgate/internal/persistence"
	"github.com/accredia/stepgate/pkg/api"
)

// Server holds the dependencies for the API server.
type Server struct {
	Engine api.Engine
}

// NewServer creates a new Server.
func NewServer(engine api.Engine) *Server {
	return &Server{Engine: engine}
}

// RegisterRoutes mounts all handlers on the given group.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.POST("/snapshots", s.RegisterSnapshot)
	g.GET("/snapshots/:id", s.GetSnapshot)
	g.POST("/participants", s.AdmitParticipant)
	g.GET("/participants/:id", s.GetParticipant)
	g.GET("/participants/:id/approvals", s.ListApprovals)
	g.POST("/participants/:id/actions", s.ProcessAction)
	g.POST("/sla/sweep", s.RunSweep)
}

// RegisterSnapshot stores a new immutable snapshot.
// (POST /api/v1/snapshots)
func (s *Server) RegisterSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	var snap api.WorkflowSnapshot
	if err := c.Bind(&snap); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := snap.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.Engine.RegisterSnapshot(ctx, snap); err != nil {
		if errors.Is(err, persistence.ErrSnapshotExists) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, snap)
}

// GetSnapshot returns a snapshot by ID.
// (GET /api/v1/snapshots/:id)
func (s *Server) GetSnapshot(c echo.Context) error {
	snap, err := s.Engine.GetSnapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// AdmitRequest is the body of an admission call.
type AdmitRequest struct {
	TenantID   string `json:"tenant_id"`
	SnapshotID string `json:"snapshot_id"`
}

// AdmitParticipant creates a participant at the snapshot's entry step.
// (POST /api/v1/participants)
func (s *Server) AdmitParticipant(c echo.Context) error {
	ctx := c.Request().Context()

	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.SnapshotID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "snapshot_id is required")
	}

	p, err := s.Engine.AdmitParticipant(ctx, req.TenantID, req.SnapshotID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, p)
}

// GetParticipant returns a participant by ID.
// (GET /api/v1/participants/:id)
func (s *Server) GetParticipant(c echo.Context) error {
	p, err := s.Engine.GetParticipant(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// ListApprovals returns a participant's ledger in append order.
// (GET /api/v1/participants/:id/approvals)
func (s *Server) ListApprovals(c echo.Context) error {
	rows, err := s.Engine.ListApprovals(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

// ActionRequest is the body of a navigation action call.
//
// ExpectedVersion carries the version stamp the caller last read, in
// RFC3339Nano. Omitting it makes the update unconditional.
type ActionRequest struct {
	ActorID         string `json:"actor_id"`
	Action          string `json:"action"`
	Remarks         string `json:"remarks,omitempty"`
	ExpectedVersion string `json:"expected_version,omitempty"`
}

// ProcessAction applies a navigation action to a participant.
// (POST /api/v1/participants/:id/actions)
func (s *Server) ProcessAction(c echo.Context) error {
	ctx := c.Request().Context()

	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.ActorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actor_id is required")
	}
	if req.Action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action is required")
	}

	var expected *time.Time
	if req.ExpectedVersion != "" {
		ts, err := time.Parse(time.RFC3339Nano, req.ExpectedVersion)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid expected_version: "+err.Error())
		}
		expected = &ts
	}

	result, err := s.Engine.ProcessWorkflowAction(ctx, c.Param("id"), req.ActorID, api.Action(req.Action), req.Remarks, expected)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// RunSweep triggers a single SLA sweep and returns its report.
// (POST /api/v1/sla/sweep)
func (s *Server) RunSweep(c echo.Context) error {
	report, err := s.Engine.CheckOverdueSLAs(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// httpError maps the engine's error taxonomy onto status codes: missing
// references are 404, unconfigured transitions 422, and version conflicts
// 409 so clients know to reload and retry.
func httpError(err error) error {
	switch {
	case api.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case api.IsInvalidTransition(err):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case api.IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, "state changed, reload and retry")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
