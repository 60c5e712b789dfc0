package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/council/internal/orchestrator"
)

// HeaderSessionSource tells whether a snapshot came from memory or the archive.
const HeaderSessionSource = "X-Council-Source"

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

// handleStartSession validates the request and starts a session.
func (s *Server) handleStartSession(c echo.Context) error {
	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid session request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := s.service.Start(c.Request().Context(), req)
	if err != nil {
		if !errors.Is(err, orchestrator.ErrInvalidRequest) {
			s.logger.Error("failed to start session", zap.Error(err))
		}
		return errorStatus(err)
	}

	return c.JSON(http.StatusAccepted, StartSessionResponse{
		SessionID: id,
		Status:    orchestrator.StatusPending,
	})
}

func (s *Server) handleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, ListSessionsResponse{Sessions: s.service.List()})
}

// handleGetSession returns the live snapshot, or the archived one when the
// session was evicted.
func (s *Server) handleGetSession(c echo.Context) error {
	id := c.Param("id")

	snap, err := s.service.Status(id)
	if err == nil {
		c.Response().Header().Set(HeaderSessionSource, "memory")
		return c.JSON(http.StatusOK, snap)
	}
	if !errors.Is(err, orchestrator.ErrSessionNotFound) || s.config.Archive == nil {
		return errorStatus(err)
	}

	archived, aerr := s.config.Archive.Load(c.Request().Context(), id)
	if aerr != nil {
		s.logger.Debug("session not in archive", zap.String("session_id", id), zap.Error(aerr))
		return errorStatus(err)
	}
	c.Response().Header().Set(HeaderSessionSource, "archive")
	return c.JSON(http.StatusOK, archived)
}

func (s *Server) handleCancelSession(c echo.Context) error {
	res, err := s.service.Cancel(c.Param("id"))
	if err != nil {
		return errorStatus(err)
	}
	return c.JSON(http.StatusAccepted, CancelSessionResponse(res))
}

func (s *Server) handleRoles(c echo.Context) error {
	return c.JSON(http.StatusOK, RolesResponse{Roles: s.service.Roles()})
}

func (s *Server) archive() (Archive, error) {
	if s.config.Archive == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "session archive is not configured")
	}
	return s.config.Archive, nil
}

// handleListArchive returns the ids of every archived session.
func (s *Server) handleListArchive(c echo.Context) error {
	archive, err := s.archive()
	if err != nil {
		return err
	}
	ids, err := archive.IDs(c.Request().Context())
	if err != nil {
		s.logger.Error("failed to list archive", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, ArchiveResponse{SessionIDs: ids})
}

func (s *Server) handleDeleteArchived(c echo.Context) error {
	archive, err := s.archive()
	if err != nil {
		return err
	}
	id := c.Param("id")
	if err := archive.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "archived session not found")
		}
		s.logger.Error("failed to delete archived session", zap.String("session_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.NoContent(http.StatusNoContent)
}
