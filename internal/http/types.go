package http

import (
	"github.com/fyrsmithlabs/council/internal/orchestrator"
	"github.com/fyrsmithlabs/council/internal/roles"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// StartSessionRequest is the request body for POST /api/v1/sessions.
type StartSessionRequest = orchestrator.Request

// StartSessionResponse is the response body for POST /api/v1/sessions.
type StartSessionResponse struct {
	SessionID string              `json:"session_id"`
	Status    orchestrator.Status `json:"status"`
}

// ListSessionsResponse is the response body for GET /api/v1/sessions.
type ListSessionsResponse struct {
	Sessions []orchestrator.Summary `json:"sessions"`
}

// CancelSessionResponse is the response body for POST /api/v1/sessions/:id/cancel.
type CancelSessionResponse = orchestrator.CancelResult

// RolesResponse is the response body for GET /api/v1/roles.
type RolesResponse struct {
	Roles []roles.Role `json:"roles"`
}

// ArchiveResponse is the response body for GET /api/v1/archive.
type ArchiveResponse struct {
	SessionIDs []string `json:"session_ids"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message string `json:"message"`
}
