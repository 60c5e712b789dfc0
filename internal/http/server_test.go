package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/council/internal/orchestrator"
	"github.com/fyrsmithlabs/council/internal/provider"
	"github.com/fyrsmithlabs/council/internal/roles"
)

// MockService is a mock implementation of Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Start(ctx context.Context, req orchestrator.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockService) Status(id string) (orchestrator.Session, error) {
	args := m.Called(id)
	return args.Get(0).(orchestrator.Session), args.Error(1)
}

func (m *MockService) Cancel(id string) (orchestrator.CancelResult, error) {
	args := m.Called(id)
	return args.Get(0).(orchestrator.CancelResult), args.Error(1)
}

func (m *MockService) List() []orchestrator.Summary {
	args := m.Called()
	return args.Get(0).([]orchestrator.Summary)
}

func (m *MockService) Roles() []roles.Role {
	args := m.Called()
	return args.Get(0).([]roles.Role)
}

// MockArchive is a mock implementation of Archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Load(ctx context.Context, id string) (orchestrator.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(orchestrator.Session), args.Error(1)
}

func (m *MockArchive) IDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockArchive) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupTestServer(t *testing.T, svc Service, cfg *Config) *Server {
	t.Helper()
	server, err := NewServer(svc, zap.NewNop(), cfg)
	require.NoError(t, err)
	return server
}

func do(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9999}
		server, err := NewServer(&MockService{}, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
		assert.NotNil(t, server.Handler())
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&MockService{}, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9191, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&MockService{}, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "service cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, &MockService{}, &Config{Version: "1.2.3"})

	rec := do(server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleStartSession(t *testing.T) {
	t.Run("starts a session", func(t *testing.T) {
		svc := &MockService{}
		svc.On("Start", mock.Anything, mock.MatchedBy(func(req orchestrator.Request) bool {
			return req.Query == "Build a clinic app" &&
				req.Context.Industry == "healthcare" &&
				len(req.Context.Requirements) == 2 &&
				req.Options.SkipSynthesis &&
				req.Options.CustomPrompts[roles.UX] == "Focus on elderly users"
		})).Return("sess-1", nil)
		server := setupTestServer(t, svc, nil)

		body := map[string]any{
			"query": "Build a clinic app",
			"context": map[string]any{
				"industry":     "healthcare",
				"requirements": []string{"HIPAA", "SMS"},
			},
			"options": map[string]any{
				"skip_synthesis": true,
				"custom_prompts": map[string]string{"ux": "Focus on elderly users"},
			},
		}
		rec := do(server, http.MethodPost, "/api/v1/sessions", body)
		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp StartSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "sess-1", resp.SessionID)
		assert.Equal(t, orchestrator.StatusPending, resp.Status)
		svc.AssertExpectations(t)
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		svc := &MockService{}
		svc.On("Start", mock.Anything, mock.Anything).
			Return("", fmt.Errorf("%w: query is required", orchestrator.ErrInvalidRequest))
		server := setupTestServer(t, svc, nil)

		rec := do(server, http.MethodPost, "/api/v1/sessions", map[string]string{"query": ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "query is required")
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		server := setupTestServer(t, &MockService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{not json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		server := setupTestServer(t, &MockService{}, nil)

		big := map[string]string{"query": strings.Repeat("a", 2<<20)}
		rec := do(server, http.MethodPost, "/api/v1/sessions", big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("reports shutdown", func(t *testing.T) {
		svc := &MockService{}
		svc.On("Start", mock.Anything, mock.Anything).Return("", orchestrator.ErrClosed)
		server := setupTestServer(t, svc, nil)

		rec := do(server, http.MethodPost, "/api/v1/sessions", map[string]string{"query": "q"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleGetSession(t *testing.T) {
	t.Run("returns live snapshot", func(t *testing.T) {
		svc := &MockService{}
		svc.On("Status", "sess-1").Return(orchestrator.Session{
			ID:     "sess-1",
			Status: orchestrator.StatusInProgress,
			Phase:  orchestrator.PhaseDesign,
		}, nil)
		server := setupTestServer(t, svc, nil)

		rec := do(server, http.MethodGet, "/api/v1/sessions/sess-1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "memory", rec.Header().Get(HeaderSessionSource))

		var snap orchestrator.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, orchestrator.PhaseDesign, snap.Phase)
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		svc := &MockService{}
		svc.On("Status", "nope").Return(orchestrator.Session{}, orchestrator.ErrSessionNotFound)
		server := setupTestServer(t, svc, nil)

		rec := do(server, http.MethodGet, "/api/v1/sessions/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("falls back to archive", func(t *testing.T) {
		svc := &MockService{}
		svc.On("Status", "old").Return(orchestrator.Session{}, orchestrator.ErrSessionNotFound)
		svc.On("Status", "gone").Return(orchestrator.Session{}, orchestrator.ErrSessionNotFound)
		archive := &MockArchive{}
		archive.On("Load", mock.Anything, "old").Return(orchestrator.Session{ID: "old", Status: orchestrator.StatusCompleted}, nil)
		archive.On("Load", mock.Anything, "gone").Return(orchestrator.Session{}, errors.New("not found"))
		server := setupTestServer(t, svc, &Config{Archive: archive})

		rec := do(server, http.MethodGet, "/api/v1/sessions/old", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "archive", rec.Header().Get(HeaderSessionSource))

		rec = do(server, http.MethodGet, "/api/v1/sessions/gone", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		archive.AssertExpectations(t)
	})
}

func TestHandleArchive(t *testing.T) {
	t.Run("lists archived ids", func(t *testing.T) {
		archive := &MockArchive{}
		archive.On("IDs", mock.Anything).Return([]string{"a", "b"}, nil)
		server := setupTestServer(t, &MockService{}, &Config{Archive: archive})

		rec := do(server, http.MethodGet, "/api/v1/archive", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ArchiveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"a", "b"}, resp.SessionIDs)
	})

	t.Run("empty archive is an empty list", func(t *testing.T) {
		archive := &MockArchive{}
		archive.On("IDs", mock.Anything).Return(nil, nil)
		server := setupTestServer(t, &MockService{}, &Config{Archive: archive})

		rec := do(server, http.MethodGet, "/api/v1/archive", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"session_ids":[]}`, rec.Body.String())
	})

	t.Run("list failure is 500", func(t *testing.T) {
		archive := &MockArchive{}
		archive.On("IDs", mock.Anything).Return(nil, errors.New("bucket gone"))
		server := setupTestServer(t, &MockService{}, &Config{Archive: archive})

		rec := do(server, http.MethodGet, "/api/v1/archive", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "bucket gone")
	})

	t.Run("deletes archived session", func(t *testing.T) {
		archive := &MockArchive{}
		archive.On("Delete", mock.Anything, "old").Return(nil)
		archive.On("Delete", mock.Anything, "gone").Return(fmt.Errorf("persisted %w", orchestrator.ErrSessionNotFound))
		server := setupTestServer(t, &MockService{}, &Config{Archive: archive})

		rec := do(server, http.MethodDelete, "/api/v1/archive/old", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(server, http.MethodDelete, "/api/v1/archive/gone", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		archive.AssertExpectations(t)
	})

	t.Run("no archive configured", func(t *testing.T) {
		server := setupTestServer(t, &MockService{}, nil)

		rec := do(server, http.MethodGet, "/api/v1/archive", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		rec = do(server, http.MethodDelete, "/api/v1/archive/old", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleCancelSession(t *testing.T) {
	svc := &MockService{}
	svc.On("Cancel", "sess-1").Return(orchestrator.CancelResult{SessionID: "sess-1", Accepted: true, Status: orchestrator.StatusInProgress}, nil)
	svc.On("Cancel", "nope").Return(orchestrator.CancelResult{}, orchestrator.ErrSessionNotFound)
	server := setupTestServer(t, svc, nil)

	rec := do(server, http.MethodPost, "/api/v1/sessions/sess-1/cancel", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CancelSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, orchestrator.StatusInProgress, resp.Status)

	rec = do(server, http.MethodPost, "/api/v1/sessions/nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListAndRoles(t *testing.T) {
	svc := &MockService{}
	svc.On("List").Return([]orchestrator.Summary{{ID: "a", Status: orchestrator.StatusCompleted}})
	svc.On("Roles").Return(roles.List())
	server := setupTestServer(t, svc, nil)

	rec := do(server, http.MethodGet, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "a", list.Sessions[0].ID)

	rec = do(server, http.MethodGet, "/api/v1/roles", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var rr RolesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rr))
	require.Len(t, rr.Roles, 6)
	assert.Equal(t, roles.Requirements, rr.Roles[0].ID)
	assert.NotContains(t, rec.Body.String(), "You are a", "prompts are not exposed")
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t, &MockService{}, nil)
	rec := do(server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	server, err := NewServer(&MockService{}, zap.New(core), nil)
	require.NoError(t, err)

	do(server, http.MethodGet, "/health", nil)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestServer_EndToEnd(t *testing.T) {
	router, err := provider.NewRouter(map[string]provider.Provider{provider.NameOffline: provider.NewOffline()}, provider.NameOffline, nil)
	require.NoError(t, err)
	orch, err := orchestrator.New(orchestrator.Options{Router: router})
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close(context.Background()) })

	server := setupTestServer(t, orch, nil)

	rec := do(server, http.MethodPost, "/api/v1/sessions", map[string]string{"query": "Launch a neighborhood tool library"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started StartSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	var snap orchestrator.Session
	require.Eventually(t, func() bool {
		rec := do(server, http.MethodGet, "/api/v1/sessions/"+started.SessionID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, orchestrator.StatusCompleted, snap.Status)
	assert.Len(t, snap.Insights, 6)
	require.NotNil(t, snap.Synthesis)
	assert.NotEmpty(t, snap.Recommendations)

	rec = do(server, http.MethodPost, "/api/v1/sessions/"+started.SessionID+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	var cancelled CancelSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.False(t, cancelled.Accepted, "finished sessions cannot be cancelled")
}
