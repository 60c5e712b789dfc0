package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	councilhttp "github.com/fyrsmithlabs/council/internal/http"
	"github.com/fyrsmithlabs/council/internal/orchestrator"
)

// client talks to the councild HTTP API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

func (c *client) do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		var er councilhttp.ErrorResponse
		if json.Unmarshal(data, &er) != nil || er.Message == "" {
			er.Message = strings.TrimSpace(string(data))
		}
		return nil, &apiError{Status: resp.StatusCode, Message: er.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.Header, nil
}

func (c *client) health(ctx context.Context) (councilhttp.HealthResponse, error) {
	var out councilhttp.HealthResponse
	_, err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *client) start(ctx context.Context, req orchestrator.Request) (councilhttp.StartSessionResponse, error) {
	var out councilhttp.StartSessionResponse
	_, err := c.do(ctx, http.MethodPost, "/api/v1/sessions", req, &out)
	return out, err
}

// status returns the session and where the server found it (memory or archive).
func (c *client) status(ctx context.Context, id string) (orchestrator.Session, string, error) {
	var out orchestrator.Session
	h, err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+id, nil, &out)
	if err != nil {
		return out, "", err
	}
	return out, h.Get(councilhttp.HeaderSessionSource), nil
}

func (c *client) cancel(ctx context.Context, id string) (councilhttp.CancelSessionResponse, error) {
	var out councilhttp.CancelSessionResponse
	_, err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+id+"/cancel", nil, &out)
	return out, err
}

func (c *client) list(ctx context.Context) (councilhttp.ListSessionsResponse, error) {
	var out councilhttp.ListSessionsResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v1/sessions", nil, &out)
	return out, err
}

func (c *client) roles(ctx context.Context) (councilhttp.RolesResponse, error) {
	var out councilhttp.RolesResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v1/roles", nil, &out)
	return out, err
}

func (c *client) archived(ctx context.Context) (councilhttp.ArchiveResponse, error) {
	var out councilhttp.ArchiveResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v1/archive", nil, &out)
	return out, err
}

func (c *client) deleteArchived(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/archive/"+id, nil, nil)
	return err
}

// wait polls the session until it reaches a terminal status.
func (c *client) wait(ctx context.Context, id string, interval time.Duration) (orchestrator.Session, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, _, err := c.status(ctx, id)
		if err != nil {
			return snap, err
		}
		if snap.Status.Terminal() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}
