package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/fyrsmithlabs/council/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxTokens   = 1500
	defaultTemperature = 0.4
	defaultBaseBackoff = 1 * time.Second
	maxErrorBody       = 512
)

// apiClient holds what the hosted HTTP backends share: credentials, a rate
// limiter and the retry loop.
type apiClient struct {
	name        string
	model       string
	apiKey      config.Secret
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *logging.Logger
}

func newAPIClient(name string, cfg config.ProviderConfig, logger *logging.Logger) (*apiClient, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%s API key required", name)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s base URL required", name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s model required", name)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	perSecond := cfg.RatePerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 50.0 / 60.0
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &apiClient{
		name:        name,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		maxRetries:  max(cfg.MaxRetries, 0),
		baseBackoff: defaultBaseBackoff,
		logger:      logger.Named(name),
	}, nil
}

// call posts body to path, retrying unavailable failures with exponential
// backoff, and decodes a 200 response into out.
func (c *apiClient) call(ctx context.Context, path string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Debug(ctx, "retrying provider call",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("rate limiter: %w", err)
		}

		lastErr = c.do(ctx, path, headers, payload, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *apiClient) do(ctx context.Context, path string, headers map[string]string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage pulls error.message out of a JSON error body, which both
// hosted APIs use, or returns the truncated raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}

// userContent joins prompt and context into one user message.
func userContent(req Request) string {
	if req.Context == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\nContext:\n" + req.Context
}
