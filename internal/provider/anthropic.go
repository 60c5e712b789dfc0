package provider

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/fyrsmithlabs/council/internal/logging"
)

// NameAnthropic is the routing name of the Anthropic provider.
const NameAnthropic = "anthropic"

const anthropicVersion = "2023-06-01"

const analystSystemPrompt = `You are one member of a council of specialist analysts reviewing a single request.
Stay within your specialty, be concrete, and keep the answer under 500 words.`

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	client *apiClient
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(cfg config.ProviderConfig, logger *logging.Logger) (*Anthropic, error) {
	client, err := newAPIClient(NameAnthropic, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Anthropic{client: client}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Anthropic) Name() string { return NameAnthropic }

// Analyze sends the role prompt as a single user turn.
func (a *Anthropic) Analyze(ctx context.Context, req Request) Result {
	body := anthropicRequest{
		Model:       a.client.model,
		MaxTokens:   defaultMaxTokens,
		System:      analystSystemPrompt,
		Temperature: defaultTemperature,
		Messages:    []anthropicMessage{{Role: "user", Content: userContent(req)}},
	}
	headers := map[string]string{
		"X-API-Key":         a.client.apiKey.Value(),
		"Anthropic-Version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := a.client.call(ctx, "/v1/messages", headers, body, &resp); err != nil {
		return Failure(NameAnthropic, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Failure(NameAnthropic, ErrEmptyResponse)
	}

	return Success(text.String(), Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})
}
