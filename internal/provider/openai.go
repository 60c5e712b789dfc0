package provider

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/fyrsmithlabs/council/internal/logging"
)

// NameOpenAI is the routing name of the OpenAI provider.
const NameOpenAI = "openai"

// OpenAI calls the OpenAI Chat Completions API.
type OpenAI struct {
	client *apiClient
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg config.ProviderConfig, logger *logging.Logger) (*OpenAI, error) {
	client, err := newAPIClient(NameOpenAI, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &OpenAI{client: client}, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (o *OpenAI) Name() string { return NameOpenAI }

// Analyze sends a system turn followed by the role prompt.
func (o *OpenAI) Analyze(ctx context.Context, req Request) Result {
	body := openAIRequest{
		Model:       o.client.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		Messages: []openAIMessage{
			{Role: "system", Content: analystSystemPrompt},
			{Role: "user", Content: userContent(req)},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + o.client.apiKey.Value(),
	}

	var resp openAIResponse
	if err := o.client.call(ctx, "/v1/chat/completions", headers, body, &resp); err != nil {
		return Failure(NameOpenAI, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Failure(NameOpenAI, ErrEmptyResponse)
	}

	return Success(resp.Choices[0].Message.Content, Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})
}
