package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// NameOllama is the routing name of the local Ollama provider.
const NameOllama = "ollama"

// Ollama runs analyses on a local model through langchaingo.
type Ollama struct {
	model llms.Model
}

// NewOllama connects to the Ollama server in cfg.
func NewOllama(cfg config.OllamaConfig) (*Ollama, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model required")
	}
	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.ServerURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return &Ollama{model: llm}, nil
}

// NewOllamaWithModel wraps an existing llms.Model.
func NewOllamaWithModel(model llms.Model) *Ollama {
	return &Ollama{model: model}
}

func (o *Ollama) Name() string { return NameOllama }

// Analyze sends a system and a human message to the local model.
func (o *Ollama) Analyze(ctx context.Context, req Request) Result {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, analystSystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userContent(req)),
	}

	resp, err := o.model.GenerateContent(ctx, messages,
		llms.WithTemperature(defaultTemperature),
		llms.WithMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return Failure(NameOllama, err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return Failure(NameOllama, ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	return Success(choice.Content, Usage{
		InputTokens:  intInfo(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
	})
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
