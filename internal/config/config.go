// Package config provides configuration loading for council.
//
// Configuration is read from an optional YAML file and then overridden by
// COUNCIL_-prefixed environment variables. See LoadWithFile for precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete council configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Orchestrator  OrchestratorConfig  `koanf:"orchestrator"`
	Providers     ProvidersConfig     `koanf:"providers"`
	NATS          NATSConfig          `koanf:"nats"`
	Persist       PersistConfig       `koanf:"persist"`
	Redaction     RedactionConfig     `koanf:"redaction"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// OrchestratorConfig controls session execution.
type OrchestratorConfig struct {
	// ProviderTimeout bounds every single role call.
	ProviderTimeout Duration `koanf:"provider_timeout"`

	// SessionTTL is how long a terminal session stays pollable.
	SessionTTL Duration `koanf:"session_ttl"`

	// SweepInterval is how often expired sessions are evicted.
	SweepInterval Duration `koanf:"sweep_interval"`

	// MaxQueryLength is the maximum query size in runes.
	MaxQueryLength int `koanf:"max_query_length"`

	// TokenBudget fails a session whose token estimate exceeds it. 0 disables.
	TokenBudget int64 `koanf:"token_budget"`
}

// ProvidersConfig configures the capability providers and role routing.
type ProvidersConfig struct {
	// Default is used for roles whose preferred provider is not configured.
	Default string `koanf:"default"`

	Anthropic ProviderConfig `koanf:"anthropic"`
	OpenAI    ProviderConfig `koanf:"openai"`
	Ollama    OllamaConfig   `koanf:"ollama"`

	// Routing overrides the preferred provider per role id.
	Routing map[string]string `koanf:"routing"`
}

// ProviderConfig configures a hosted LLM API.
type ProviderConfig struct {
	APIKey        Secret   `koanf:"api_key"`
	BaseURL       string   `koanf:"base_url"`
	Model         string   `koanf:"model"`
	Timeout       Duration `koanf:"timeout"`
	RatePerMinute float64  `koanf:"rate_per_minute"`
	Burst         int      `koanf:"burst"`
	MaxRetries    int      `koanf:"max_retries"`
	PricePer1K    float64  `koanf:"price_per_1k"`
}

// Enabled reports whether the provider has credentials.
func (p ProviderConfig) Enabled() bool {
	return p.APIKey.IsSet()
}

// OllamaConfig configures a local model served by Ollama.
type OllamaConfig struct {
	Enabled   bool   `koanf:"enabled"`
	ServerURL string `koanf:"server_url"`
	Model     string `koanf:"model"`
}

// NATSConfig configures the event bus.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// PersistConfig configures durable storage of finished sessions.
type PersistConfig struct {
	// Always persists every terminal session, not only those that ask for it.
	Always  bool     `koanf:"always"`
	Bucket  string   `koanf:"bucket"`
	Timeout Duration `koanf:"timeout"`
}

// RedactionConfig controls secret scrubbing of incoming requests.
type RedactionConfig struct {
	// Disabled turns scrubbing off. Requests then reach providers verbatim.
	Disabled bool `koanf:"disabled"`

	// AllowlistPath is an optional gitleaks-style TOML file whose
	// [allowlist] regexes are never redacted.
	AllowlistPath string `koanf:"allowlist_path"`
}

// ObservabilityConfig holds logging and OpenTelemetry settings.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	LogLevel        string  `koanf:"log_level"`
	LogFormat       string  `koanf:"log_format"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"` // grpc or http/protobuf
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
}

const (
	providerOffline   = "offline"
	providerAnthropic = "anthropic"
	providerOpenAI    = "openai"
	providerOllama    = "ollama"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Any timeout is not positive
//   - The default provider is unknown or unconfigured
//   - NATS is enabled without a URL
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Orchestrator.ProviderTimeout <= 0 {
		return errors.New("provider timeout must be positive")
	}
	if c.Orchestrator.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Orchestrator.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.Orchestrator.MaxQueryLength <= 0 {
		return fmt.Errorf("max query length must be positive, got %d", c.Orchestrator.MaxQueryLength)
	}
	if c.Orchestrator.TokenBudget < 0 {
		return fmt.Errorf("token budget cannot be negative, got %d", c.Orchestrator.TokenBudget)
	}

	if !c.Providers.Available(c.Providers.Default) {
		return fmt.Errorf("default provider %q is not configured", c.Providers.Default)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats url required when nats is enabled")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// Available reports whether the named provider can be constructed.
func (p ProvidersConfig) Available(name string) bool {
	switch name {
	case providerOffline:
		return true
	case providerAnthropic:
		return p.Anthropic.Enabled()
	case providerOpenAI:
		return p.OpenAI.Enabled()
	case providerOllama:
		return p.Ollama.Enabled
	default:
		return false
	}
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	// Orchestrator defaults
	if cfg.Orchestrator.ProviderTimeout == 0 {
		cfg.Orchestrator.ProviderTimeout = Duration(30 * time.Second)
	}
	if cfg.Orchestrator.SessionTTL == 0 {
		cfg.Orchestrator.SessionTTL = Duration(time.Hour)
	}
	if cfg.Orchestrator.SweepInterval == 0 {
		cfg.Orchestrator.SweepInterval = Duration(5 * time.Minute)
	}
	if cfg.Orchestrator.MaxQueryLength == 0 {
		cfg.Orchestrator.MaxQueryLength = 8000
	}

	// Provider defaults
	if cfg.Providers.Default == "" {
		cfg.Providers.Default = providerOffline
	}
	applyProviderDefaults(&cfg.Providers.Anthropic, "https://api.anthropic.com", "claude-3-5-sonnet-20241022", 0.009)
	applyProviderDefaults(&cfg.Providers.OpenAI, "https://api.openai.com", "gpt-4o-mini", 0.0004)
	if cfg.Providers.Ollama.ServerURL == "" {
		cfg.Providers.Ollama.ServerURL = "http://localhost:11434"
	}
	if cfg.Providers.Ollama.Model == "" {
		cfg.Providers.Ollama.Model = "llama3.1"
	}

	// NATS defaults
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "council.sessions"
	}

	// Persistence defaults
	if cfg.Persist.Bucket == "" {
		cfg.Persist.Bucket = "council_sessions"
	}
	if cfg.Persist.Timeout == 0 {
		cfg.Persist.Timeout = Duration(5 * time.Second)
	}

	// Observability defaults
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "council"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
		cfg.Observability.OTLPInsecure = true
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}

func applyProviderDefaults(p *ProviderConfig, baseURL, model string, price float64) {
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	if p.Model == "" {
		p.Model = model
	}
	if p.Timeout == 0 {
		p.Timeout = Duration(60 * time.Second)
	}
	if p.RatePerMinute == 0 {
		p.RatePerMinute = 50
	}
	if p.Burst == 0 {
		p.Burst = 5
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 2
	}
	if p.PricePer1K == 0 {
		p.PricePer1K = price
	}
}
