package provider

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/fyrsmithlabs/council/internal/logging"
	"github.com/fyrsmithlabs/council/internal/roles"
	"go.uber.org/zap"
)

// Router is the immutable role to provider table.
//
// Every role is resolved when the router is built: an explicit override
// wins, then the role's preferred provider, then the default. A router that
// was built successfully always has a provider for every role.
type Router struct {
	routes map[roles.ID]Provider
	prices map[string]float64
}

// NewRouter resolves every role against the available providers.
// Overrides map role ids to provider names and must name known roles and
// available providers.
func NewRouter(providers map[string]Provider, defaultName string, overrides map[string]string) (*Router, error) {
	if _, ok := providers[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q is not available", defaultName)
	}

	for role, name := range overrides {
		if !roles.Valid(roles.ID(role)) {
			return nil, fmt.Errorf("routing override for unknown role %q", role)
		}
		if _, ok := providers[name]; !ok {
			return nil, fmt.Errorf("routing override %s -> %q: provider not available", role, name)
		}
	}

	routes := make(map[roles.ID]Provider, len(roles.IDs()))
	for _, r := range roles.List() {
		name := r.PreferredProvider
		if o, ok := overrides[string(r.ID)]; ok {
			name = o
		}
		p, ok := providers[name]
		if !ok {
			p = providers[defaultName]
		}
		routes[r.ID] = p
	}

	return &Router{routes: routes, prices: map[string]float64{}}, nil
}

// WithPrices returns a copy of the router carrying per-provider prices in
// currency units per 1000 tokens.
func (r *Router) WithPrices(prices map[string]float64) *Router {
	return &Router{routes: r.routes, prices: maps.Clone(prices)}
}

// For returns the provider routed for role.
func (r *Router) For(role roles.ID) (Provider, bool) {
	p, ok := r.routes[role]
	return p, ok
}

// Price returns the configured price per 1000 tokens for a provider name.
func (r *Router) Price(name string) float64 {
	return r.prices[name]
}

// Routes returns role id to provider name.
func (r *Router) Routes() map[roles.ID]string {
	out := make(map[roles.ID]string, len(r.routes))
	for id, p := range r.routes {
		out[id] = p.Name()
	}
	return out
}

// FromConfig builds every configured provider and the router over them.
// The offline provider is always available.
func FromConfig(ctx context.Context, cfg config.ProvidersConfig, logger *logging.Logger) (*Router, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	providers := map[string]Provider{NameOffline: NewOffline()}
	prices := map[string]float64{}

	if cfg.Anthropic.Enabled() {
		p, err := NewAnthropic(cfg.Anthropic, logger)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		providers[NameAnthropic] = p
		prices[NameAnthropic] = cfg.Anthropic.PricePer1K
	}
	if cfg.OpenAI.Enabled() {
		p, err := NewOpenAI(cfg.OpenAI, logger)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		providers[NameOpenAI] = p
		prices[NameOpenAI] = cfg.OpenAI.PricePer1K
	}
	if cfg.Ollama.Enabled {
		p, err := NewOllama(cfg.Ollama)
		if err != nil {
			return nil, fmt.Errorf("ollama provider: %w", err)
		}
		providers[NameOllama] = p
	}

	router, err := NewRouter(providers, cfg.Default, cfg.Routing)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	logger.Info(ctx, "providers configured",
		zap.Strings("available", names),
		zap.String("default", cfg.Default),
		zap.Any("routes", router.Routes()))

	return router.WithPrices(prices), nil
}
