package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/council/internal/logging"
	"github.com/fyrsmithlabs/council/internal/provider"
	"github.com/fyrsmithlabs/council/internal/roles"
	"github.com/fyrsmithlabs/council/internal/telemetry"
)

// MockProvider is a mock implementation of provider.Provider
type MockProvider struct {
	mock.Mock
	name string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Analyze(ctx context.Context, req provider.Request) provider.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(provider.Result)
}

// funcProvider adapts a function to provider.Provider.
type funcProvider struct {
	name string
	fn   func(ctx context.Context, req provider.Request) provider.Result
}

func (f *funcProvider) Name() string { return f.name }

func (f *funcProvider) Analyze(ctx context.Context, req provider.Request) provider.Result {
	return f.fn(ctx, req)
}

// staticRouter routes every role to one provider unless overridden.
type staticRouter struct {
	fallback provider.Provider
	byRole   map[roles.ID]provider.Provider
	prices   map[string]float64
}

func routeAll(p provider.Provider) *staticRouter {
	return &staticRouter{fallback: p}
}

func (r *staticRouter) For(role roles.ID) (provider.Provider, bool) {
	if p, ok := r.byRole[role]; ok {
		return p, true
	}
	return r.fallback, r.fallback != nil
}

func (r *staticRouter) Price(name string) float64 {
	return r.prices[name]
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types(sessionID string) []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []EventType
	for _, ev := range p.events {
		if ev.SessionID == sessionID {
			out = append(out, ev.Type)
		}
	}
	return out
}

// MockPersister is a mock implementation of Persister
type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) Persist(ctx context.Context, s Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// gatedProvider blocks every call until release is closed.
type gatedProvider struct {
	name    string
	release chan struct{}
	calls   chan roles.ID
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{
		name:    "gated",
		release: make(chan struct{}),
		calls:   make(chan roles.ID, 64),
	}
}

func (g *gatedProvider) Name() string { return g.name }

func (g *gatedProvider) Analyze(ctx context.Context, req provider.Request) provider.Result {
	g.calls <- req.Role
	select {
	case <-g.release:
		return provider.NewOffline().Analyze(context.Background(), req)
	case <-ctx.Done():
		return provider.Failure(g.name, ctx.Err())
	}
}

// waitCalls waits until n calls reached the provider.
func (g *gatedProvider) waitCalls(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-g.calls:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d provider calls arrived", i, n)
		}
	}
}

func offlineRouter() *staticRouter {
	return routeAll(provider.NewOffline())
}

func failingProvider(kind provider.Kind) *funcProvider {
	return &funcProvider{name: "broken", fn: func(context.Context, provider.Request) provider.Result {
		return provider.Result{Err: &provider.Error{Kind: kind, Provider: "broken", Err: context.DeadlineExceeded}}
	}}
}

func newTestExecutor(t *testing.T, router RoleRouter, timeout time.Duration) (*Executor, *logging.TestLogger, *telemetry.TestTelemetry) {
	t.Helper()
	logger := logging.NewTestLogger()
	tel := telemetry.NewTestTelemetry()
	exec, err := NewExecutor(ExecutorConfig{
		Router:          router,
		ProviderTimeout: timeout,
		Logger:          logger.Logger,
		Tracer:          tel.Tracer(instrumentationName),
		Meter:           tel.Meter(instrumentationName),
	})
	require.NoError(t, err)
	return exec, logger, tel
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.Router == nil {
		opts.Router = offlineRouter()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewTestLogger().Logger
	}
	o, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Close(ctx)
	})
	return o
}

func await(t *testing.T, o *Orchestrator, id string) Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := o.Await(ctx, id)
	require.NoError(t, err)
	return s
}

func startedRecord(t *testing.T, req Request) *Record {
	t.Helper()
	rec := NewRecord("sess-1", req, time.Now())
	require.NoError(t, rec.begin())
	return rec
}
