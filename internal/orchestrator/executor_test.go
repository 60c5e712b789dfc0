package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/council/internal/provider"
	"github.com/fyrsmithlabs/council/internal/roles"
)

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{ProviderTimeout: time.Second})
	assert.Error(t, err)

	_, err = NewExecutor(ExecutorConfig{Router: offlineRouter()})
	assert.Error(t, err)
}

func TestExecutor_RunPhase_AllRolesSucceed(t *testing.T) {
	exec, logger, tel := newTestExecutor(t, offlineRouter(), time.Second)
	rec := startedRecord(t, Request{Query: "Build a booking platform for clinics"})

	out, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 6, out.Insights)
	assert.Zero(t, out.Fallbacks)
	assert.Positive(t, out.Tokens)
	assert.Zero(t, out.Cost, "offline provider has no price")

	s := rec.Snapshot()
	require.Len(t, s.Insights, 6)
	for _, id := range roles.IDs() {
		ri := s.Insights[id]
		assert.Equal(t, id, ri.Role)
		assert.Equal(t, PhaseAnalysis, ri.Phase)
		assert.False(t, ri.Metrics.UsedFallback)
		assert.Equal(t, provider.NameOffline, ri.Metrics.Provider)
		assert.GreaterOrEqual(t, ri.Confidence, 0.80)
		assert.LessOrEqual(t, ri.Confidence, 0.95)
		assert.NotEmpty(t, ri.Recommendations)
		assert.Equal(t, wordCount(ri.Analysis), ri.Metrics.WordCount)
		assert.Contains(t, ri.Analysis, "analysis phase")
	}
	assert.Zero(t, s.Metadata.ErrorCount)
	assert.Equal(t, out.Tokens, s.Metadata.TokenEstimate)

	logger.AssertLogged(t, zapcore.InfoLevel, "phase completed")
	logger.AssertField(t, "phase completed", "session.phase", "analysis")
	tel.AssertSpanExists(t, "orchestrator.phase")
	tel.AssertSpanAttribute(t, "orchestrator.phase", "phase", "analysis")
	tel.AssertSpanExists(t, "provider.analyze")
	assert.Equal(t, int64(6), tel.CounterValue(t, "council.role.calls"))
}

func TestExecutor_RunPhase_FailuresUseFallback(t *testing.T) {
	kinds := []provider.Kind{provider.KindUnavailable, provider.KindTimeout, provider.KindRejected, provider.Kind("weird")}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			exec, logger, _ := newTestExecutor(t, routeAll(failingProvider(kind)), time.Second)
			rec := startedRecord(t, Request{Query: "q"})

			wantKind := kind
			if !kind.Known() {
				wantKind = provider.KindUnavailable
			}
			before := testutil.ToFloat64(exec.metrics.Fallbacks.WithLabelValues(string(roles.UX), string(PhaseDesign), string(wantKind)))

			require.NoError(t, rec.enterPhase(PhaseDesign))
			out, err := exec.RunPhase(context.Background(), rec, PhaseDesign)
			require.NoError(t, err)
			assert.Equal(t, 6, out.Fallbacks)
			assert.Zero(t, out.Tokens)

			s := rec.Snapshot()
			assert.Equal(t, 6, s.Metadata.ErrorCount)
			for _, ri := range s.Insights {
				assert.True(t, ri.Metrics.UsedFallback)
				assert.Equal(t, wantKind, ri.Metrics.FailureKind)
				assert.Equal(t, FallbackConfidence, ri.Confidence)
				assert.Len(t, ri.Recommendations, 2)
				assert.Equal(t, Fallback{}.Generate(ri.Role, PhaseDesign), ri.Analysis)
			}

			after := testutil.ToFloat64(exec.metrics.Fallbacks.WithLabelValues(string(roles.UX), string(PhaseDesign), string(wantKind)))
			assert.Equal(t, before+1, after)
			logger.AssertLogged(t, zapcore.WarnLevel, "using fallback")
		})
	}
}

func TestExecutor_RunPhase_MixedOutcomes(t *testing.T) {
	good := NewMockProvider("good")
	good.On("Analyze", mock.Anything, mock.Anything).
		Return(provider.Success("Solid plan.\n- Do the thing", provider.Usage{InputTokens: 100, OutputTokens: 400}))

	router := &staticRouter{
		fallback: good,
		byRole: map[roles.ID]provider.Provider{
			roles.Data: failingProvider(provider.KindRejected),
		},
		prices: map[string]float64{"good": 0.01},
	}
	exec, _, _ := newTestExecutor(t, router, time.Second)
	rec := startedRecord(t, Request{Query: "q"})

	out, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Fallbacks)
	assert.Equal(t, int64(2500), out.Tokens)
	assert.InDelta(t, 0.025, out.Cost, 1e-9)

	s := rec.Snapshot()
	assert.Equal(t, 1, s.Metadata.ErrorCount)
	assert.True(t, s.Insights[roles.Data].Metrics.UsedFallback)
	assert.False(t, s.Insights[roles.UX].Metrics.UsedFallback)
	assert.Equal(t, []string{"Do the thing"}, s.Insights[roles.UX].Recommendations)
	good.AssertNumberOfCalls(t, "Analyze", 5)
}

func TestExecutor_RunPhase_PromptAndContext(t *testing.T) {
	var got atomic.Value
	p := &funcProvider{name: "capture", fn: func(_ context.Context, req provider.Request) provider.Result {
		if req.Role == roles.UX {
			got.Store(req)
		}
		return provider.Success("ok\n- fine", provider.Usage{})
	}}
	exec, _, _ := newTestExecutor(t, routeAll(p), time.Second)

	req := Request{
		Query: "  Build a clinic booking app  ",
		Context: RequestContext{
			Industry:     "healthcare",
			Budget:       "$200k",
			Timeline:     "6 months",
			Requirements: []string{"HIPAA"},
		},
		Options: RequestOptions{CustomPrompts: map[roles.ID]string{roles.UX: "Custom UX prompt"}},
	}
	rec := startedRecord(t, req)

	_, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.NoError(t, err)

	captured := got.Load().(provider.Request)
	assert.True(t, strings.HasPrefix(captured.Prompt, "Custom UX prompt"))
	assert.Contains(t, captured.Prompt, "Request:\nBuild a clinic booking app")
	assert.Contains(t, captured.Context, "Industry: healthcare")
	assert.Contains(t, captured.Context, "Budget: $200k")
	assert.Contains(t, captured.Context, "Timeline: 6 months")
	assert.Contains(t, captured.Context, "HIPAA")
	assert.Contains(t, captured.Context, "Phase: analysis")
}

func TestExecutor_RunPhase_RolesRunConcurrently(t *testing.T) {
	var arrived atomic.Int32
	all := make(chan struct{})
	p := &funcProvider{name: "barrier", fn: func(ctx context.Context, req provider.Request) provider.Result {
		if arrived.Add(1) == int32(len(roles.IDs())) {
			close(all)
		}
		select {
		case <-all:
			return provider.Success("together\n- yes", provider.Usage{})
		case <-ctx.Done():
			return provider.Failure("barrier", ctx.Err())
		}
	}}
	exec, _, _ := newTestExecutor(t, routeAll(p), 5*time.Second)
	rec := startedRecord(t, Request{Query: "q"})

	out, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.NoError(t, err)
	assert.Zero(t, out.Fallbacks, "every role must be in flight at the same time")
}

func TestExecutor_RunPhase_TimeoutIsEnforced(t *testing.T) {
	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })

	p := &funcProvider{name: "stuck", fn: func(context.Context, provider.Request) provider.Result {
		<-hang
		return provider.Success("late", provider.Usage{})
	}}
	exec, _, _ := newTestExecutor(t, routeAll(p), 50*time.Millisecond)
	rec := startedRecord(t, Request{Query: "q"})

	start := time.Now()
	out, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 6, out.Fallbacks)
	for _, ri := range rec.Snapshot().Insights {
		assert.Equal(t, provider.KindTimeout, ri.Metrics.FailureKind)
	}
}

func TestExecutor_RunPhase_ProviderPanicIsMasked(t *testing.T) {
	p := &funcProvider{name: "panicky", fn: func(_ context.Context, req provider.Request) provider.Result {
		if req.Role == roles.Technical {
			panic("backend exploded")
		}
		return provider.Success("fine\n- ok", provider.Usage{})
	}}
	exec, _, _ := newTestExecutor(t, routeAll(p), time.Second)
	rec := startedRecord(t, Request{Query: "q"})

	out, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Fallbacks)

	ri := rec.Snapshot().Insights[roles.Technical]
	assert.True(t, ri.Metrics.UsedFallback)
	assert.Equal(t, provider.KindUnavailable, ri.Metrics.FailureKind)
}

func TestExecutor_RunPhase_InternalFault(t *testing.T) {
	exec, _, tel := newTestExecutor(t, offlineRouter(), time.Second)
	exec.inspect = func(ri RoleInsight) {
		if ri.Role == roles.Planning {
			panic("corrupt insight")
		}
	}
	rec := startedRecord(t, Request{Query: "q"})

	_, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.Error(t, err)

	var pe *PhaseExecutionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PhaseAnalysis, pe.Phase)
	assert.Equal(t, roles.Planning, pe.Role)
	assert.Contains(t, err.Error(), "corrupt insight")

	assert.Empty(t, rec.Snapshot().Insights, "a failed phase merges nothing")
	assert.Zero(t, rec.Snapshot().Metadata.ErrorCount)
	tel.AssertSpanExists(t, "orchestrator.phase")
}

func TestExecutor_RunPhase_MissingRoute(t *testing.T) {
	router := &staticRouter{}
	exec, _, _ := newTestExecutor(t, router, time.Second)
	rec := startedRecord(t, Request{Query: "q"})

	out, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 6, out.Fallbacks)
}

func TestExecutor_RunPhase_TerminalRecord(t *testing.T) {
	exec, _, _ := newTestExecutor(t, offlineRouter(), time.Second)
	rec := startedRecord(t, Request{Query: "q"})
	require.NoError(t, rec.finish(StatusCancelled, "", 0, time.Now()))

	_, err := exec.RunPhase(context.Background(), rec, PhaseAnalysis)
	var pe *PhaseExecutionError
	require.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, ErrSessionTerminal))
}
