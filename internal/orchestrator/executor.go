package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/council/internal/logging"
	"github.com/fyrsmithlabs/council/internal/provider"
	"github.com/fyrsmithlabs/council/internal/roles"
)

// RoleRouter resolves the provider for a role. *provider.Router implements it.
type RoleRouter interface {
	For(role roles.ID) (provider.Provider, bool)
	Price(name string) float64
}

// Executor runs one phase for every role.
//
// Each role runs in its own goroutine and a failing role never stops its
// siblings. Provider failures are replaced with fallback analyses. The
// phase is merged into the record only after every role has finished.
type Executor struct {
	router   RoleRouter
	fallback Fallback
	timeout  time.Duration
	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	now      func() time.Time

	roleCalls metric.Int64Counter

	// inspect observes every built insight before merge.
	inspect func(RoleInsight)
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Router          RoleRouter
	ProviderTimeout time.Duration
	Logger          *logging.Logger
	Tracer          trace.Tracer
	Meter           metric.Meter
}

// NewExecutor creates a phase executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, errors.New("provider timeout must be positive")
	}

	e := &Executor{
		router:  cfg.Router,
		timeout: cfg.ProviderTimeout,
		logger:  cfg.Logger,
		tracer:  cfg.Tracer,
		metrics: NewMetrics(),
		now:     time.Now,
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.tracer == nil {
		e.tracer = defaultTracer()
	}

	meter := cfg.Meter
	if meter == nil {
		meter = defaultMeter()
	}
	counter, err := meter.Int64Counter("council.role.calls",
		metric.WithDescription("Number of role analyses produced"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create role call counter: %w", err)
	}
	e.roleCalls = counter

	return e, nil
}

type roleResult struct {
	insight RoleInsight
	tokens  int64
	cost    float64
	err     error
}

// RunPhase executes phase for every role and merges the results into rec.
// It returns a *PhaseExecutionError for internal faults only.
func (e *Executor) RunPhase(ctx context.Context, rec *Record, phase Phase) (PhaseOutcome, error) {
	started := e.now()
	ctx = logging.WithPhase(ctx, string(phase))
	ctx, span := e.tracer.Start(ctx, "orchestrator.phase", trace.WithAttributes(
		attribute.String("session.id", rec.ID()),
		attribute.String("phase", string(phase)),
	))
	defer span.End()

	req := rec.Request()
	ids := roles.IDs()
	results := make([]roleResult, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.runRole(ctx, id, phase, req)
		}()
	}
	wg.Wait()

	outcome := PhaseOutcome{Phase: phase}
	insights := make([]RoleInsight, 0, len(ids))
	for i, res := range results {
		if res.err != nil {
			return e.fail(span, &PhaseExecutionError{Phase: phase, Role: ids[i], Err: res.err})
		}
		if res.insight.Role != ids[i] {
			return e.fail(span, &PhaseExecutionError{Phase: phase, Role: ids[i], Err: errors.New("missing role result")})
		}
		insights = append(insights, res.insight)
		if res.insight.Metrics.UsedFallback {
			outcome.Fallbacks++
		}
		outcome.Tokens += res.tokens
		outcome.Cost += res.cost
	}

	if err := rec.merge(phase, insights, outcome.Fallbacks, outcome.Tokens, outcome.Cost); err != nil {
		return e.fail(span, &PhaseExecutionError{Phase: phase, Err: fmt.Errorf("merge: %w", err)})
	}

	outcome.Insights = len(insights)
	outcome.Duration = e.now().Sub(started)
	e.metrics.PhaseDuration.WithLabelValues(string(phase)).Observe(outcome.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("fallbacks", outcome.Fallbacks),
		attribute.Int64("tokens", outcome.Tokens),
	)

	e.logger.Info(ctx, "phase completed",
		zap.Int("insights", outcome.Insights),
		zap.Int("fallbacks", outcome.Fallbacks),
		zap.Int64("tokens", outcome.Tokens),
		zap.Duration("duration", outcome.Duration))

	return outcome, nil
}

func (e *Executor) fail(span trace.Span, err *PhaseExecutionError) (PhaseOutcome, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "phase execution failed")
	return PhaseOutcome{}, err
}

// runRole produces one insight. A panic here is an internal fault.
func (e *Executor) runRole(ctx context.Context, role roles.ID, phase Phase, req Request) (res roleResult) {
	defer func() {
		if r := recover(); r != nil {
			res = roleResult{err: fmt.Errorf("panic building insight: %v", r)}
		}
	}()

	ctx = logging.WithRole(ctx, string(role))
	started := e.now()

	preq := provider.Request{
		Role:    role,
		Prompt:  buildPrompt(role, req),
		Context: buildContext(req, phase),
	}

	var (
		result provider.Result
		name   string
	)
	if p, ok := e.router.For(role); ok {
		name = p.Name()
		result = e.call(ctx, p, preq)
	} else {
		result = provider.Failure("none", errors.New("no provider routed"))
	}

	insight := RoleInsight{Role: role, Phase: phase}
	insight.Metrics.Provider = name

	text := result.Text
	usable := result.OK() && strings.TrimSpace(text) != ""
	if usable {
		res.tokens = int64(result.Usage.Total())
		if res.tokens == 0 {
			res.tokens = estimateTokens(preq.Prompt) + estimateTokens(preq.Context) + estimateTokens(text)
		}
		res.cost = float64(res.tokens) / 1000 * e.router.Price(name)
		e.metrics.ProviderCalls.WithLabelValues(name, string(role), "ok").Inc()
	} else {
		kind := provider.KindUnavailable
		if result.Err != nil && result.Err.Kind.Known() {
			kind = result.Err.Kind
		}
		text = e.fallback.Generate(role, phase)
		insight.Metrics.UsedFallback = true
		insight.Metrics.FailureKind = kind
		e.metrics.ProviderCalls.WithLabelValues(name, string(role), string(kind)).Inc()
		e.metrics.Fallbacks.WithLabelValues(string(role), string(phase), string(kind)).Inc()

		fields := []zap.Field{zap.String("provider", name), zap.String("kind", string(kind))}
		if result.Err != nil {
			fields = append(fields, zap.Error(result.Err))
		}
		e.logger.Warn(ctx, "provider call failed, using fallback", fields...)
	}

	insight.Analysis = text
	insight.Recommendations = extractRecommendations(text)
	insight.Metrics.WordCount = wordCount(text)
	if insight.Metrics.UsedFallback {
		insight.Confidence = FallbackConfidence
	} else {
		insight.Confidence = analysisConfidence(insight.Metrics.WordCount)
	}
	insight.CreatedAt = e.now()
	insight.Metrics.ProcessingTimeMS = insight.CreatedAt.Sub(started).Milliseconds()

	if e.inspect != nil {
		e.inspect(insight)
	}

	e.roleCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", string(role)),
		attribute.Bool("fallback", insight.Metrics.UsedFallback),
	))

	res.insight = insight
	return res
}

// call runs the provider under the per-call timeout. The result is
// abandoned when the deadline passes even if the provider keeps running.
func (e *Executor) call(ctx context.Context, p provider.Provider, req provider.Request) provider.Result {
	name := p.Name()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "provider.analyze", trace.WithAttributes(
		attribute.String("provider", name),
		attribute.String("role", string(req.Role)),
	))
	defer span.End()

	ch := make(chan provider.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- provider.Failure(name, fmt.Errorf("provider panic: %v", r))
			}
		}()
		ch <- p.Analyze(ctx, req)
	}()

	var result provider.Result
	select {
	case result = <-ch:
	case <-ctx.Done():
		result = provider.Failure(name, ctx.Err())
	}

	if !result.OK() {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, string(result.Err.Kind))
	}
	return result
}
