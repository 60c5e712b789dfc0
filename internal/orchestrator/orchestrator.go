package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/council/internal/logging"
	"github.com/fyrsmithlabs/council/internal/roles"
)

const instrumentationName = "github.com/fyrsmithlabs/council/internal/orchestrator"

func defaultTracer() trace.Tracer { return otel.Tracer(instrumentationName) }

func defaultMeter() metric.Meter { return otel.Meter(instrumentationName) }

// Options configures an Orchestrator. Only Router is required.
type Options struct {
	Router   RoleRouter
	Registry Registry

	// Events receives every transition. Defaults to a no-op publisher.
	Events EventPublisher

	// Persister stores finished sessions that asked for it, or all of them
	// when PersistAlways is set.
	Persister      Persister
	PersistAlways  bool
	PersistTimeout time.Duration

	// Redactor, when set, scrubs secrets from every request before it is
	// stored or sent to a provider.
	Redactor Redactor

	ProviderTimeout time.Duration
	SessionTTL      time.Duration
	SweepInterval   time.Duration
	MaxQueryLength  int
	TokenBudget     int64

	// Gates run after the built-in cancellation, shutdown and budget gates.
	Gates []Gate

	Logger *logging.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

func (o *Options) applyDefaults() {
	if o.Registry == nil {
		o.Registry = NewMemoryRegistry()
	}
	if o.Events == nil {
		o.Events = nopPublisher{}
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 30 * time.Second
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	if o.MaxQueryLength <= 0 {
		o.MaxQueryLength = DefaultMaxQueryLength
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = defaultTracer()
	}
}

// Orchestrator is the entry point for running sessions.
type Orchestrator struct {
	opts     Options
	registry Registry
	machine  *machine
	logger   *logging.Logger
	metrics  *Metrics
	now      func() time.Time

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	closed  bool
	drivers sync.WaitGroup
	bg      sync.WaitGroup
	stop    chan struct{}
}

// New creates an orchestrator and starts its session sweeper.
func New(opts Options) (*Orchestrator, error) {
	if opts.Router == nil {
		return nil, errors.New("router is required")
	}
	opts.applyDefaults()

	exec, err := NewExecutor(ExecutorConfig{
		Router:          opts.Router,
		ProviderTimeout: opts.ProviderTimeout,
		Logger:          opts.Logger,
		Tracer:          opts.Tracer,
		Meter:           opts.Meter,
	})
	if err != nil {
		return nil, err
	}

	return newOrchestrator(opts, exec), nil
}

func newOrchestrator(opts Options, runner phaseRunner) *Orchestrator {
	baseCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		opts:       opts,
		registry:   opts.Registry,
		logger:     opts.Logger,
		metrics:    NewMetrics(),
		now:        time.Now,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		stop:       make(chan struct{}),
	}

	gates := append(DefaultGates(opts.TokenBudget), opts.Gates...)
	o.machine = &machine{
		runner:     runner,
		gates:      gates,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
		now:        func() time.Time { return o.now() },
		transition: o.publish,
		terminal:   o.finished,
	}

	o.bg.Add(1)
	go o.sweepLoop()
	return o
}

// Start validates req, registers a new session and runs it in the
// background. The session outlives ctx.
func (o *Orchestrator) Start(ctx context.Context, req Request) (string, error) {
	if err := ValidateRequest(req, o.opts.MaxQueryLength); err != nil {
		return "", err
	}
	req = req.clone()
	req.Query = strings.TrimSpace(req.Query)
	req, redacted := redactRequest(o.opts.Redactor, req)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrClosed
	}
	o.drivers.Add(1)
	o.mu.Unlock()

	rec := NewRecord(uuid.New().String(), req, o.now())
	rec.meta.RedactedSecrets = redacted
	if err := o.registry.Put(rec); err != nil {
		o.drivers.Done()
		return "", fmt.Errorf("failed to register session: %w", err)
	}

	o.metrics.SessionsStarted.Inc()
	o.metrics.ActiveSessions.Inc()

	ctx = logging.WithSessionID(ctx, rec.ID())
	o.logger.Info(ctx, "session created", zap.Int("query_length", len(req.Query)))
	if redacted > 0 {
		o.metrics.SecretsRedacted.Add(float64(redacted))
		o.logger.Warn(ctx, "secrets redacted from request", zap.Int("count", redacted))
	}
	o.publish(ctx, rec, EventCreated)

	go func() {
		defer o.drivers.Done()
		o.machine.run(o.baseCtx, rec)
	}()

	return rec.ID(), nil
}

// Status returns a snapshot of the session.
func (o *Orchestrator) Status(id string) (Session, error) {
	rec, err := o.registry.Get(id)
	if err != nil {
		return Session{}, err
	}
	return rec.Snapshot(), nil
}

// Cancel requests cooperative cancellation. A session already in a
// terminal status is left untouched and the request is not accepted.
func (o *Orchestrator) Cancel(id string) (CancelResult, error) {
	rec, err := o.registry.Get(id)
	if err != nil {
		return CancelResult{}, err
	}
	res := rec.requestCancel()
	o.logger.Info(logging.WithSessionID(context.Background(), id), "cancel requested",
		zap.Bool("accepted", res.Accepted),
		zap.String("status", string(res.Status)))
	return res, nil
}

// List returns a summary of every stored session, oldest first.
func (o *Orchestrator) List() []Summary {
	recs := o.registry.List()
	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Summary())
	}
	return out
}

// Roles returns the council roles.
func (o *Orchestrator) Roles() []roles.Role {
	return roles.List()
}

// Await blocks until the session is terminal or ctx is done, then returns
// its latest snapshot.
func (o *Orchestrator) Await(ctx context.Context, id string) (Session, error) {
	rec, err := o.registry.Get(id)
	if err != nil {
		return Session{}, err
	}
	select {
	case <-rec.Done():
		return rec.Snapshot(), nil
	case <-ctx.Done():
		return rec.Snapshot(), ctx.Err()
	}
}

// Close stops accepting sessions, signals running drivers to stop at their
// next phase boundary, and waits for them and any pending persistence.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.cancelBase()
	close(o.stop)

	done := make(chan struct{})
	go func() {
		o.drivers.Wait()
		o.bg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
}

func (o *Orchestrator) publish(ctx context.Context, rec *Record, typ EventType) {
	s := rec.Summary()
	ev := Event{
		SessionID:  s.ID,
		Type:       typ,
		Status:     s.Status,
		Phase:      s.Phase,
		ErrorCount: s.ErrorCount,
		Timestamp:  o.now(),
	}
	if err := o.opts.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		o.logger.Warn(ctx, "failed to publish session event",
			zap.String("event", string(typ)),
			zap.Error(err))
	}
}

// finished runs once per session, after its terminal transition.
func (o *Orchestrator) finished(ctx context.Context, rec *Record) {
	snap := rec.Snapshot()

	o.metrics.SessionsFinished.WithLabelValues(string(snap.Status)).Inc()
	o.metrics.ActiveSessions.Dec()

	o.logger.Info(ctx, "session finished",
		zap.String("status", string(snap.Status)),
		zap.Int("error_count", snap.Metadata.ErrorCount),
		zap.Int64("token_estimate", snap.Metadata.TokenEstimate),
		zap.Int64("duration_ms", snap.Metadata.DurationMS))

	o.publish(ctx, rec, terminalEvent(snap.Status))

	if o.opts.Persister == nil || !(o.opts.PersistAlways || snap.Request.Options.Persist) {
		return
	}

	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.PersistTimeout)
		defer cancel()
		if err := o.opts.Persister.Persist(pctx, snap); err != nil {
			o.logger.Warn(ctx, "failed to persist session", zap.Error(err))
			return
		}
		o.logger.Debug(ctx, "session persisted")
	}()
}

func (o *Orchestrator) sweepLoop() {
	defer o.bg.Done()
	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.sweep()
		}
	}
}

func (o *Orchestrator) sweep() int {
	n := o.registry.SweepExpired(o.opts.SessionTTL)
	if n > 0 {
		o.metrics.SessionsEvicted.Add(float64(n))
		o.logger.Debug(context.Background(), "evicted expired sessions", zap.Int("count", n))
	}
	return n
}
