package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/council/internal/logging"
)

type phaseRunner interface {
	RunPhase(ctx context.Context, rec *Record, phase Phase) (PhaseOutcome, error)
}

// machine drives one session through the phase pipeline. It is the only
// writer of the record it runs.
type machine struct {
	runner phaseRunner
	gates  []Gate
	logger *logging.Logger
	tracer trace.Tracer
	now    func() time.Time

	// transition is called after every phase change; terminal after the
	// session finished.
	transition func(ctx context.Context, rec *Record, ev EventType)
	terminal   func(ctx context.Context, rec *Record)
}

func (m *machine) run(ctx context.Context, rec *Record) {
	defer rec.markDone()

	ctx = logging.WithSessionID(ctx, rec.ID())
	ctx, span := m.tracer.Start(ctx, "orchestrator.session", trace.WithAttributes(
		attribute.String("session.id", rec.ID()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, "session driver panicked", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			m.stop(ctx, rec, StatusFailed, fmt.Sprintf("internal error: %v", r), 1)
		}
	}()

	if err := rec.begin(); err != nil {
		m.logger.Warn(ctx, "session could not start", zap.Error(err))
		return
	}
	m.transition(ctx, rec, EventStarted)

	for _, phase := range WorkPhases() {
		if m.halted(ctx, rec) {
			return
		}
		if !m.enter(ctx, rec, phase) {
			return
		}
		if _, err := m.runner.RunPhase(ctx, rec, phase); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "phase failed")
			m.stop(ctx, rec, StatusFailed, err.Error(), 1)
			return
		}
	}

	if m.halted(ctx, rec) {
		return
	}
	if !m.enter(ctx, rec, PhaseSynthesis) {
		return
	}

	insights := rec.insightsCopy()
	var syn *Synthesis
	if !rec.request.Options.SkipSynthesis {
		s := Synthesize(insights)
		syn = &s
	}
	recs := GenerateRecommendations(rec.ID(), insights)

	if err := rec.complete(syn, recs, m.now()); err != nil {
		m.stop(ctx, rec, StatusFailed, err.Error(), 1)
		return
	}
	m.terminal(ctx, rec)
}

func (m *machine) enter(ctx context.Context, rec *Record, phase Phase) bool {
	if err := rec.enterPhase(phase); err != nil {
		m.stop(ctx, rec, StatusFailed, err.Error(), 1)
		return false
	}
	m.transition(ctx, rec, EventPhase)
	return true
}

// halted runs the gates and finishes the session if one of them objects.
func (m *machine) halted(ctx context.Context, rec *Record) bool {
	v := checkGates(ctx, m.gates, rec)
	if v == nil {
		return false
	}
	m.logger.Info(ctx, "session stopped by gate",
		zap.String("gate", v.Gate),
		zap.String("status", string(v.Status)),
		zap.String("reason", v.Reason))

	addErrors := 0
	if v.CountsAsError {
		addErrors = 1
	}
	m.stop(ctx, rec, v.Status, v.Reason, addErrors)
	return true
}

func (m *machine) stop(ctx context.Context, rec *Record, status Status, reason string, addErrors int) {
	if err := rec.finish(status, reason, addErrors, m.now()); err != nil {
		m.logger.Warn(ctx, "session already finished", zap.Error(err))
		return
	}
	m.terminal(ctx, rec)
}
