package orchestrator

import (
	"context"
	"fmt"
)

// Gate is checked at every phase boundary. A non-nil verdict stops the
// session before the next phase starts.
type Gate interface {
	// Name returns the gate identifier
	Name() string

	// Check inspects the session and the driver context
	Check(ctx context.Context, rec *Record) *Verdict
}

// Verdict is a gate's decision to stop a session.
type Verdict struct {
	Gate   string
	Status Status
	Reason string

	// CountsAsError adds one to the session error count.
	CountsAsError bool
}

// CancellationGate honors cancel requests.
type CancellationGate struct{}

// NewCancellationGate creates a new cancellation gate
func NewCancellationGate() *CancellationGate {
	return &CancellationGate{}
}

func (g *CancellationGate) Name() string {
	return "cancellation"
}

func (g *CancellationGate) Check(_ context.Context, rec *Record) *Verdict {
	if !rec.CancelRequested() {
		return nil
	}
	return &Verdict{Gate: g.Name(), Status: StatusCancelled, Reason: "cancelled by request"}
}

// ShutdownGate fails sessions once the orchestrator is closing.
type ShutdownGate struct{}

// NewShutdownGate creates a new shutdown gate
func NewShutdownGate() *ShutdownGate {
	return &ShutdownGate{}
}

func (g *ShutdownGate) Name() string {
	return "shutdown"
}

func (g *ShutdownGate) Check(ctx context.Context, _ *Record) *Verdict {
	if ctx.Err() == nil {
		return nil
	}
	return &Verdict{Gate: g.Name(), Status: StatusFailed, Reason: "orchestrator shutting down"}
}

// BudgetGate fails sessions whose token estimate exceeds Limit.
// A zero limit disables the gate.
type BudgetGate struct {
	Limit int64
}

// NewBudgetGate creates a new token budget gate
func NewBudgetGate(limit int64) *BudgetGate {
	return &BudgetGate{Limit: limit}
}

func (g *BudgetGate) Name() string {
	return "token-budget"
}

func (g *BudgetGate) Check(_ context.Context, rec *Record) *Verdict {
	if g.Limit <= 0 {
		return nil
	}
	used := rec.TokenEstimate()
	if used <= g.Limit {
		return nil
	}
	return &Verdict{
		Gate:   g.Name(),
		Status: StatusFailed,
		Reason: fmt.Sprintf("token budget exceeded: %d > %d", used, g.Limit),
	}
}

// DefaultGates returns the gates every session runs through.
func DefaultGates(tokenBudget int64) []Gate {
	return []Gate{NewCancellationGate(), NewShutdownGate(), NewBudgetGate(tokenBudget)}
}

func checkGates(ctx context.Context, gates []Gate, rec *Record) *Verdict {
	for _, g := range gates {
		if v := g.Check(ctx, rec); v != nil {
			return v
		}
	}
	return nil
}
