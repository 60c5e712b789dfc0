package orchestrator

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fyrsmithlabs/council/internal/roles"
)

// Record is the live state of one session.
//
// The session driver is the only writer. Readers take Snapshot, which
// copies everything under the read lock. Once the status is terminal the
// record rejects every mutation.
type Record struct {
	id       string
	request  Request
	done     chan struct{}
	doneOnce sync.Once

	mu              sync.RWMutex
	status          Status
	phase           Phase
	insights        map[roles.ID]RoleInsight
	synthesis       *Synthesis
	recommendations []Recommendation
	meta            Metadata
	cancelRequested bool
	errMsg          string
}

// NewRecord creates a pending session record positioned at the analysis phase.
func NewRecord(id string, req Request, startedAt time.Time) *Record {
	return &Record{
		id:       id,
		request:  req.clone(),
		done:     make(chan struct{}),
		status:   StatusPending,
		phase:    PhaseAnalysis,
		insights: make(map[roles.ID]RoleInsight),
		meta:     Metadata{StartedAt: startedAt},
	}
}

// ID returns the session id.
func (r *Record) ID() string {
	return r.id
}

// Request returns a copy of the request the session was started with.
func (r *Record) Request() Request {
	return r.request.clone()
}

// StartedAt returns the creation time.
func (r *Record) StartedAt() time.Time {
	return r.meta.StartedAt
}

// Done is closed once the session driver has finished, after the terminal
// status is set and its events are published.
func (r *Record) Done() <-chan struct{} {
	return r.done
}

func (r *Record) markDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

// Status returns the current status.
func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Snapshot returns a deep copy of the session.
func (r *Record) Snapshot() Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	insights := make(map[roles.ID]RoleInsight, len(r.insights))
	for id, ri := range r.insights {
		insights[id] = ri.clone()
	}

	meta := r.meta
	if r.meta.CompletedAt != nil {
		t := *r.meta.CompletedAt
		meta.CompletedAt = &t
	}

	return Session{
		ID:              r.id,
		Status:          r.status,
		Phase:           r.phase,
		Request:         r.request.clone(),
		Insights:        insights,
		Synthesis:       r.synthesis.clone(),
		Recommendations: slices.Clone(r.recommendations),
		Metadata:        meta,
		CancelRequested: r.cancelRequested,
		Error:           r.errMsg,
	}
}

// Summary returns the list view of the session.
func (r *Record) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Summary{
		ID:         r.id,
		Status:     r.status,
		Phase:      r.phase,
		Query:      r.request.Query,
		StartedAt:  r.meta.StartedAt,
		ErrorCount: r.meta.ErrorCount,
	}
}

func (r *Record) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.status.CanTransition(StatusInProgress); err != nil {
		return err
	}
	r.status = StatusInProgress
	return nil
}

// enterPhase moves the pointer forward by at most one step.
func (r *Record) enterPhase(p Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return ErrSessionTerminal
	}

	next, cur := p.index(), r.phase.index()
	switch {
	case next < 0:
		return fmt.Errorf("invalid target phase: %s", p)
	case next < cur:
		return fmt.Errorf("cannot move from %s back to %s", r.phase, p)
	case next > cur+1:
		return fmt.Errorf("cannot move from %s to %s: must follow sequential order", r.phase, p)
	}
	r.phase = p
	return nil
}

// merge commits a whole phase at once.
func (r *Record) merge(phase Phase, insights []RoleInsight, fallbacks int, tokens int64, cost float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return ErrSessionTerminal
	}
	if phase != r.phase {
		return fmt.Errorf("merge for %s while session is in %s", phase, r.phase)
	}

	for _, ri := range insights {
		r.insights[ri.Role] = ri.clone()
	}
	r.meta.ErrorCount += fallbacks
	r.meta.TokenEstimate += tokens
	r.meta.CostEstimate += cost
	return nil
}

func (r *Record) insightsCopy() map[roles.ID]RoleInsight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[roles.ID]RoleInsight, len(r.insights))
	for id, ri := range r.insights {
		out[id] = ri.clone()
	}
	return out
}

// TokenEstimate returns the tokens consumed so far.
func (r *Record) TokenEstimate() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.meta.TokenEstimate
}

// CancelRequested reports whether a cancel is pending or was honored.
func (r *Record) CancelRequested() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancelRequested
}

// requestCancel flags the session. The driver observes the flag at the
// next phase boundary.
func (r *Record) requestCancel() CancelResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := CancelResult{SessionID: r.id, Status: r.status}
	if r.status.Terminal() {
		return res
	}
	r.cancelRequested = true
	res.Accepted = true
	return res
}

// complete stores the aggregates and finishes the session in one step.
func (r *Record) complete(syn *Synthesis, recs []Recommendation, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.status.CanTransition(StatusCompleted); err != nil {
		return err
	}
	if r.phase != PhaseSynthesis {
		return fmt.Errorf("cannot complete from phase %s", r.phase)
	}
	r.synthesis = syn.clone()
	r.recommendations = slices.Clone(recs)
	r.phase = PhaseCompleted
	r.stamp(StatusCompleted, now)
	return nil
}

// finish moves the session to a failed or cancelled status.
func (r *Record) finish(status Status, errMsg string, addErrors int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.status.CanTransition(status); err != nil {
		return err
	}
	r.errMsg = errMsg
	r.meta.ErrorCount += addErrors
	r.stamp(status, now)
	return nil
}

// stamp must be called with the write lock held.
func (r *Record) stamp(status Status, now time.Time) {
	r.status = status
	t := now
	r.meta.CompletedAt = &t
	r.meta.DurationMS = now.Sub(r.meta.StartedAt).Milliseconds()
}

// insightRoles returns the roles present, in registry order.
func insightRoles(m map[roles.ID]RoleInsight) []roles.ID {
	ids := slices.Collect(maps.Keys(m))
	slices.SortFunc(ids, func(a, b roles.ID) int {
		return roles.Order(a) - roles.Order(b)
	})
	return ids
}
