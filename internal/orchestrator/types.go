package orchestrator

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/fyrsmithlabs/council/internal/provider"
	"github.com/fyrsmithlabs/council/internal/roles"
)

// Phase is a step of the fixed session pipeline.
type Phase string

const (
	PhaseAnalysis  Phase = "analysis"
	PhaseDesign    Phase = "design"
	PhasePlanning  Phase = "planning"
	PhaseSynthesis Phase = "synthesis"
	PhaseCompleted Phase = "completed"
)

// AllPhases returns all phases in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseAnalysis, PhaseDesign, PhasePlanning, PhaseSynthesis, PhaseCompleted}
}

// WorkPhases returns the phases in which roles are consulted.
func WorkPhases() []Phase {
	return []Phase{PhaseAnalysis, PhaseDesign, PhasePlanning}
}

func (p Phase) index() int {
	return slices.Index(AllPhases(), p)
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition checks if the status may move to next.
func (s Status) CanTransition(next Status) error {
	if s.Terminal() {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrSessionTerminal, s, next)
	}
	switch next {
	case StatusInProgress:
		if s != StatusPending {
			return fmt.Errorf("cannot move from %s to %s", s, next)
		}
	case StatusCompleted, StatusFailed:
		if s != StatusInProgress {
			return fmt.Errorf("cannot move from %s to %s", s, next)
		}
	case StatusCancelled:
	default:
		return fmt.Errorf("invalid target status: %s", next)
	}
	return nil
}

// RequestContext is optional structured context supplied with a query.
type RequestContext struct {
	Industry     string   `json:"industry,omitempty"`
	Budget       string   `json:"budget,omitempty"`
	Timeline     string   `json:"timeline,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

// RequestOptions tune a single session.
type RequestOptions struct {
	SkipSynthesis bool                `json:"skip_synthesis,omitempty"`
	CustomPrompts map[roles.ID]string `json:"custom_prompts,omitempty"`
	Persist       bool                `json:"persist,omitempty"`
}

// Request is what a caller asks the council to analyze.
type Request struct {
	Query   string         `json:"query"`
	Context RequestContext `json:"context"`
	Options RequestOptions `json:"options"`
}

func (r Request) clone() Request {
	r.Context.Requirements = slices.Clone(r.Context.Requirements)
	r.Options.CustomPrompts = maps.Clone(r.Options.CustomPrompts)
	return r
}

// InsightMetrics describes how an insight was produced.
type InsightMetrics struct {
	ProcessingTimeMS int64         `json:"processing_time_ms"`
	WordCount        int           `json:"word_count"`
	UsedFallback     bool          `json:"used_fallback"`
	Provider         string        `json:"provider"`
	FailureKind      provider.Kind `json:"failure_kind,omitempty"`
}

// RoleInsight is one role's output for one phase.
type RoleInsight struct {
	Role            roles.ID       `json:"role"`
	Phase           Phase          `json:"phase"`
	Analysis        string         `json:"analysis"`
	Recommendations []string       `json:"recommendations"`
	Confidence      float64        `json:"confidence"`
	Metrics         InsightMetrics `json:"metrics"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (ri RoleInsight) clone() RoleInsight {
	ri.Recommendations = slices.Clone(ri.Recommendations)
	return ri
}

// Synthesis aggregates the role insights of a session.
type Synthesis struct {
	Summary         string     `json:"summary"`
	KeyFindings     []string   `json:"key_findings"`
	Recommendations []string   `json:"recommendations"`
	NextSteps       []string   `json:"next_steps"`
	Confidence      float64    `json:"confidence"`
	RolesConsidered []roles.ID `json:"roles_considered"`
}

func (s *Synthesis) clone() *Synthesis {
	if s == nil {
		return nil
	}
	c := *s
	c.KeyFindings = slices.Clone(s.KeyFindings)
	c.Recommendations = slices.Clone(s.Recommendations)
	c.NextSteps = slices.Clone(s.NextSteps)
	c.RolesConsidered = slices.Clone(s.RolesConsidered)
	return &c
}

// RecommendationType categorizes a recommendation.
type RecommendationType string

const (
	RecommendationProduct     RecommendationType = "product"
	RecommendationStrategy    RecommendationType = "strategy"
	RecommendationAction      RecommendationType = "action"
	RecommendationRisk        RecommendationType = "risk"
	RecommendationOpportunity RecommendationType = "opportunity"
)

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is a ranked, actionable item derived from role insights.
type Recommendation struct {
	ID          string             `json:"id"`
	Type        RecommendationType `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Confidence  float64            `json:"confidence"`
	Priority    Priority           `json:"priority"`
	Role        roles.ID           `json:"role"`
}

// Metadata carries session accounting.
type Metadata struct {
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DurationMS    int64      `json:"duration_ms"`
	ErrorCount    int        `json:"error_count"`
	TokenEstimate int64      `json:"token_estimate"`
	CostEstimate  float64    `json:"cost_estimate"`

	// RedactedSecrets counts secrets removed from the request before any
	// provider saw it.
	RedactedSecrets int `json:"redacted_secrets,omitempty"`
}

// Session is a point-in-time copy of a session. It shares no memory with
// the live record.
type Session struct {
	ID              string                   `json:"id"`
	Status          Status                   `json:"status"`
	Phase           Phase                    `json:"phase"`
	Request         Request                  `json:"request"`
	Insights        map[roles.ID]RoleInsight `json:"insights"`
	Synthesis       *Synthesis               `json:"synthesis,omitempty"`
	Recommendations []Recommendation         `json:"recommendations,omitempty"`
	Metadata        Metadata                 `json:"metadata"`
	CancelRequested bool                     `json:"cancel_requested"`
	Error           string                   `json:"error,omitempty"`
}

// Summary is the list view of a session.
type Summary struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Phase      Phase     `json:"phase"`
	Query      string    `json:"query"`
	StartedAt  time.Time `json:"started_at"`
	ErrorCount int       `json:"error_count"`
}

// CancelResult reports what a cancel request did.
type CancelResult struct {
	SessionID string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
	Status    Status `json:"status"`
}

// PhaseOutcome summarizes one executed phase.
type PhaseOutcome struct {
	Phase     Phase
	Insights  int
	Fallbacks int
	Tokens    int64
	Cost      float64
	Duration  time.Duration
}
