package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/council/internal/roles"
)

// FallbackConfidence is the confidence of every fallback insight.
const FallbackConfidence = 0.6

// Fallback produces baseline analyses when a provider call fails.
// It is deterministic and never fails.
type Fallback struct{}

var phaseFocus = map[Phase]string{
	PhaseAnalysis: "understanding the problem and its constraints",
	PhaseDesign:   "shaping a solution that fits those constraints",
	PhasePlanning: "sequencing the work into deliverable steps",
}

// Generate returns the fallback analysis for role in phase.
func (Fallback) Generate(role roles.ID, phase Phase) string {
	r, ok := roles.Get(role)
	if !ok {
		r = roles.Role{ID: role, Name: string(role), Strengths: []string{"general review"}}
	}
	first := r.Strengths[0]
	second := first
	if len(r.Strengths) > 1 {
		second = r.Strengths[1]
	}

	focus, ok := phaseFocus[phase]
	if !ok {
		focus = "the request"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s baseline assessment for the %s phase.\n\n", r.Name, phase)
	fmt.Fprintf(&b, "A detailed analysis could not be produced. This phase is about %s.\n", focus)
	fmt.Fprintf(&b, "Areas to cover: %s.\n\n", strings.Join(r.Strengths, ", "))
	b.WriteString("Recommendations:\n")
	fmt.Fprintf(&b, "- Review %s with the team before the %s phase closes\n", first, phase)
	fmt.Fprintf(&b, "- Schedule a dedicated %s session once analysis is available\n", second)
	return b.String()
}
