package orchestrator

import (
	"strings"

	"github.com/fyrsmithlabs/council/internal/roles"
)

// buildPrompt combines the role template, or the caller's override, with
// the query.
func buildPrompt(role roles.ID, req Request) string {
	template := roles.PromptFor(role)
	if custom := strings.TrimSpace(req.Options.CustomPrompts[role]); custom != "" {
		template = custom
	}
	return template + "\n\nRequest:\n" + strings.TrimSpace(req.Query)
}

// buildContext renders the structured request context plus the phase.
func buildContext(req Request, phase Phase) string {
	var b strings.Builder
	c := req.Context
	if c.Industry != "" {
		b.WriteString("Industry: " + c.Industry + "\n")
	}
	if c.Budget != "" {
		b.WriteString("Budget: " + c.Budget + "\n")
	}
	if c.Timeline != "" {
		b.WriteString("Timeline: " + c.Timeline + "\n")
	}
	if len(c.Requirements) > 0 {
		b.WriteString("Requirements:\n")
		for _, r := range c.Requirements {
			b.WriteString("  * " + r + "\n")
		}
	}
	b.WriteString("Phase: " + string(phase) + "\n")
	if focus, ok := phaseFocus[phase]; ok {
		b.WriteString("Phase focus: " + focus + "\n")
	}
	return b.String()
}
