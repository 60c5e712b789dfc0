package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/council/internal/roles"
)

const maxSynthesisRecommendations = 10

var keyFindings = map[roles.ID]string{
	roles.Requirements: "Requirements and acceptance criteria have been identified and scoped",
	roles.Technical:    "A technical architecture with integration and scaling considerations is proposed",
	roles.UX:           "Target users, key journeys and accessibility needs are described",
	roles.Data:         "Success metrics and the supporting data model are outlined",
	roles.Planning:     "A phased delivery plan with milestones and dependencies is drafted",
	roles.Strategy:     "Market positioning and the business model have been assessed",
}

var nextSteps = map[roles.ID]string{
	roles.Requirements: "Validate the prioritized requirements with stakeholders",
	roles.Technical:    "Build a technical proof of concept for the riskiest component",
	roles.UX:           "Run usability tests on the core journeys with real users",
	roles.Data:         "Instrument the agreed success metrics before launch",
	roles.Planning:     "Confirm the milestone plan and staffing with the delivery team",
	roles.Strategy:     "Review the go-to-market plan against competitor moves",
}

// Synthesize aggregates insights into a synthesis. It is a pure function of
// its input; an empty map yields zero confidence and empty lists.
func Synthesize(insights map[roles.ID]RoleInsight) Synthesis {
	ids := insightRoles(insights)
	syn := Synthesis{
		KeyFindings:     []string{},
		Recommendations: []string{},
		NextSteps:       []string{},
		RolesConsidered: ids,
	}
	if len(ids) == 0 {
		syn.Summary = "No role analyses were available to synthesize."
		syn.RolesConsidered = []roles.ID{}
		return syn
	}

	names := make([]string, 0, len(ids))
	var total float64
	for _, id := range ids {
		ri := insights[id]
		total += ri.Confidence
		names = append(names, roleName(id))

		if f, ok := keyFindings[id]; ok {
			syn.KeyFindings = append(syn.KeyFindings, f)
		}
		if s, ok := nextSteps[id]; ok {
			syn.NextSteps = append(syn.NextSteps, s)
		}
		for _, rec := range ri.Recommendations {
			if len(syn.Recommendations) == maxSynthesisRecommendations {
				break
			}
			syn.Recommendations = append(syn.Recommendations, rec)
		}
	}

	syn.Confidence = total / float64(len(ids))
	syn.Summary = fmt.Sprintf("Synthesis of %d role analyses: %s.", len(ids), strings.Join(names, ", "))
	return syn
}

func roleName(id roles.ID) string {
	if r, ok := roles.Get(id); ok {
		return r.Name
	}
	return string(id)
}
