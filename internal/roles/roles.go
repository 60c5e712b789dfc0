// Package roles defines the fixed council of analyst roles.
//
// The table is built once at package init and never mutated. Every accessor
// hands out copies, so callers may modify what they receive.
package roles

import "slices"

// ID identifies an analyst role.
type ID string

const (
	Requirements ID = "requirements"
	Technical    ID = "technical"
	UX           ID = "ux"
	Data         ID = "data"
	Planning     ID = "planning"
	Strategy     ID = "strategy"
)

// Role describes one analyst persona.
type Role struct {
	ID                ID       `json:"id"`
	Name              string   `json:"name"`
	Strengths         []string `json:"strengths"`
	PreferredProvider string   `json:"preferred_provider"`
	Prompt            string   `json:"-"`
}

var table = []Role{
	{
		ID:                Requirements,
		Name:              "Requirements Analyst",
		Strengths:         []string{"requirements", "user stories", "acceptance criteria", "scope"},
		PreferredProvider: "anthropic",
		Prompt: `You are a senior requirements analyst.
Identify the functional and non-functional requirements, the stakeholders, and the open questions.
Write acceptance criteria for the most important requirements and call out scope risks.
End with a list of recommendations, one per line, each starting with "- ".`,
	},
	{
		ID:                Technical,
		Name:              "Technical Architect",
		Strengths:         []string{"architecture", "scalability", "integration", "security"},
		PreferredProvider: "openai",
		Prompt: `You are a technical architect.
Propose a system architecture, the main components and their integrations, and the technology choices.
Assess scalability, security, and operational concerns.
End with a list of recommendations, one per line, each starting with "- ".`,
	},
	{
		ID:                UX,
		Name:              "UX Designer",
		Strengths:         []string{"user research", "usability", "accessibility", "journeys"},
		PreferredProvider: "anthropic",
		Prompt: `You are a UX designer.
Describe the target users, their key journeys, and the usability and accessibility concerns.
Suggest how the experience should be validated with real users.
End with a list of recommendations, one per line, each starting with "- ".`,
	},
	{
		ID:                Data,
		Name:              "Data Analyst",
		Strengths:         []string{"metrics", "analytics", "data modeling", "experimentation"},
		PreferredProvider: "openai",
		Prompt: `You are a data analyst.
Define the success metrics, the data that must be collected, and how it should be modeled.
Explain how outcomes will be measured and which experiments are worth running.
End with a list of recommendations, one per line, each starting with "- ".`,
	},
	{
		ID:                Planning,
		Name:              "Project Planner",
		Strengths:         []string{"roadmaps", "milestones", "resourcing", "dependencies"},
		PreferredProvider: "openai",
		Prompt: `You are a project planner.
Break the work into milestones with rough durations, the team needed, and the critical dependencies.
Highlight schedule risks and what should be delivered first.
End with a list of recommendations, one per line, each starting with "- ".`,
	},
	{
		ID:                Strategy,
		Name:              "Business Strategist",
		Strengths:         []string{"market positioning", "business model", "competition", "growth"},
		PreferredProvider: "anthropic",
		Prompt: `You are a business strategist.
Analyze the market opportunity, the competitive landscape, and the business model.
Point out strategic risks and the opportunities worth pursuing.
End with a list of recommendations, one per line, each starting with "- ".`,
	},
}

var index = func() map[ID]int {
	m := make(map[ID]int, len(table))
	for i, r := range table {
		m[r.ID] = i
	}
	return m
}()

func (r Role) clone() Role {
	r.Strengths = slices.Clone(r.Strengths)
	return r
}

// List returns every role in council order.
func List() []Role {
	out := make([]Role, len(table))
	for i, r := range table {
		out[i] = r.clone()
	}
	return out
}

// IDs returns every role id in council order.
func IDs() []ID {
	out := make([]ID, len(table))
	for i, r := range table {
		out[i] = r.ID
	}
	return out
}

// Get looks up a role by id.
func Get(id ID) (Role, bool) {
	i, ok := index[id]
	if !ok {
		return Role{}, false
	}
	return table[i].clone(), true
}

// Valid reports whether id names a council role.
func Valid(id ID) bool {
	_, ok := index[id]
	return ok
}

// PromptFor returns the prompt template for a role, or "" for unknown ids.
func PromptFor(id ID) string {
	if i, ok := index[id]; ok {
		return table[i].Prompt
	}
	return ""
}

// Order returns the position of id in council order, or len(List()) if unknown.
func Order(id ID) int {
	if i, ok := index[id]; ok {
		return i
	}
	return len(table)
}
