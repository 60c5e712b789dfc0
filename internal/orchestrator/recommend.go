package orchestrator

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/council/internal/roles"
)

const (
	maxRecommendations = 10
	maxTitleRunes      = 80

	highPriorityConfidence   = 0.85
	mediumPriorityConfidence = 0.7
)

var roleRecommendationType = map[roles.ID]RecommendationType{
	roles.Requirements: RecommendationProduct,
	roles.Technical:    RecommendationAction,
	roles.UX:           RecommendationProduct,
	roles.Data:         RecommendationAction,
	roles.Planning:     RecommendationAction,
	roles.Strategy:     RecommendationStrategy,
}

type candidate struct {
	rec      Recommendation
	order    int
	position int
}

// GenerateRecommendations ranks the recommendations of every insight.
//
// Candidates are ordered by confidence, then role order, then their
// position in the role's list. At most ten are returned, with ids
// "<session>-rec-NN" assigned after ranking.
func GenerateRecommendations(sessionID string, insights map[roles.ID]RoleInsight) []Recommendation {
	var cands []candidate
	for _, id := range insightRoles(insights) {
		ri := insights[id]
		for pos, text := range ri.Recommendations {
			cands = append(cands, candidate{
				rec: Recommendation{
					Type:        recommendationType(id, text),
					Title:       truncateRunes(text, maxTitleRunes),
					Description: fmt.Sprintf("%s (from %s, %s phase)", text, roleName(id), ri.Phase),
					Confidence:  ri.Confidence,
					Priority:    priorityFor(ri.Confidence),
					Role:        id,
				},
				order:    roles.Order(id),
				position: pos,
			})
		}
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(b.rec.Confidence, a.rec.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(a.order, b.order); c != 0 {
			return c
		}
		return cmp.Compare(a.position, b.position)
	})

	n := min(len(cands), maxRecommendations)
	out := make([]Recommendation, n)
	for i := range n {
		out[i] = cands[i].rec
		out[i].ID = fmt.Sprintf("%s-rec-%02d", sessionID, i+1)
	}
	return out
}

func recommendationType(role roles.ID, text string) RecommendationType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "risk"):
		return RecommendationRisk
	case strings.Contains(lower, "opportunit"):
		return RecommendationOpportunity
	}
	if t, ok := roleRecommendationType[role]; ok {
		return t
	}
	return RecommendationAction
}

func priorityFor(confidence float64) Priority {
	switch {
	case confidence >= highPriorityConfidence:
		return PriorityHigh
	case confidence >= mediumPriorityConfidence:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
