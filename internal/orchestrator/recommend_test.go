package orchestrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/council/internal/roles"
)

func TestGenerateRecommendations_Ranking(t *testing.T) {
	insights := map[roles.ID]RoleInsight{
		roles.Strategy: {Role: roles.Strategy, Phase: PhasePlanning, Confidence: 0.95,
			Recommendations: []string{"Grow the partner channel"}},
		roles.Requirements: {Role: roles.Requirements, Phase: PhasePlanning, Confidence: 0.82,
			Recommendations: []string{"Write acceptance criteria", "Mitigate the compliance risk"}},
		roles.Technical: {Role: roles.Technical, Phase: PhasePlanning, Confidence: 0.82,
			Recommendations: []string{"Explore the API opportunity"}},
		roles.UX: {Role: roles.UX, Phase: PhasePlanning, Confidence: FallbackConfidence,
			Recommendations: []string{"Run a usability study"}},
	}

	recs := GenerateRecommendations("s1", insights)
	require.Len(t, recs, 5)

	assert.Equal(t, "s1-rec-01", recs[0].ID)
	assert.Equal(t, roles.Strategy, recs[0].Role)
	assert.Equal(t, RecommendationStrategy, recs[0].Type)
	assert.Equal(t, PriorityHigh, recs[0].Priority)

	// equal confidence: role order, then position
	assert.Equal(t, "Write acceptance criteria", recs[1].Title)
	assert.Equal(t, RecommendationProduct, recs[1].Type)
	assert.Equal(t, "Mitigate the compliance risk", recs[2].Title)
	assert.Equal(t, RecommendationRisk, recs[2].Type)
	assert.Equal(t, roles.Technical, recs[3].Role)
	assert.Equal(t, RecommendationOpportunity, recs[3].Type)
	assert.Equal(t, PriorityMedium, recs[3].Priority)

	assert.Equal(t, roles.UX, recs[4].Role)
	assert.Equal(t, PriorityLow, recs[4].Priority)
	assert.Equal(t, "s1-rec-05", recs[4].ID)
	assert.Contains(t, recs[4].Description, "UX Designer")
}

func TestGenerateRecommendations_CapAndDeterminism(t *testing.T) {
	insights := map[roles.ID]RoleInsight{}
	for _, id := range roles.IDs() {
		insights[id] = RoleInsight{
			Role:            id,
			Confidence:      0.8,
			Recommendations: []string{fmt.Sprintf("%s one", id), fmt.Sprintf("%s two", id), fmt.Sprintf("%s three", id)},
		}
	}

	first := GenerateRecommendations("abc", insights)
	require.Len(t, first, maxRecommendations)
	assert.Equal(t, first, GenerateRecommendations("abc", insights))

	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Confidence, first[i].Confidence)
	}
	assert.Equal(t, "abc-rec-10", first[9].ID)
}

func TestGenerateRecommendations_Empty(t *testing.T) {
	assert.Empty(t, GenerateRecommendations("s", nil))
	assert.Empty(t, GenerateRecommendations("s", map[roles.ID]RoleInsight{roles.UX: {Role: roles.UX}}))
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, PriorityHigh, priorityFor(0.85))
	assert.Equal(t, PriorityMedium, priorityFor(0.84))
	assert.Equal(t, PriorityMedium, priorityFor(0.7))
	assert.Equal(t, PriorityLow, priorityFor(0.69))
}
