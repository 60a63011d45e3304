package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(desc string, similarity, importance float64, occurred time.Time) domain.EpisodeWithScore {
	return domain.EpisodeWithScore{
		Episode: domain.Episode{
			Type:        domain.EpisodeObservation,
			Description: desc,
			Importance:  importance,
			OccurredAt:  occurred,
		},
		Similarity: similarity,
	}
}

func TestRecallScorer_Score(t *testing.T) {
	scorer := NewRecallScorer()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.InDelta(t, 0.9, scorer.Score(hit("fresh, vital", 0.9, 1, now), now), 1e-9)
	assert.InDelta(t, 0.45, scorer.Score(hit("fresh, trivial", 0.9, 0, now), now), 1e-9)

	old := scorer.Score(hit("a year ago", 0.9, 1, now.AddDate(-1, 0, 0)), now)
	assert.Less(t, old, 0.9)
	assert.Greater(t, old, 0.0)

	future := scorer.Score(hit("clock skew", 0.9, 1, now.Add(time.Hour)), now)
	assert.InDelta(t, 0.9, future, 1e-9)
}

func TestRecallScorer_TypeWeights(t *testing.T) {
	scorer := NewRecallScorer()
	scorer.TypeWeights = map[domain.EpisodeType]float64{domain.EpisodeObservation: 0.5}
	now := time.Now()

	assert.InDelta(t, 0.4, scorer.Score(hit("x", 0.8, 1, now), now), 1e-9)
}

func TestRecallScorer_RankPrefersImportantExperience(t *testing.T) {
	scorer := NewRecallScorer()
	now := time.Now()

	ranked := scorer.Rank([]domain.EpisodeWithScore{
		hit("small talk", 0.82, 0.1, now),
		hit("lost the deal", 0.80, 0.9, now),
	}, now)

	require.Len(t, ranked, 2)
	assert.Equal(t, "lost the deal", ranked[0].Description)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}
