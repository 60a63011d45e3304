package service

import (
	"math"
	"sort"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

const (
	DefaultFreshnessDecay  = 0.0001 // per hour
	DefaultImportanceFloor = 0.5
	recallOverfetch        = 3
)

// RecallScorer ranks similarity hits so that important, recent experiences
// beat equally similar trivia.
type RecallScorer struct {
	FreshnessDecay float64
	// ImportanceFloor is the weight an episode of zero importance keeps.
	ImportanceFloor float64
	TypeWeights     map[domain.EpisodeType]float64
}

func NewRecallScorer() *RecallScorer {
	return &RecallScorer{
		FreshnessDecay:  DefaultFreshnessDecay,
		ImportanceFloor: DefaultImportanceFloor,
	}
}

func (s *RecallScorer) Score(hit domain.EpisodeWithScore, now time.Time) float64 {
	ageHours := now.Sub(hit.OccurredAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	freshness := math.Exp(-s.FreshnessDecay * ageHours)

	importance := s.ImportanceFloor + (1-s.ImportanceFloor)*clamp01(hit.Importance)

	typeWeight := 1.0
	if w, ok := s.TypeWeights[hit.Type]; ok {
		typeWeight = w
	}
	return hit.Similarity * importance * freshness * typeWeight
}

// Rank scores hits in place and orders them best first.
func (s *RecallScorer) Rank(hits []domain.EpisodeWithScore, now time.Time) []domain.EpisodeWithScore {
	for i := range hits {
		hits[i].Score = s.Score(hits[i], now)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}
