package service

import (
	"math"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

const (
	InitialBeliefConfidence = 0.7
	AgreementStep           = 0.2
	DisagreementStep        = 0.3
	// ReplacementThreshold is the confidence below which a contradicted
	// belief is archived and replaced by the incoming proposition.
	ReplacementThreshold    = 0.3
	DefaultBeliefImportance = 0.5
	DefaultBeliefDecayRate  = 0.01 // per day
)

// SourceWeight scales how strongly a proposition moves an existing belief.
func SourceWeight(src domain.BeliefSource) float64 {
	switch src {
	case domain.SourceObservation:
		return 1.0
	case domain.SourceToldByHuman:
		return 0.9
	case domain.SourceInference:
		return 0.7
	case domain.SourcePrior:
		return 0.5
	default:
		return 0.5
	}
}

// Agree returns the confidence after a proposition with the given source
// weight agreed with the belief.
func Agree(confidence, weight float64) float64 {
	return clamp01(confidence + weight*AgreementStep)
}

// Disagree returns the confidence after a contradicting proposition.
func Disagree(confidence, weight float64) float64 {
	return clamp01(confidence - weight*DisagreementStep)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
