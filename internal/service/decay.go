package service

import (
	"math"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

// DecayModel selects how belief confidence fades without reinforcement.
type DecayModel string

const (
	DecayLinear      DecayModel = "linear"
	DecayExponential DecayModel = "exponential"
)

// ParseDecayModel maps a config value to a model, defaulting to linear.
func ParseDecayModel(s string) DecayModel {
	if DecayModel(s) == DecayExponential {
		return DecayExponential
	}
	return DecayLinear
}

// Apply decays confidence by rate (per day) over elapsed. Negative elapsed
// time is treated as zero so a clock step backwards never raises confidence.
func (m DecayModel) Apply(confidence, rate float64, elapsed time.Duration) float64 {
	if elapsed <= 0 || rate <= 0 {
		return clamp01(confidence)
	}
	days := elapsed.Hours() / 24
	switch m {
	case DecayExponential:
		return clamp01(confidence * math.Exp(-rate*days))
	default:
		return clamp01(confidence - rate*days)
	}
}

// EffectiveConfidence is the belief's confidence as of now. It is computed on
// every read and never stored.
func EffectiveConfidence(b *domain.Belief, now time.Time, m DecayModel) float64 {
	return m.Apply(b.Confidence, b.DecayRate, now.Sub(b.LastUpdatedAt))
}
