package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSourceWeight(t *testing.T) {
	assert.Equal(t, 1.0, SourceWeight(domain.SourceObservation))
	assert.Equal(t, 0.9, SourceWeight(domain.SourceToldByHuman))
	assert.Equal(t, 0.7, SourceWeight(domain.SourceInference))
	assert.Equal(t, 0.5, SourceWeight(domain.SourcePrior))
}

func TestAgreeDisagree_Bounds(t *testing.T) {
	assert.InDelta(t, 0.9, Agree(0.7, 1.0), 1e-9)
	assert.Equal(t, 1.0, Agree(0.95, 1.0))
	assert.InDelta(t, 0.49, Disagree(0.7, 0.7), 1e-9)
	assert.Equal(t, 0.0, Disagree(0.1, 1.0))
}

func TestDecayModel_Apply(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name    string
		model   DecayModel
		conf    float64
		rate    float64
		elapsed time.Duration
		want    float64
	}{
		{"linear one day", DecayLinear, 0.8, 0.1, day, 0.7},
		{"linear floors at zero", DecayLinear, 0.2, 0.1, 10 * day, 0},
		{"exponential one day", DecayExponential, 0.8, 0.1, day, 0.8 * 0.9048374180359595},
		{"no time elapsed", DecayLinear, 0.8, 0.1, 0, 0.8},
		{"clock went backwards", DecayExponential, 0.8, 0.1, -day, 0.8},
		{"zero rate", DecayLinear, 0.8, 0, 30 * day, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.model.Apply(tt.conf, tt.rate, tt.elapsed), 1e-9)
		})
	}
}

func TestEffectiveConfidence_Monotonic(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &domain.Belief{Confidence: 0.9, DecayRate: 0.05, LastUpdatedAt: base}

	for _, model := range []DecayModel{DecayLinear, DecayExponential} {
		prev := 1.0
		for h := 0; h < 24*60; h += 7 {
			eff := EffectiveConfidence(b, base.Add(time.Duration(h)*time.Hour), model)
			assert.LessOrEqual(t, eff, prev, "model %s at hour %d", model, h)
			assert.GreaterOrEqual(t, eff, 0.0)
			assert.LessOrEqual(t, eff, 1.0)
			prev = eff
		}
	}
}

func TestParseDecayModel(t *testing.T) {
	assert.Equal(t, DecayExponential, ParseDecayModel("exponential"))
	assert.Equal(t, DecayLinear, ParseDecayModel("linear"))
	assert.Equal(t, DecayLinear, ParseDecayModel(""))
}
