package service

import (
	"testing"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSuccessRate(t *testing.T) {
	assert.InDelta(t, 0.55, UpdateSuccessRate(0.5, true), 1e-9)
	assert.InDelta(t, 0.45, UpdateSuccessRate(0.5, false), 1e-9)
	assert.InDelta(t, 1.0, UpdateSuccessRate(1.0, true), 1e-9)
	assert.InDelta(t, 0.0, UpdateSuccessRate(0.0, false), 1e-9)
}

func TestContextMatchAndResources(t *testing.T) {
	p := &domain.Procedure{
		Conditions: []string{"enterprise", "renewal"},
		Steps:      []domain.PlanStep{step("crm", "a"), step("crm", "b"), step("inbox", "c")},
	}
	assert.InDelta(t, 0.5, ContextMatch(p, []string{"renewal", "emea"}), 1e-9)
	assert.InDelta(t, 1.0, ContextMatch(&domain.Procedure{}, nil), 1e-9)

	assert.Equal(t, []string{"crm", "inbox"}, p.RequiredCapabilities())
	assert.InDelta(t, 0.5, ResourceAvailability(p, []string{"inbox"}), 1e-9)
	assert.InDelta(t, 1.0, ResourceAvailability(p, nil), 1e-9)
	assert.InDelta(t, 0.0, ResourceAvailability(p, []string{}), 1e-9)
}

func TestProceduralMemory_UpsertKeepsStats(t *testing.T) {
	h := newHarness(t)

	p, err := h.procedures.Upsert(h.ctx, h.scope, &domain.Procedure{
		Name:  "qualify-lead",
		Steps: []domain.PlanStep{step("crm", "score_lead")},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultProcedureSuccessRate, p.SuccessRate)
	assert.Equal(t, domain.ProcedureSkill, p.Type)
	assert.Equal(t, domain.OriginPrebuilt, p.Origin)

	_, err = h.procedures.RecordOutcome(h.ctx, h.scope, "qualify-lead", true)
	require.NoError(t, err)
	p, err = h.procedures.RecordOutcome(h.ctx, h.scope, "qualify-lead", true)
	require.NoError(t, err)
	assert.Equal(t, 2, p.ExecutionCount)
	assert.InDelta(t, 0.595, p.SuccessRate, 1e-9)
	require.NotNil(t, p.LastExecutedAt)

	redefined, err := h.procedures.Upsert(h.ctx, h.scope, &domain.Procedure{
		Name:  "qualify-lead",
		Steps: []domain.PlanStep{step("crm", "score_lead"), step("inbox", "notify_owner")},
	})
	require.NoError(t, err)
	assert.Len(t, redefined.Steps, 2)
	assert.Equal(t, 2, redefined.ExecutionCount, "redefinition keeps learned statistics")
	assert.InDelta(t, 0.595, redefined.SuccessRate, 1e-9)
}

func TestProceduralMemory_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.procedures.Upsert(h.ctx, h.scope, &domain.Procedure{Steps: []domain.PlanStep{step("crm", "x")}})
	assert.ErrorIs(t, err, ErrProcedureNameEmpty)

	_, err = h.procedures.Upsert(h.ctx, h.scope, &domain.Procedure{Name: "empty"})
	assert.ErrorIs(t, err, ErrProcedureNoSteps)

	_, err = h.procedures.Upsert(h.ctx, h.scope, &domain.Procedure{Name: "odd", Type: "ritual", Steps: []domain.PlanStep{step("crm", "x")}})
	assert.ErrorIs(t, err, ErrInvalidProcedureType)

	_, err = h.procedures.RecordOutcome(h.ctx, h.scope, "missing", true)
	assert.ErrorIs(t, err, ErrProcedureNotFound)
}

func TestProceduralMemory_Retrieve(t *testing.T) {
	h := newHarness(t)
	add := func(name string, rate float64, goals []domain.GoalType, conds []string) {
		_, err := h.procedures.Upsert(h.ctx, h.scope, &domain.Procedure{
			Name: name, SuccessRate: rate, GoalTypes: goals, Conditions: conds,
			Steps: []domain.PlanStep{step("crm", name)},
		})
		require.NoError(t, err)
	}
	add("generic", 0.6, nil, nil)
	add("achieve", 0.9, []domain.GoalType{domain.GoalAchievement}, nil)
	add("maintain", 0.8, []domain.GoalType{domain.GoalMaintenance}, nil)
	add("enterprise-only", 0.7, nil, []string{"enterprise"})

	got, err := h.procedures.Retrieve(h.ctx, h.scope, domain.ProcedureQuery{GoalType: domain.GoalAchievement})
	require.NoError(t, err)
	var names []string
	for _, p := range got {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"achieve", "enterprise-only", "generic"}, names)

	got, err = h.procedures.Retrieve(h.ctx, h.scope, domain.ProcedureQuery{Context: []string{"smb"}, MinSuccessRate: 0.65})
	require.NoError(t, err)
	names = names[:0]
	for _, p := range got {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"achieve", "maintain"}, names)
}
