package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignGoal(t *testing.T, h *harness, desc string) *domain.Goal {
	t.Helper()
	g, err := h.goals.Assign(h.ctx, h.scope, GoalInput{Description: desc, Category: "revenue"})
	require.NoError(t, err)
	return g
}

func addProcedure(t *testing.T, h *harness, p *domain.Procedure) *domain.Procedure {
	t.Helper()
	out, err := h.procedures.Upsert(h.ctx, h.scope, p)
	require.NoError(t, err)
	return out
}

func TestProcedureScore(t *testing.T) {
	p := &domain.Procedure{
		SuccessRate: 0.8,
		Conditions:  []string{"revenue", "enterprise"},
		Steps:       []domain.PlanStep{step("crm", "log"), step("inbox", "send")},
	}
	// 0.5*0.8 + 0.3*0.5 + 0.2*0.5
	assert.InDelta(t, 0.65, ProcedureScore(p, []string{"revenue"}, []string{"crm"}), 1e-9)
}

func TestIntentionEngine_PlanPrefersProcedure(t *testing.T) {
	h := newHarness(t)
	g := assignGoal(t, h, "follow up with acme")
	proc := addProcedure(t, h, &domain.Procedure{
		Name:        "crm-follow-up",
		SuccessRate: 0.9,
		Steps:       []domain.PlanStep{step("crm", "send_follow_up")},
	})

	in, err := h.intentions.PlanFor(h.ctx, h.scope, g, PlanOptions{Available: []string{"crm"}})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFromProcedure, in.Plan.Source)
	assert.Equal(t, domain.IntentionAction, in.Type)
	assert.Equal(t, "crm-follow-up", in.ProcedureName)
	require.NotNil(t, in.ProcedureID)
	assert.Equal(t, proc.ID, *in.ProcedureID)
	assert.Equal(t, g.Priority, in.Priority)
	assert.Empty(t, h.reasoner.PlanCalls)
}

func TestIntentionEngine_PlanFallsBackToReasoner(t *testing.T) {
	h := newHarness(t)
	g := assignGoal(t, h, "follow up with acme")
	addProcedure(t, h, &domain.Procedure{
		Name:        "enterprise-escalation",
		SuccessRate: 0.05,
		Conditions:  []string{"enterprise"},
		Steps:       []domain.PlanStep{step("crm", "escalate")},
	})
	h.reasoner.PlanResponse = &domain.Plan{
		Strategic: true,
		Steps:     []domain.PlanStep{step("crm", "research"), step("inbox", "draft"), step("inbox", "send")},
	}

	in, err := h.intentions.PlanFor(h.ctx, h.scope, g, PlanOptions{Available: []string{"inbox"}})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFromReasoner, in.Plan.Source)
	assert.Equal(t, domain.IntentionStrategy, in.Type)
	assert.Empty(t, in.ProcedureName)
	require.Len(t, h.reasoner.PlanCalls, 1)
	assert.Equal(t, []string{"inbox"}, h.reasoner.PlanCalls[0].Capabilities)
}

func TestIntentionEngine_DecomposesAndRunsInOrder(t *testing.T) {
	h := newHarness(t)
	g := assignGoal(t, h, "run the renewal play")
	addProcedure(t, h, &domain.Procedure{
		Name:        "renewal-play",
		Type:        domain.ProcedureWorkflow,
		SuccessRate: 0.9,
		Steps:       []domain.PlanStep{step("crm", "pull_usage"), step("inbox", "draft"), step("inbox", "send")},
	})
	parent, err := h.intentions.PlanFor(h.ctx, h.scope, g, PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentionTactic, parent.Type)

	exec := newFakeExecutor()

	res, err := h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, parent.ID, res.Root.ID)
	assert.False(t, res.RootFinished)
	assert.True(t, res.Root.Coordination)
	assert.Equal(t, domain.IntentionInProgress, res.Root.Status)

	kids, err := h.intentions.List(h.ctx, h.scope, domain.IntentionFilter{ParentID: &parent.ID})
	require.NoError(t, err)
	require.Len(t, kids, 3)

	goal, err := h.goals.Get(h.ctx, h.scope, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GoalInProgress, goal.Status)

	for i := 0; i < 2; i++ {
		res, err = h.intentions.ExecuteNext(h.ctx, h.scope, exec)
		require.NoError(t, err)
		require.NotNil(t, res)
	}
	assert.True(t, res.RootFinished)
	assert.Equal(t, []string{"pull_usage", "draft", "send"}, exec.operations())

	done, err := h.intentions.Get(h.ctx, h.scope, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentionCompleted, done.Status)

	res, err = h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestIntentionEngine_DependencySafety(t *testing.T) {
	h := newHarness(t)
	exec := newFakeExecutor()

	a, err := h.intentions.Adopt(h.ctx, h.scope, "announce", domain.Plan{Steps: []domain.PlanStep{step("inbox", "announce")}}, 9)
	require.NoError(t, err)
	b, err := h.intentions.Adopt(h.ctx, h.scope, "prepare", domain.Plan{Steps: []domain.PlanStep{step("crm", "prepare")}}, 3)
	require.NoError(t, err)
	a.Dependencies = []uuid.UUID{b.ID}
	require.NoError(t, h.stores.Intentions.Update(h.ctx, a))

	ok, err := h.intentions.DependenciesSatisfied(h.ctx, h.scope, a)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.Intention.ID, "the higher-priority intention waits for its dependency")

	res, err = h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Intention.ID)
}

func TestIntentionEngine_DependencyCycleIsSkipped(t *testing.T) {
	h := newHarness(t)

	c, err := h.intentions.Adopt(h.ctx, h.scope, "c", domain.Plan{Steps: []domain.PlanStep{step("inbox", "c")}}, 5)
	require.NoError(t, err)
	d, err := h.intentions.Adopt(h.ctx, h.scope, "d", domain.Plan{Steps: []domain.PlanStep{step("inbox", "d")}}, 5)
	require.NoError(t, err)
	c.Dependencies = []uuid.UUID{d.ID}
	d.Dependencies = []uuid.UUID{c.ID}
	require.NoError(t, h.stores.Intentions.Update(h.ctx, c))
	require.NoError(t, h.stores.Intentions.Update(h.ctx, d))

	_, err = h.intentions.DependenciesSatisfied(h.ctx, h.scope, c)
	assert.ErrorIs(t, err, ErrDependencyCycle)

	res, err := h.intentions.ExecuteNext(h.ctx, h.scope, newFakeExecutor())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestIntentionEngine_FailureReplansFreshPlan(t *testing.T) {
	h := newHarness(t)
	g := assignGoal(t, h, "book a demo with acme")
	addProcedure(t, h, &domain.Procedure{
		Name:        "cold-sequence",
		SuccessRate: 0.9,
		Steps:       []domain.PlanStep{step("crm", "send_sequence")},
	})
	first, err := h.intentions.PlanFor(h.ctx, h.scope, g, PlanOptions{})
	require.NoError(t, err)

	exec := newFakeExecutor()
	exec.fail["send_sequence"] = true

	res, err := h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Result.Success)
	assert.False(t, res.Escalate)
	require.NotNil(t, res.Replanned)
	assert.Equal(t, domain.PlanFromReasoner, res.Replanned.Plan.Source, "the failed procedure is not reused")
	assert.NotEqual(t, first.Fingerprint, res.Replanned.Fingerprint)
	assert.Equal(t, 1, res.Replanned.Attempt)
	require.NotNil(t, res.Replanned.ReplannedFrom)
	assert.Equal(t, first.ID, *res.Replanned.ReplannedFrom)

	failed, err := h.intentions.Get(h.ctx, h.scope, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentionFailed, failed.Status, "failed intentions are kept")
	assert.Equal(t, "send_sequence failed", failed.FailureReason)

	// The reasoner keeps offering the same plan, which has now failed too.
	exec.fail["notify"] = true
	res, err = h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	assert.True(t, res.Escalate)
	assert.Nil(t, res.Replanned)

	last := h.reasoner.PlanCalls[len(h.reasoner.PlanCalls)-1]
	assert.Contains(t, last.Excluded, first.Fingerprint)
	assert.Equal(t, "notify failed", last.PriorFailure)
}

func TestIntentionEngine_OpportunisticFailureEscalates(t *testing.T) {
	h := newHarness(t)
	_, err := h.intentions.Adopt(h.ctx, h.scope, "ping", domain.Plan{Steps: []domain.PlanStep{step("inbox", "ping")}}, 0)
	require.NoError(t, err)

	exec := newFakeExecutor()
	exec.fail["ping"] = true
	res, err := h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	assert.True(t, res.Escalate)
	assert.Equal(t, DefaultIntentionPriority, res.Intention.Priority)
}

func TestIntentionEngine_ReplansAreBounded(t *testing.T) {
	h := newHarness(t)
	g := assignGoal(t, h, "book a demo with acme")
	in, err := h.intentions.PlanFor(h.ctx, h.scope, g, PlanOptions{})
	require.NoError(t, err)
	in.Attempt = MaxReplans
	require.NoError(t, h.stores.Intentions.Update(h.ctx, in))
	calls := len(h.reasoner.PlanCalls)

	exec := newFakeExecutor()
	exec.fail["notify"] = true
	res, err := h.intentions.ExecuteNext(h.ctx, h.scope, exec)
	require.NoError(t, err)
	assert.True(t, res.Escalate)
	assert.Len(t, h.reasoner.PlanCalls, calls, "no further planning once replans are exhausted")
}

func TestIntentionEngine_MonitorOverrun(t *testing.T) {
	h := newHarness(t)
	g := assignGoal(t, h, "enrich acme account")
	addProcedure(t, h, &domain.Procedure{
		Name:        "enrich",
		SuccessRate: 0.9,
		Steps: []domain.PlanStep{{
			Capability: "crm", Operation: "enrich", EstimatedDuration: time.Minute,
		}},
	})
	in, err := h.intentions.PlanFor(h.ctx, h.scope, g, PlanOptions{})
	require.NoError(t, err)
	started := h.now
	in.Status = domain.IntentionInProgress
	in.StartedAt = &started
	require.NoError(t, h.stores.Intentions.Update(h.ctx, in))

	h.advance(90 * time.Second)
	results, err := h.intentions.Monitor(h.ctx, h.scope, h.now, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "within twice the estimate")

	h.advance(time.Minute)
	results, err = h.intentions.Monitor(h.ctx, h.scope, h.now, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, in.ID, results[0].Intention.ID)
	assert.Contains(t, results[0].Intention.FailureReason, "overran")
	require.NotNil(t, results[0].Replanned)
}

func TestIntentionEngine_MonitorPrecondition(t *testing.T) {
	h := newHarness(t)
	h.setBelief(t, "acme", "stage", domain.String("proposal"))
	g := assignGoal(t, h, "send acme the proposal")
	addProcedure(t, h, &domain.Procedure{
		Name:          "send-proposal",
		SuccessRate:   0.9,
		Steps:         []domain.PlanStep{step("inbox", "send_proposal")},
		Preconditions: []domain.Precondition{{Subject: "acme", Predicate: "stage", Object: domain.String("proposal")}},
	})
	in, err := h.intentions.PlanFor(h.ctx, h.scope, g, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, in.Preconditions, 1)
	started := h.now
	in.Status = domain.IntentionInProgress
	in.StartedAt = &started
	require.NoError(t, h.stores.Intentions.Update(h.ctx, in))

	results, err := h.intentions.Monitor(h.ctx, h.scope, h.now, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	h.setBelief(t, "acme", "stage", domain.String("closed_lost"))
	results, err = h.intentions.Monitor(h.ctx, h.scope, h.now, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Intention.FailureReason, "precondition acme.stage")

	got, err := h.intentions.Get(h.ctx, h.scope, in.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentionFailed, got.Status)
}

func TestIntentionEngine_AdoptRejectsEmptyPlan(t *testing.T) {
	h := newHarness(t)
	_, err := h.intentions.Adopt(h.ctx, h.scope, "nothing", domain.Plan{}, 5)
	assert.ErrorIs(t, err, ErrEmptyPlan)

	_, err = h.intentions.Get(h.ctx, h.scope, uuid.New())
	assert.ErrorIs(t, err, ErrIntentionNotFound)
}
