package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/capability"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/embedding"
	"github.com/Harshitk-cp/cognicore/internal/llm"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/Harshitk-cp/cognicore/internal/store/memstore"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	ctx      context.Context
	scope    domain.Scope
	stores   *memstore.Stores
	reasoner *llm.MockReasoner
	journal  *telemetry.Journal
	inbox    *capability.Inbox
	deps     Deps
}

var leadsRule = domain.TriggerRule{
	Name:        "pipeline-low",
	Subject:     "pipeline",
	Predicate:   "qualified_leads",
	Comparator:  domain.CompareBelow,
	Value:       10,
	GoalType:    domain.GoalAchievement,
	Description: "Grow the qualified pipeline",
	Category:    "sales",
	TargetValue: 10,
	Threshold:   1,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		scope:    domain.Scope{TenantID: uuid.New(), AgentID: uuid.New()},
		stores:   memstore.New(),
		reasoner: llm.NewMockReasoner(),
		journal:  telemetry.NewJournal(1000),
		inbox:    capability.NewInbox(),
	}
	logger := zap.NewNop()
	noRetry := llm.RetryConfig{MaxRetries: 0}

	episodes := service.NewEpisodicMemory(f.stores.Episodes, embedding.NewMockClient(), logger)
	procedures := service.NewProceduralMemory(f.stores.Procedures, logger)
	working := service.NewWorkingMemory(f.stores.WorkingMemory, service.DefaultWorkingMemoryCapacity, logger)

	beliefs := service.NewBeliefService(f.stores.Beliefs, episodes, f.reasoner, f.journal, logger)
	beliefs.Retry = noRetry
	goals := service.NewGoalService(f.stores.Goals, f.stores.Intentions, beliefs, f.journal, logger)
	goals.Triggers = []domain.TriggerRule{leadsRule}
	intentions := service.NewIntentionEngine(f.stores.Intentions, goals, beliefs, procedures, f.reasoner, f.journal, logger)
	intentions.Retry = noRetry

	f.deps = Deps{
		Beliefs:    beliefs,
		Goals:      goals,
		Intentions: intentions,
		Episodes:   episodes,
		Procedures: procedures,
		Working:    working,
		Recorder:   f.journal,
		Logger:     logger,
	}
	return f
}

func (f *fixture) loop(cfg Config, extra ...domain.Capability) *Loop {
	caps := map[string]domain.Capability{capability.InboxName: f.inbox}
	for _, c := range extra {
		caps[c.Name()] = c
	}
	return New(f.scope, caps, cfg, f.deps)
}

func (f *fixture) pushLeads(n float64) {
	f.inbox.Push(domain.Observation{
		Kind:    domain.SourceObservation,
		Content: "CRM report: qualified leads",
		Propositions: []domain.Proposition{{
			Subject:   "pipeline",
			Predicate: "qualified_leads",
			Object:    domain.Number(n),
			Source:    domain.SourceObservation,
		}},
	})
}

// stubCapability perceives and executes through optional hooks.
type stubCapability struct {
	name     string
	perceive func(ctx context.Context) ([]domain.Observation, error)
	execute  func(ctx context.Context, a domain.Action) (*domain.ActionResult, error)
}

func (s *stubCapability) Name() string { return s.name }

func (s *stubCapability) Perceive(ctx context.Context) ([]domain.Observation, error) {
	if s.perceive == nil {
		return nil, nil
	}
	return s.perceive(ctx)
}

func (s *stubCapability) Execute(ctx context.Context, a domain.Action) (*domain.ActionResult, error) {
	if s.execute == nil {
		return &domain.ActionResult{Success: true}, nil
	}
	return s.execute(ctx, a)
}

// mockCapability records calls through testify's mock.
type mockCapability struct {
	mock.Mock
	name string
}

func (m *mockCapability) Name() string { return m.name }

func (m *mockCapability) Perceive(ctx context.Context) ([]domain.Observation, error) {
	args := m.Called(ctx)
	obs, _ := args.Get(0).([]domain.Observation)
	return obs, args.Error(1)
}

func (m *mockCapability) Execute(ctx context.Context, a domain.Action) (*domain.ActionResult, error) {
	args := m.Called(ctx, a)
	res, _ := args.Get(0).(*domain.ActionResult)
	return res, args.Error(1)
}

// stalledGoalStore never answers List until the caller gives up.
type stalledGoalStore struct {
	domain.GoalStore
}

func (s stalledGoalStore) List(ctx context.Context, _ domain.Scope, _ domain.GoalFilter) ([]domain.Goal, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoop_CycleFormsGoalPlansActsAndLearns(t *testing.T) {
	f := newFixture(t)
	f.pushLeads(4)
	l := f.loop(Config{})

	report, err := l.cycle(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Observations)
	assert.True(t, report.Strategized)
	require.Len(t, report.Results, 1)

	goals, err := f.deps.Goals.List(f.ctx, f.scope, domain.GoalFilter{})
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "pipeline-low", goals[0].TriggerName)
	assert.Equal(t, domain.GoalInProgress, goals[0].Status)

	actions := f.inbox.Actions(0)
	require.Len(t, actions, 1)
	assert.Equal(t, "notify", actions[0].Operation)

	fp := domain.Plan{Steps: f.reasoner.PlanResponse.Steps}.Fingerprint()
	proc, err := f.deps.Procedures.GetByName(f.ctx, f.scope, TrialPrefix+fp)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginTrial, proc.Origin)
	assert.Equal(t, 1, proc.ExecutionCount)
	assert.Contains(t, proc.Conditions, "sales")

	b, err := f.deps.Beliefs.Get(f.ctx, f.scope, TacticSubjectPrefix+TrialPrefix+fp, TacticPredicate)
	require.NoError(t, err)
	assert.Equal(t, domain.String("effective"), b.Object)
	assert.Equal(t, domain.SourceInference, b.Source)

	obs, err := f.deps.Working.List(f.ctx, f.scope, domain.ContextRecentObservation)
	require.NoError(t, err)
	assert.Len(t, obs, 1)
	task, err := f.deps.Working.List(f.ctx, f.scope, domain.ContextCurrentTask)
	require.NoError(t, err)
	assert.Len(t, task, 1)

	st := l.Status()
	assert.Equal(t, 1, st.Cycles)
	assert.False(t, st.HasError)
	assert.Len(t, f.journal.Events(f.scope.AgentID, domain.EventCycleCompleted, 0), 1)
}

func TestLoop_PhaseFailuresAreContained(t *testing.T) {
	f := newFixture(t)
	f.pushLeads(4)
	f.reasoner.PlanResponse = &domain.Plan{Steps: []domain.PlanStep{
		{Capability: "crm", Operation: "update", Description: "Refresh lead scores"},
	}}
	crm := &stubCapability{
		name: "crm",
		perceive: func(context.Context) ([]domain.Observation, error) {
			panic("crm session corrupted")
		},
		execute: func(context.Context, domain.Action) (*domain.ActionResult, error) {
			panic("crm write crashed")
		},
	}
	l := f.loop(Config{}, crm)

	report, err := l.cycle(f.ctx)
	require.Error(t, err)
	var pe *PanicError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"perceive"}, report.FailedPhases)

	// The inbox observation still reached the belief system.
	b, err := f.deps.Beliefs.Get(f.ctx, f.scope, "pipeline", "qualified_leads")
	require.NoError(t, err)
	assert.Equal(t, domain.Number(4), b.Object)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, domain.IntentionFailed, res.Intention.Status)
	assert.Contains(t, res.Intention.FailureReason, "crm write crashed")
	assert.True(t, res.Escalate, "identical replan is rejected so the failure escalates")

	notes, err := f.deps.Working.List(f.ctx, f.scope, domain.ContextScratchpad)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "escalation:"+res.Intention.ID.String(), notes[0].Key)

	fp := domain.Plan{Steps: f.reasoner.PlanResponse.Steps}.Fingerprint()
	tactic, err := f.deps.Beliefs.Get(f.ctx, f.scope, TacticSubjectPrefix+TrialPrefix+fp, TacticPredicate)
	require.NoError(t, err)
	assert.Equal(t, domain.String("ineffective"), tactic.Object)

	st := l.Status()
	assert.Equal(t, 1, st.Cycles)
	assert.True(t, st.HasError)
	assert.Equal(t, 1, st.FailedPhases)
	assert.Contains(t, st.LastError, "perceive")
	assert.NotNil(t, st.LastErrorAt)
	assert.Len(t, f.journal.Events(f.scope.AgentID, domain.EventPhaseFailed, 0), 1)

	// A later clean cycle clears the error flag but keeps the history.
	crm.perceive = nil
	require.NoError(t, l.RunCycle(f.ctx))
	st = l.Status()
	assert.Equal(t, 2, st.Cycles)
	assert.False(t, st.HasError)
	assert.Equal(t, 1, st.FailedPhases)
}

func TestLoop_SlowPerceptionTimesOut(t *testing.T) {
	f := newFixture(t)
	f.pushLeads(4)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stuck := &stubCapability{
		name: "calendar",
		perceive: func(context.Context) ([]domain.Observation, error) {
			<-release
			return nil, nil
		},
	}
	l := f.loop(Config{PerceiveTimeout: 20 * time.Millisecond}, stuck)

	start := time.Now()
	report, err := l.cycle(f.ctx)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, report.Observations)
}

func TestLoop_StrategicTrigger(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cycles  int
		last    time.Time
		changes []domain.BeliefChange
		want    bool
	}{
		{name: "first cycle", cycles: 0, last: base, want: true},
		{name: "quiet", cycles: 3, last: base},
		{
			name: "important belief moved", cycles: 3, last: base,
			changes: []domain.BeliefChange{{Subject: "acme", Predicate: "churn_risk", Importance: 0.8, OldConfidence: 0.2, NewConfidence: 0.7}},
			want:    true,
		},
		{
			name: "important belief barely moved", cycles: 3, last: base,
			changes: []domain.BeliefChange{{Subject: "acme", Predicate: "churn_risk", Importance: 0.8, OldConfidence: 0.6, NewConfidence: 0.75}},
		},
		{
			name: "unimportant belief moved", cycles: 3, last: base,
			changes: []domain.BeliefChange{{Subject: "acme", Predicate: "churn_risk", Importance: 0.3, OldConfidence: 0, NewConfidence: 0.7}},
		},
		{
			name: "deadline predicate", cycles: 3, last: base,
			changes: []domain.BeliefChange{{Subject: "q2-launch", Predicate: "deadline", Importance: 0.1, NewConfidence: 0.7, OldConfidence: 0.65}},
			want:    true,
		},
		{
			name: "achievability predicate", cycles: 3, last: base,
			changes: []domain.BeliefChange{{Subject: "q2-launch", Predicate: "Achievable", NewConfidence: 0.7, OldConfidence: 0.7}},
			want:    true,
		},
		{name: "schedule due", cycles: 3, last: base.Add(-7 * time.Hour), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			l := f.loop(Config{Schedule: "0 */6 * * *"})
			l.status.Cycles = tt.cycles
			l.lastStrategic = tt.last
			got := l.strategicTrigger(f.ctx, tt.changes, base.Add(time.Minute))
			assert.Equal(t, tt.want, got != "", "trigger %q", got)
		})
	}
}

func TestLoop_StrategicTriggerOnGoalTarget(t *testing.T) {
	f := newFixture(t)
	l := f.loop(Config{})
	l.status.Cycles = 1
	l.lastStrategic = time.Now()

	_, err := f.deps.Goals.Assign(f.ctx, f.scope, service.GoalInput{
		Description: "Close the Acme renewal",
		Target:      domain.GoalTarget{Subject: "acme", Predicate: "renewal_stage", TargetValue: 5},
	})
	require.NoError(t, err)

	change := domain.BeliefChange{Subject: "acme", Predicate: "renewal_stage", Importance: 0.2, OldConfidence: 0.7, NewConfidence: 0.74}
	assert.Contains(t, l.strategicTrigger(f.ctx, []domain.BeliefChange{change}, time.Now()), "acme.renewal_stage")

	change.Subject = "globex"
	assert.Empty(t, l.strategicTrigger(f.ctx, []domain.BeliefChange{change}, time.Now()))
}

func TestLoop_StartPauseResumeStop(t *testing.T) {
	f := newFixture(t)
	l := f.loop(Config{Interval: time.Hour})

	require.NoError(t, l.Start(f.ctx))
	assert.ErrorIs(t, l.Start(f.ctx), ErrAlreadyRunning)
	assert.Eventually(t, func() bool { return l.Status().Cycles == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, l.Status().Running)

	require.NoError(t, l.Pause(f.ctx))
	st := l.Status()
	assert.Equal(t, StatePaused, st.State)
	assert.True(t, st.Paused)

	require.NoError(t, l.Resume(f.ctx))
	assert.Eventually(t, func() bool { return l.Status().Cycles == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, l.Stop(f.ctx))
	<-l.Done()
	assert.Equal(t, StateStopped, l.Status().State)
	assert.ErrorIs(t, l.Pause(f.ctx), ErrNotRunning)

	transitions := f.journal.Events(f.scope.AgentID, domain.EventLoopState, 0)
	assert.GreaterOrEqual(t, len(transitions), 4)
}

func TestLoop_StopForcesStuckCycle(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var once sync.Once
	entered := make(chan struct{})
	stuck := &stubCapability{
		name: "calendar",
		perceive: func(context.Context) ([]domain.Observation, error) {
			once.Do(func() { close(entered) })
			<-release
			return nil, nil
		},
	}
	l := f.loop(Config{Interval: time.Hour, PerceiveTimeout: time.Hour, StopTimeout: 20 * time.Millisecond}, stuck)
	require.NoError(t, l.Start(f.ctx))
	<-entered

	done := make(chan error, 1)
	go func() { done <- l.Stop(f.ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not force the stuck cycle")
	}
	assert.Equal(t, StateStopped, l.Status().State)
}

func TestLoop_StopBeforeStart(t *testing.T) {
	f := newFixture(t)
	l := f.loop(Config{})
	assert.ErrorIs(t, l.Stop(f.ctx), ErrNotRunning)
}

func TestLoop_StalledStoreFailsPhaseNotCycle(t *testing.T) {
	f := newFixture(t)
	goals := service.NewGoalService(stalledGoalStore{f.stores.Goals}, f.stores.Intentions, f.deps.Beliefs, f.journal, zap.NewNop())
	goals.Triggers = []domain.TriggerRule{leadsRule}
	f.deps.Goals = goals

	crm := &mockCapability{name: "crm"}
	crm.On("Perceive", mock.Anything).Return([]domain.Observation(nil), nil).Once()
	crm.On("Execute", mock.Anything, mock.Anything).Return(&domain.ActionResult{Success: true}, nil).Maybe()
	l := f.loop(Config{PhaseTimeout: 50 * time.Millisecond}, crm)

	done := make(chan struct{})
	var (
		report *CycleReport
		err    error
	)
	go func() {
		defer close(done)
		report, err = l.cycle(f.ctx)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle hung on a stalled goal store")
	}

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, report.FailedPhases, "goals")
	assert.NotContains(t, report.FailedPhases, "learn")

	st := l.Status()
	assert.Equal(t, 1, st.Cycles)
	assert.True(t, st.HasError)
	crm.AssertExpectations(t)
}
