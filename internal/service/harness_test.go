package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/embedding"
	"github.com/Harshitk-cp/cognicore/internal/llm"
	"github.com/Harshitk-cp/cognicore/internal/store/memstore"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// harness wires every cognitive service over in-memory stores with a frozen
// clock that tests advance explicitly.
type harness struct {
	ctx      context.Context
	scope    domain.Scope
	stores   *memstore.Stores
	reasoner *llm.MockReasoner
	journal  *telemetry.Journal
	now      time.Time

	episodes   *EpisodicMemory
	facts      *SemanticMemory
	procedures *ProceduralMemory
	working    *WorkingMemory
	beliefs    *BeliefService
	goals      *GoalService
	intentions *IntentionEngine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:      context.Background(),
		scope:    domain.Scope{TenantID: uuid.New(), AgentID: uuid.New()},
		stores:   memstore.New(),
		reasoner: llm.NewMockReasoner(),
		journal:  telemetry.NewJournal(1000),
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	logger := zap.NewNop()
	noRetry := llm.RetryConfig{MaxRetries: 0}

	h.episodes = NewEpisodicMemory(h.stores.Episodes, embedding.NewMockClient(), logger)
	h.episodes.Now = clock
	h.facts = NewSemanticMemory(h.stores.Facts, embedding.NewMockClient(), logger)
	h.facts.Now = clock
	h.procedures = NewProceduralMemory(h.stores.Procedures, logger)
	h.procedures.Now = clock
	h.working = NewWorkingMemory(h.stores.WorkingMemory, DefaultWorkingMemoryCapacity, logger)
	h.working.Now = clock

	h.beliefs = NewBeliefService(h.stores.Beliefs, h.episodes, h.reasoner, h.journal, logger)
	h.beliefs.Now = clock
	h.beliefs.Retry = noRetry

	h.goals = NewGoalService(h.stores.Goals, h.stores.Intentions, h.beliefs, h.journal, logger)
	h.goals.Now = clock

	h.intentions = NewIntentionEngine(h.stores.Intentions, h.goals, h.beliefs, h.procedures, h.reasoner, h.journal, logger)
	h.intentions.Now = clock
	h.intentions.Retry = noRetry
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) events(kind domain.EventKind) []domain.Event {
	return h.journal.Events(h.scope.AgentID, kind, 0)
}

// setBelief overwrites the object of the live belief for a key, bypassing
// revision, so tests can move the world directly.
func (h *harness) setBelief(t *testing.T, subject, predicate string, v domain.Value) {
	t.Helper()
	live, err := h.stores.Beliefs.GetLive(h.ctx, h.scope, subject, predicate)
	if err != nil {
		t.Fatalf("get live belief: %v", err)
	}
	if len(live) == 0 {
		_, err := h.beliefs.Apply(h.ctx, h.scope, []domain.Proposition{{
			Subject: subject, Predicate: predicate, Object: v, Source: domain.SourceObservation,
		}}, nil)
		if err != nil {
			t.Fatalf("form belief: %v", err)
		}
		return
	}
	b := live[0]
	b.Object = v
	b.LastUpdatedAt = h.now
	if err := h.stores.Beliefs.Update(h.ctx, &b); err != nil {
		t.Fatalf("update belief: %v", err)
	}
}

// fakeExecutor succeeds unless the operation is listed in fail.
type fakeExecutor struct {
	mu    sync.Mutex
	caps  []string
	fail  map[string]bool
	calls []domain.Action
}

func newFakeExecutor(caps ...string) *fakeExecutor {
	if len(caps) == 0 {
		caps = []string{"inbox", "crm"}
	}
	return &fakeExecutor{caps: caps, fail: map[string]bool{}}
}

func (f *fakeExecutor) Capabilities() []string { return f.caps }

func (f *fakeExecutor) Execute(ctx context.Context, a domain.Action) (*domain.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, a)
	if f.fail[a.Operation] {
		return &domain.ActionResult{Success: false, Error: a.Operation + " failed"}, nil
	}
	return &domain.ActionResult{Success: true, Output: map[string]domain.Value{"done": domain.Bool(true)}}, nil
}

func (f *fakeExecutor) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Operation
	}
	return out
}

func step(capability, operation string) domain.PlanStep {
	return domain.PlanStep{Capability: capability, Operation: operation}
}
