package llm

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/cognicore/internal/domain"
)

// MockReasoner is a configurable reasoner for testing.
// Set the response fields to control what each method returns.
type MockReasoner struct {
	mu sync.Mutex

	PlanResponse        *domain.Plan
	PlanError           error
	PropositionResponse []domain.Proposition
	PropositionError    error

	// Call tracking for assertions
	PlanCalls       []domain.PlanRequest
	ExtractionCalls []domain.ExtractionRequest
}

func NewMockReasoner() *MockReasoner {
	return &MockReasoner{
		PlanResponse: &domain.Plan{
			Source:    domain.PlanFromReasoner,
			Rationale: "Mock plan",
			Steps: []domain.PlanStep{
				{Capability: "inbox", Operation: "notify", Description: "Report status to the owner"},
			},
		},
		PropositionResponse: []domain.Proposition{},
	}
}

func (m *MockReasoner) SynthesizePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanCalls = append(m.PlanCalls, req)
	if m.PlanError != nil {
		return nil, m.PlanError
	}
	if m.PlanResponse == nil {
		return nil, nil
	}
	plan := *m.PlanResponse
	plan.Steps = append([]domain.PlanStep(nil), m.PlanResponse.Steps...)
	return &plan, nil
}

func (m *MockReasoner) ExtractPropositions(ctx context.Context, req domain.ExtractionRequest) ([]domain.Proposition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExtractionCalls = append(m.ExtractionCalls, req)
	if m.PropositionError != nil {
		return nil, m.PropositionError
	}
	return append([]domain.Proposition(nil), m.PropositionResponse...), nil
}

// Calls returns the number of plan and extraction calls made so far.
func (m *MockReasoner) Calls() (plans, extractions int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PlanCalls), len(m.ExtractionCalls)
}
