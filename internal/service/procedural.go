package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"go.uber.org/zap"
)

const (
	// ProcedureLearningRate is the EMA weight of the newest outcome.
	ProcedureLearningRate       = 0.1
	DefaultProcedureSuccessRate = 0.5
)

var (
	ErrProcedureNotFound    = errors.New("procedure not found")
	ErrProcedureNameEmpty   = errors.New("procedure name is required")
	ErrProcedureNoSteps     = errors.New("procedure needs at least one step")
	ErrInvalidProcedureType = errors.New("invalid procedure type")
)

// UpdateSuccessRate applies one outcome to an exponential moving average.
func UpdateSuccessRate(rate float64, success bool) float64 {
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	return clamp01((1-ProcedureLearningRate)*rate + ProcedureLearningRate*outcome)
}

// ContextMatch is the fraction of a procedure's applicability conditions
// present in the given context. A procedure without conditions applies
// everywhere.
func ContextMatch(p *domain.Procedure, tags []string) float64 {
	if len(p.Conditions) == 0 {
		return 1.0
	}
	have := make(map[string]bool, len(tags))
	for _, c := range tags {
		have[c] = true
	}
	matched := 0
	for _, c := range p.Conditions {
		if have[c] {
			matched++
		}
	}
	return float64(matched) / float64(len(p.Conditions))
}

// ResourceAvailability is the fraction of the capabilities a procedure needs
// that are available. A nil available list means availability is unknown and
// every capability is assumed present.
func ResourceAvailability(p *domain.Procedure, available []string) float64 {
	required := p.RequiredCapabilities()
	if len(required) == 0 || available == nil {
		return 1.0
	}
	have := make(map[string]bool, len(available))
	for _, a := range available {
		have[a] = true
	}
	n := 0
	for _, r := range required {
		if have[r] {
			n++
		}
	}
	return float64(n) / float64(len(required))
}

// ProceduralMemory stores learned ways of doing things.
type ProceduralMemory struct {
	store  domain.ProcedureStore
	logger *zap.Logger

	Now func() time.Time
}

func NewProceduralMemory(ps domain.ProcedureStore, logger *zap.Logger) *ProceduralMemory {
	return &ProceduralMemory{store: ps, logger: logger, Now: time.Now}
}

// Upsert creates a procedure or replaces the definition of the one with the
// same name. Learned statistics of an existing procedure are kept.
func (s *ProceduralMemory) Upsert(ctx context.Context, scope domain.Scope, p *domain.Procedure) (*domain.Procedure, error) {
	if p.Name == "" {
		return nil, ErrProcedureNameEmpty
	}
	if len(p.Steps) == 0 {
		return nil, ErrProcedureNoSteps
	}
	if p.Type == "" {
		p.Type = domain.ProcedureSkill
	}
	switch p.Type {
	case domain.ProcedureSkill, domain.ProcedureWorkflow, domain.ProcedureHeuristic:
	default:
		return nil, ErrInvalidProcedureType
	}
	if p.Origin == "" {
		p.Origin = domain.OriginPrebuilt
	}

	existing, err := s.store.GetByName(ctx, scope, p.Name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		p.TenantID, p.AgentID = scope.TenantID, scope.AgentID
		if p.SuccessRate <= 0 {
			p.SuccessRate = DefaultProcedureSuccessRate
		}
		p.SuccessRate = clamp01(p.SuccessRate)
		if err := s.store.Create(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	existing.Description = p.Description
	existing.Type = p.Type
	existing.Steps = p.Steps
	existing.Conditions = p.Conditions
	existing.GoalTypes = p.GoalTypes
	existing.Preconditions = p.Preconditions
	if err := s.store.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *ProceduralMemory) GetByName(ctx context.Context, scope domain.Scope, name string) (*domain.Procedure, error) {
	p, err := s.store.GetByName(ctx, scope, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}
	return p, nil
}

// Retrieve filters procedures by type, goal type, context and minimum
// success rate, best first.
func (s *ProceduralMemory) Retrieve(ctx context.Context, scope domain.Scope, q domain.ProcedureQuery) ([]domain.Procedure, error) {
	all, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Procedure, 0, len(all))
	for i := range all {
		p := &all[i]
		if q.Type != "" && p.Type != q.Type {
			continue
		}
		if q.GoalType != "" && len(p.GoalTypes) > 0 && !containsGoalType(p.GoalTypes, q.GoalType) {
			continue
		}
		if p.SuccessRate < q.MinSuccessRate {
			continue
		}
		if len(q.Context) > 0 && ContextMatch(p, q.Context) == 0 {
			continue
		}
		out = append(out, *p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SuccessRate > out[j].SuccessRate })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// RecordOutcome folds one execution outcome into the success rate.
func (s *ProceduralMemory) RecordOutcome(ctx context.Context, scope domain.Scope, name string, success bool) (*domain.Procedure, error) {
	p, err := s.GetByName(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	p.SuccessRate = UpdateSuccessRate(p.SuccessRate, success)
	p.ExecutionCount++
	p.LastExecutedAt = &now
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Debug("procedure outcome recorded",
		zap.String("agent_id", scope.AgentID.String()),
		zap.String("procedure", name),
		zap.Bool("success", success),
		zap.Float64("success_rate", p.SuccessRate))
	return p, nil
}

func (s *ProceduralMemory) List(ctx context.Context, scope domain.Scope) ([]domain.Procedure, error) {
	return s.store.List(ctx, scope)
}

func containsGoalType(list []domain.GoalType, t domain.GoalType) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}
