package loop

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"go.uber.org/zap"
)

const DefaultMaxGoalsPerRun = 5

// StrategyResult reports what one strategic pass changed.
type StrategyResult struct {
	Formed  []domain.Goal      `json:"formed,omitempty"`
	Planned []domain.Intention `json:"planned,omitempty"`
	Skipped []string           `json:"skipped,omitempty"`
}

// Strategist forms goals from trigger rules and commits to a plan for every
// open goal that has none.
type Strategist struct {
	goals      *service.GoalService
	intentions *service.IntentionEngine
	logger     *zap.Logger

	MaxGoalsPerRun int
}

func NewStrategist(goals *service.GoalService, intentions *service.IntentionEngine, logger *zap.Logger) *Strategist {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategist{
		goals:          goals,
		intentions:     intentions,
		logger:         logger,
		MaxGoalsPerRun: DefaultMaxGoalsPerRun,
	}
}

func (s *Strategist) Run(ctx context.Context, scope domain.Scope, available []string) (*StrategyResult, error) {
	out := &StrategyResult{}
	var errs []error

	for i := 0; i < s.MaxGoalsPerRun; i++ {
		g, err := s.goals.Form(ctx, scope)
		if err != nil {
			errs = append(errs, fmt.Errorf("form goal: %w", err))
			break
		}
		if g == nil {
			break
		}
		out.Formed = append(out.Formed, *g)
	}

	open, err := s.goals.List(ctx, scope, domain.GoalFilter{
		Statuses: []domain.GoalStatus{domain.GoalActive, domain.GoalInProgress},
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("list open goals: %w", err))
		return out, errors.Join(errs...)
	}

	for i := range open {
		g := &open[i]
		in, skip, err := s.planFor(ctx, scope, g, available)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("plan for goal %s: %w", g.ID, err))
		case skip != "":
			out.Skipped = append(out.Skipped, g.ID.String()+": "+skip)
		case in != nil:
			out.Planned = append(out.Planned, *in)
		}
	}
	return out, errors.Join(errs...)
}

// planFor commits to a plan for g unless it already has a live intention or
// has exhausted its replans. A goal nothing can plan for is skipped.
func (s *Strategist) planFor(ctx context.Context, scope domain.Scope, g *domain.Goal, available []string) (*domain.Intention, string, error) {
	history, err := s.intentions.List(ctx, scope, domain.IntentionFilter{GoalID: &g.ID})
	if err != nil {
		return nil, "", err
	}

	opts := service.PlanOptions{Available: available}
	failedRoots := 0
	for _, h := range history {
		if h.ParentID != nil {
			continue
		}
		switch h.Status {
		case domain.IntentionPlanned, domain.IntentionInProgress, domain.IntentionPaused:
			return nil, "", nil
		case domain.IntentionFailed:
			failedRoots++
			opts.ExcludeFingerprints = append(opts.ExcludeFingerprints, h.Fingerprint)
			if h.ProcedureName != "" {
				opts.ExcludeProcedures = append(opts.ExcludeProcedures, h.ProcedureName)
			}
		}
	}
	if failedRoots > service.MaxReplans {
		return nil, "replans exhausted", nil
	}
	opts.Attempt = failedRoots

	in, err := s.intentions.PlanFor(ctx, scope, g, opts)
	if errors.Is(err, service.ErrNoPlan) {
		s.logger.Info("no plan for goal",
			zap.String("agent_id", scope.AgentID.String()),
			zap.String("goal_id", g.ID.String()),
			zap.Error(err))
		return nil, "no plan", nil
	}
	if err != nil {
		return nil, "", err
	}
	return in, "", nil
}
