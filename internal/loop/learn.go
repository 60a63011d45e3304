package loop

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TacticSubjectPrefix = "tactic:"
	TacticPredicate     = "effectiveness"
	TrialPrefix         = "trial-"

	outcomeSentiment = 0.3
)

// TrialName is the procedure name given to a reasoner plan that worked.
func TrialName(in *domain.Intention) string {
	return TrialPrefix + in.Fingerprint
}

// learn turns every execution outcome into an episode, updates procedural
// statistics when a top-level intention finishes, and records how effective
// the tactic was as a belief.
func (l *Loop) learn(ctx context.Context, results []service.ExecutionResult) error {
	var errs []error
	for i := range results {
		if err := l.learnFrom(ctx, &results[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loop) learnFrom(ctx context.Context, r *service.ExecutionResult) error {
	var errs []error
	in := r.Intention

	evidence, err := l.recordOutcome(ctx, in)
	if err != nil {
		errs = append(errs, err)
	}
	if r.Escalate {
		l.escalate(ctx, r)
	}
	if !r.RootFinished || r.Root == nil {
		return errors.Join(errs...)
	}

	root := r.Root
	success := root.Status == domain.IntentionCompleted
	name := root.ProcedureName

	switch {
	case name != "" && l.deps.Procedures != nil:
		if _, err := l.deps.Procedures.RecordOutcome(ctx, l.scope, name, success); err != nil {
			errs = append(errs, fmt.Errorf("record outcome of %s: %w", name, err))
		}
	case success && root.Plan.Source == domain.PlanFromReasoner && l.deps.Procedures != nil:
		name = TrialName(root)
		if err := l.adoptTrial(ctx, root, name); err != nil {
			errs = append(errs, err)
		}
	}
	if name == "" {
		name = TrialName(root)
	}

	verdict := "ineffective"
	if success {
		verdict = "effective"
	}
	_, err = l.deps.Beliefs.Apply(ctx, l.scope, []domain.Proposition{{
		Subject:   TacticSubjectPrefix + name,
		Predicate: TacticPredicate,
		Object:    domain.String(verdict),
		Source:    domain.SourceInference,
	}}, evidence)
	if err != nil {
		errs = append(errs, fmt.Errorf("record effectiveness of %s: %w", name, err))
	}
	return errors.Join(errs...)
}

func (l *Loop) recordOutcome(ctx context.Context, in *domain.Intention) ([]uuid.UUID, error) {
	if l.deps.Episodes == nil {
		return nil, nil
	}

	input := domain.EpisodeInput{
		Type:    domain.EpisodeFeedback,
		Payload: map[string]domain.Value{"intention_id": domain.String(in.ID.String())},
	}
	if in.Status == domain.IntentionCompleted {
		input.Outcome = domain.OutcomeSuccess
		input.Sentiment = outcomeSentiment
		input.Description = "completed: " + in.Description
	} else {
		input.Outcome = domain.OutcomeFailure
		input.Sentiment = -outcomeSentiment
		input.Description = "failed: " + in.Description
		if in.FailureReason != "" {
			input.Description += " (" + in.FailureReason + ")"
		}
	}
	if in.GoalID != nil {
		input.Payload["goal_id"] = domain.String(in.GoalID.String())
	}
	if len(in.Plan.Steps) > 0 {
		input.Payload["capability"] = domain.String(in.Plan.Steps[0].Capability)
		input.Payload["operation"] = domain.String(in.Plan.Steps[0].Operation)
	}

	ep, err := l.deps.Episodes.Record(ctx, l.scope, input)
	if err != nil {
		return nil, fmt.Errorf("record outcome episode: %w", err)
	}
	return []uuid.UUID{ep.ID}, nil
}

// adoptTrial keeps a successful reasoner plan as a procedure so the next
// plan for a similar goal can come from memory.
func (l *Loop) adoptTrial(ctx context.Context, root *domain.Intention, name string) error {
	typ := domain.ProcedureSkill
	if len(root.Plan.Steps) > 1 {
		typ = domain.ProcedureWorkflow
	}
	p := &domain.Procedure{
		Name:          name,
		Description:   root.Description,
		Type:          typ,
		Origin:        domain.OriginTrial,
		Steps:         root.Plan.Steps,
		Preconditions: root.Preconditions,
	}
	if root.GoalID != nil {
		if g, err := l.deps.Goals.Get(ctx, l.scope, *root.GoalID); err == nil {
			p.GoalTypes = []domain.GoalType{g.Type}
			p.Conditions = append([]string{}, g.Tags...)
			if g.Category != "" {
				p.Conditions = append(p.Conditions, g.Category)
			}
		}
	}
	if _, err := l.deps.Procedures.Upsert(ctx, l.scope, p); err != nil {
		return fmt.Errorf("adopt trial procedure %s: %w", name, err)
	}
	if _, err := l.deps.Procedures.RecordOutcome(ctx, l.scope, name, true); err != nil {
		return fmt.Errorf("record outcome of %s: %w", name, err)
	}
	l.logger.Info("trial procedure adopted", zap.String("procedure", name))
	return nil
}

// escalate leaves a note for a human: the intention failed and the agent has
// no further plan of its own.
func (l *Loop) escalate(ctx context.Context, r *service.ExecutionResult) {
	root := r.Root
	if root == nil {
		root = r.Intention
	}
	l.logger.Warn("intention escalated",
		zap.String("intention_id", root.ID.String()),
		zap.String("reason", root.FailureReason))

	if l.deps.Working == nil {
		return
	}
	item := &domain.WorkingMemoryItem{
		ContextType: domain.ContextScratchpad,
		Key:         "escalation:" + root.ID.String(),
		Payload: domain.Map(map[string]domain.Value{
			"intention_id": domain.String(root.ID.String()),
			"description":  domain.String(root.Description),
			"reason":       domain.String(root.FailureReason),
		}),
		Priority: escalationPriority,
	}
	if _, err := l.deps.Working.Insert(ctx, l.scope, item); err != nil {
		l.logger.Warn("failed to note escalation", zap.Error(err))
	}
}
