package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/llm"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrIntentionNotFound = errors.New("intention not found")
	ErrNoPlan            = errors.New("no usable plan")
	ErrDependencyCycle   = errors.New("dependency cycle")
	ErrEmptyPlan         = errors.New("plan has no steps")
)

const (
	// ProcedureUsabilityFloor is the minimum score for a stored procedure to
	// be used instead of asking the reasoner.
	ProcedureUsabilityFloor  = 0.5
	MaxReplans               = 3
	OverrunFactor            = 2
	DefaultActionTimeout     = 60 * time.Second
	DefaultIntentionPriority = 5
	maxPlanningBeliefs       = 20
)

// Executor dispatches actions to capabilities.
type Executor interface {
	Capabilities() []string
	Execute(ctx context.Context, action domain.Action) (*domain.ActionResult, error)
}

// PlanOptions narrows plan selection.
type PlanOptions struct {
	// Available capability names; nil means unknown.
	Available []string
	// Extra context tags matched against procedure conditions.
	Context             []string
	ExcludeProcedures   []string
	ExcludeFingerprints []string
	PriorFailure        string
	ReplannedFrom       *uuid.UUID
	Attempt             int
}

// ExecutionResult describes one ExecuteNext or Monitor step.
type ExecutionResult struct {
	// Intention is the action that ran or failed.
	Intention *domain.Intention `json:"intention"`
	// Root is the top-level intention Intention belongs to (itself for a
	// standalone action).
	Root         *domain.Intention    `json:"root"`
	RootFinished bool                 `json:"root_finished"`
	Result       *domain.ActionResult `json:"result,omitempty"`
	Replanned    *domain.Intention    `json:"replanned,omitempty"`
	Escalate     bool                 `json:"escalate"`
}

// IntentionEngine turns goals into committed plans and executes them one
// action at a time.
type IntentionEngine struct {
	store      domain.IntentionStore
	goals      *GoalService
	beliefs    *BeliefService
	procedures *ProceduralMemory
	reasoner   domain.Reasoner
	recorder   telemetry.Recorder
	logger     *zap.Logger

	Retry         llm.RetryConfig
	ActionTimeout time.Duration
	Now           func() time.Time
}

func NewIntentionEngine(
	is domain.IntentionStore,
	goals *GoalService,
	beliefs *BeliefService,
	procedures *ProceduralMemory,
	reasoner domain.Reasoner,
	recorder telemetry.Recorder,
	logger *zap.Logger,
) *IntentionEngine {
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	return &IntentionEngine{
		store:         is,
		goals:         goals,
		beliefs:       beliefs,
		procedures:    procedures,
		reasoner:      reasoner,
		recorder:      recorder,
		logger:        logger,
		Retry:         llm.DefaultRetryConfig(),
		ActionTimeout: DefaultActionTimeout,
		Now:           time.Now,
	}
}

// ProcedureScore rates how well a stored procedure fits the current goal.
func ProcedureScore(p *domain.Procedure, tags, available []string) float64 {
	return 0.5*p.SuccessRate + 0.3*ContextMatch(p, tags) + 0.2*ResourceAvailability(p, available)
}

// PlanFor commits to a plan for goal. Stored procedures are preferred; the
// reasoner is asked only when none is usable. Excluded procedures and plan
// fingerprints are never returned.
func (e *IntentionEngine) PlanFor(ctx context.Context, scope domain.Scope, goal *domain.Goal, opts PlanOptions) (*domain.Intention, error) {
	tags := append(append([]string{}, opts.Context...), goal.Tags...)
	if goal.Category != "" {
		tags = append(tags, goal.Category)
	}

	proc, err := e.bestProcedure(ctx, scope, goal, tags, opts)
	if err != nil {
		return nil, err
	}

	var plan *domain.Plan
	if proc != nil {
		plan = &domain.Plan{
			Steps:         proc.Steps,
			Source:        domain.PlanFromProcedure,
			Rationale:     proc.Description,
			Preconditions: proc.Preconditions,
		}
	} else {
		plan, err = e.synthesize(ctx, scope, goal, opts)
		if err != nil {
			return nil, err
		}
	}

	in := &domain.Intention{
		TenantID:          scope.TenantID,
		AgentID:           scope.AgentID,
		Type:              intentionTypeOf(plan),
		Description:       goal.Description,
		Plan:              *plan,
		Fingerprint:       plan.Fingerprint(),
		Priority:          goal.Priority,
		GoalID:            &goal.ID,
		Preconditions:     plan.Preconditions,
		EstimatedDuration: plan.EstimatedDuration(),
		Status:            domain.IntentionPlanned,
		Attempt:           opts.Attempt,
		ReplannedFrom:     opts.ReplannedFrom,
	}
	if proc != nil {
		id := proc.ID
		in.ProcedureID = &id
		in.ProcedureName = proc.Name
	}
	if err := e.create(ctx, scope, in); err != nil {
		return nil, err
	}

	e.logger.Info("intention planned",
		zap.String("agent_id", scope.AgentID.String()),
		zap.String("goal_id", goal.ID.String()),
		zap.String("intention_id", in.ID.String()),
		zap.String("type", string(in.Type)),
		zap.String("source", string(plan.Source)),
		zap.String("procedure", in.ProcedureName),
		zap.Int("attempt", in.Attempt))
	return in, nil
}

func (e *IntentionEngine) bestProcedure(ctx context.Context, scope domain.Scope, goal *domain.Goal, tags []string, opts PlanOptions) (*domain.Procedure, error) {
	if e.procedures == nil {
		return nil, nil
	}
	candidates, err := e.procedures.Retrieve(ctx, scope, domain.ProcedureQuery{GoalType: goal.Type})
	if err != nil {
		return nil, fmt.Errorf("retrieve procedures: %w", err)
	}

	var (
		best      *domain.Procedure
		bestScore float64
	)
	for i := range candidates {
		p := &candidates[i]
		if len(p.Steps) == 0 || slices.Contains(opts.ExcludeProcedures, p.Name) {
			continue
		}
		if slices.Contains(opts.ExcludeFingerprints, domain.Plan{Steps: p.Steps}.Fingerprint()) {
			continue
		}
		score := ProcedureScore(p, tags, opts.Available)
		if best == nil || score > bestScore {
			best, bestScore = p, score
		}
	}
	if best == nil || bestScore < ProcedureUsabilityFloor {
		return nil, nil
	}
	return best, nil
}

func (e *IntentionEngine) synthesize(ctx context.Context, scope domain.Scope, goal *domain.Goal, opts PlanOptions) (*domain.Plan, error) {
	if e.reasoner == nil {
		return nil, ErrNoPlan
	}

	req := domain.PlanRequest{
		Goal:         goal,
		Capabilities: opts.Available,
		Excluded:     opts.ExcludeFingerprints,
		PriorFailure: opts.PriorFailure,
	}
	if e.beliefs != nil && goal.Target.Subject != "" {
		beliefs, err := e.beliefs.About(ctx, scope, goal.Target.Subject)
		if err != nil {
			e.logger.Warn("failed to load beliefs for planning", zap.String("goal_id", goal.ID.String()), zap.Error(err))
		}
		if len(beliefs) > maxPlanningBeliefs {
			beliefs = beliefs[:maxPlanningBeliefs]
		}
		req.Beliefs = beliefs
	}

	plan, err := llm.Retry(ctx, e.Retry, func(ctx context.Context) (*domain.Plan, error) {
		return e.reasoner.SynthesizePlan(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reasoner: %w", ErrNoPlan, err)
	}
	if plan == nil || len(plan.Steps) == 0 {
		return nil, fmt.Errorf("%w: reasoner returned no steps", ErrNoPlan)
	}
	if slices.Contains(opts.ExcludeFingerprints, plan.Fingerprint()) {
		return nil, fmt.Errorf("%w: reasoner repeated a failed plan", ErrNoPlan)
	}
	plan.Source = domain.PlanFromReasoner
	return plan, nil
}

func intentionTypeOf(p *domain.Plan) domain.IntentionType {
	switch {
	case len(p.Steps) == 1:
		return domain.IntentionAction
	case p.Strategic:
		return domain.IntentionStrategy
	default:
		return domain.IntentionTactic
	}
}

// Adopt commits to an opportunistic plan that serves no goal.
func (e *IntentionEngine) Adopt(ctx context.Context, scope domain.Scope, description string, plan domain.Plan, priority int) (*domain.Intention, error) {
	if len(plan.Steps) == 0 {
		return nil, ErrEmptyPlan
	}
	if priority < 1 || priority > 10 {
		priority = DefaultIntentionPriority
	}
	if plan.Source == "" {
		plan.Source = domain.PlanFromReasoner
	}
	in := &domain.Intention{
		TenantID:          scope.TenantID,
		AgentID:           scope.AgentID,
		Type:              intentionTypeOf(&plan),
		Description:       description,
		Plan:              plan,
		Fingerprint:       plan.Fingerprint(),
		Priority:          priority,
		Preconditions:     plan.Preconditions,
		EstimatedDuration: plan.EstimatedDuration(),
		Status:            domain.IntentionPlanned,
	}
	if err := e.create(ctx, scope, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (e *IntentionEngine) create(ctx context.Context, scope domain.Scope, in *domain.Intention) error {
	if err := e.store.Create(ctx, in); err != nil {
		return fmt.Errorf("create intention: %w", err)
	}
	id := in.ID
	data := map[string]any{"type": string(in.Type), "fingerprint": in.Fingerprint}
	if in.GoalID != nil {
		data["goal_id"] = in.GoalID.String()
	}
	e.recorder.Record(ctx, telemetry.NewEvent(ctx, scope, domain.EventIntentionTransition, &id, "", string(in.Status), data))
	return nil
}

func (e *IntentionEngine) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Intention, error) {
	in, err := e.store.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrIntentionNotFound
		}
		return nil, err
	}
	return in, nil
}

func (e *IntentionEngine) List(ctx context.Context, scope domain.Scope, filter domain.IntentionFilter) ([]domain.Intention, error) {
	return e.store.List(ctx, scope, filter)
}

// DependenciesSatisfied reports whether every intention in.Dependencies names
// is completed. Unknown dependencies are unsatisfied. A dependency graph that
// loops back on itself returns ErrDependencyCycle.
func (e *IntentionEngine) DependenciesSatisfied(ctx context.Context, scope domain.Scope, in *domain.Intention) (bool, error) {
	if err := e.checkCycle(ctx, scope, in); err != nil {
		return false, err
	}
	for _, depID := range in.Dependencies {
		dep, err := e.store.GetByID(ctx, scope, depID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if dep.Status != domain.IntentionCompleted {
			return false, nil
		}
	}
	return true, nil
}

func (e *IntentionEngine) checkCycle(ctx context.Context, scope domain.Scope, root *domain.Intention) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[uuid.UUID]int)

	var visit func(id uuid.UUID, deps []uuid.UUID) error
	visit = func(id uuid.UUID, deps []uuid.UUID) error {
		state[id] = visiting
		for _, depID := range deps {
			switch state[depID] {
			case visiting:
				return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, id, depID)
			case done:
				continue
			}
			dep, err := e.store.GetByID(ctx, scope, depID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					state[depID] = done
					continue
				}
				return err
			}
			if err := visit(dep.ID, dep.Dependencies); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	return visit(root.ID, root.Dependencies)
}

// next returns the highest-priority planned intention whose dependencies are
// all completed.
func (e *IntentionEngine) next(ctx context.Context, scope domain.Scope) (*domain.Intention, error) {
	planned, err := e.store.List(ctx, scope, domain.IntentionFilter{
		Statuses: []domain.IntentionStatus{domain.IntentionPlanned},
	})
	if err != nil {
		return nil, fmt.Errorf("list planned intentions: %w", err)
	}
	for i := range planned {
		in := &planned[i]
		if in.Coordination {
			// Resumed parents advance through their children.
			continue
		}
		ok, err := e.DependenciesSatisfied(ctx, scope, in)
		if err != nil {
			if errors.Is(err, ErrDependencyCycle) {
				e.logger.Error("skipping intention with dependency cycle",
					zap.String("agent_id", scope.AgentID.String()),
					zap.String("intention_id", in.ID.String()),
					zap.Error(err))
				continue
			}
			return nil, err
		}
		if ok {
			return in, nil
		}
	}
	return nil, nil
}

// ExecuteNext runs the single highest-priority ready action. A ready tactic
// or strategy is first decomposed into chained child actions and its first
// child runs. It returns nil when nothing is ready.
func (e *IntentionEngine) ExecuteNext(ctx context.Context, scope domain.Scope, exec Executor) (*ExecutionResult, error) {
	in, err := e.next(ctx, scope)
	if err != nil || in == nil {
		return nil, err
	}

	var root *domain.Intention
	if in.Type != domain.IntentionAction && len(in.Plan.Steps) > 1 {
		root = in
		first, err := e.decompose(ctx, scope, in)
		if err != nil {
			return nil, err
		}
		in = first
	} else if in.ParentID != nil {
		root, err = e.Get(ctx, scope, *in.ParentID)
		if err != nil {
			return nil, fmt.Errorf("load parent of %s: %w", in.ID, err)
		}
		if root.Status == domain.IntentionPlanned {
			if err := setIntentionStatus(ctx, e.store, e.recorder, scope, root, domain.IntentionInProgress, "", e.Now()); err != nil {
				return nil, err
			}
		}
	}

	if in.GoalID != nil && e.goals != nil {
		if _, err := e.goals.MarkInProgress(ctx, scope, *in.GoalID); err != nil {
			e.logger.Warn("failed to mark goal in progress",
				zap.String("goal_id", in.GoalID.String()), zap.Error(err))
		}
	}

	if err := setIntentionStatus(ctx, e.store, e.recorder, scope, in, domain.IntentionInProgress, "", e.Now()); err != nil {
		return nil, err
	}

	res := e.dispatch(ctx, in, exec)
	in.Result = res

	out := &ExecutionResult{Intention: in, Root: in, Result: res}
	if root != nil {
		out.Root = root
	}

	if res.Success {
		if err := setIntentionStatus(ctx, e.store, e.recorder, scope, in, domain.IntentionCompleted, "", e.Now()); err != nil {
			return nil, err
		}
		if root == nil {
			out.RootFinished = true
			return out, nil
		}
		finished, err := e.completeParentIfDone(ctx, scope, root)
		if err != nil {
			return nil, err
		}
		out.RootFinished = finished
		return out, nil
	}

	reason := res.Error
	if reason == "" {
		reason = "action reported failure"
	}
	failedRoot, err := e.fail(ctx, scope, in, reason)
	if err != nil {
		return nil, err
	}
	out.Root = failedRoot
	out.RootFinished = true
	out.Replanned, out.Escalate = e.handleFailure(ctx, scope, failedRoot, reason, exec.Capabilities())
	return out, nil
}

func (e *IntentionEngine) dispatch(ctx context.Context, in *domain.Intention, exec Executor) *domain.ActionResult {
	step := in.Plan.Steps[0]
	action := domain.Action{
		IntentionID: in.ID,
		Capability:  step.Capability,
		Operation:   step.Operation,
		Parameters:  step.Parameters,
		Description: step.Description,
	}

	timeout := e.ActionTimeout
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := e.Now()
	res, err := exec.Execute(execCtx, action)
	if err != nil {
		res = &domain.ActionResult{Success: false, Error: err.Error()}
	}
	if res == nil {
		res = &domain.ActionResult{Success: false, Error: "capability returned no result"}
	}
	if res.Duration == 0 {
		res.Duration = e.Now().Sub(start)
	}
	return res
}

// decompose expands a tactic or strategy into one child action per step,
// each depending on the previous one, and turns the parent into a
// coordination record.
func (e *IntentionEngine) decompose(ctx context.Context, scope domain.Scope, parent *domain.Intention) (*domain.Intention, error) {
	var (
		first *domain.Intention
		prev  *uuid.UUID
	)
	parentID := parent.ID
	for i, step := range parent.Plan.Steps {
		plan := domain.Plan{Steps: []domain.PlanStep{step}, Source: parent.Plan.Source}
		desc := step.Description
		if desc == "" {
			desc = fmt.Sprintf("%s step %d: %s.%s", parent.Description, i+1, step.Capability, step.Operation)
		}
		child := &domain.Intention{
			TenantID:          scope.TenantID,
			AgentID:           scope.AgentID,
			Type:              domain.IntentionAction,
			Description:       desc,
			Plan:              plan,
			Fingerprint:       plan.Fingerprint(),
			Priority:          parent.Priority,
			GoalID:            parent.GoalID,
			ParentID:          &parentID,
			ProcedureID:       parent.ProcedureID,
			ProcedureName:     parent.ProcedureName,
			EstimatedDuration: step.EstimatedDuration,
			Status:            domain.IntentionPlanned,
			Attempt:           parent.Attempt,
		}
		if prev != nil {
			child.Dependencies = []uuid.UUID{*prev}
		}
		if err := e.create(ctx, scope, child); err != nil {
			return nil, err
		}
		id := child.ID
		prev = &id
		if first == nil {
			first = child
		}
	}

	parent.Coordination = true
	if err := setIntentionStatus(ctx, e.store, e.recorder, scope, parent, domain.IntentionInProgress, "", e.Now()); err != nil {
		return nil, err
	}
	e.logger.Debug("intention decomposed",
		zap.String("agent_id", scope.AgentID.String()),
		zap.String("intention_id", parent.ID.String()),
		zap.Int("children", len(parent.Plan.Steps)))
	return first, nil
}

func (e *IntentionEngine) children(ctx context.Context, scope domain.Scope, parentID uuid.UUID) ([]domain.Intention, error) {
	return e.store.List(ctx, scope, domain.IntentionFilter{ParentID: &parentID})
}

func (e *IntentionEngine) completeParentIfDone(ctx context.Context, scope domain.Scope, parent *domain.Intention) (bool, error) {
	kids, err := e.children(ctx, scope, parent.ID)
	if err != nil {
		return false, err
	}
	for _, k := range kids {
		if k.Status != domain.IntentionCompleted {
			return false, nil
		}
	}
	if err := setIntentionStatus(ctx, e.store, e.recorder, scope, parent, domain.IntentionCompleted, "", e.Now()); err != nil {
		return false, err
	}
	return true, nil
}

// fail marks in failed together with its coordination parent and abandons
// the remaining siblings. It returns the top-level intention.
func (e *IntentionEngine) fail(ctx context.Context, scope domain.Scope, in *domain.Intention, reason string) (*domain.Intention, error) {
	now := e.Now()
	if err := setIntentionStatus(ctx, e.store, e.recorder, scope, in, domain.IntentionFailed, reason, now); err != nil {
		return nil, err
	}

	root := in
	if in.ParentID != nil {
		parent, err := e.Get(ctx, scope, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if !parent.Status.Terminal() {
			if err := setIntentionStatus(ctx, e.store, e.recorder, scope, parent, domain.IntentionFailed, reason, now); err != nil {
				return nil, err
			}
		}
		root = parent
	}

	if root.Coordination {
		kids, err := e.children(ctx, scope, root.ID)
		if err != nil {
			return nil, err
		}
		for i := range kids {
			if kids[i].ID == in.ID || kids[i].Status.Terminal() {
				continue
			}
			if err := setIntentionStatus(ctx, e.store, e.recorder, scope, &kids[i], domain.IntentionAbandoned, "sibling failed", now); err != nil {
				return nil, err
			}
		}
	}

	e.logger.Warn("intention failed",
		zap.String("agent_id", scope.AgentID.String()),
		zap.String("intention_id", in.ID.String()),
		zap.String("root_id", root.ID.String()),
		zap.String("reason", reason))
	return root, nil
}

// handleFailure decides what follows a failed top-level intention: a fresh
// plan for the same goal, or escalation to the loop when the intention was
// opportunistic, replans are exhausted, or no new plan exists.
func (e *IntentionEngine) handleFailure(ctx context.Context, scope domain.Scope, failed *domain.Intention, reason string, available []string) (*domain.Intention, bool) {
	if failed.GoalID == nil || e.goals == nil {
		return nil, true
	}
	if failed.Attempt >= MaxReplans {
		e.logger.Warn("replans exhausted",
			zap.String("agent_id", scope.AgentID.String()),
			zap.String("goal_id", failed.GoalID.String()),
			zap.Int("attempts", failed.Attempt))
		return nil, true
	}

	goal, err := e.goals.Get(ctx, scope, *failed.GoalID)
	if err != nil {
		e.logger.Error("failed to load goal for replanning", zap.String("goal_id", failed.GoalID.String()), zap.Error(err))
		return nil, true
	}
	if !goal.Status.Open() {
		return nil, false
	}

	opts := PlanOptions{
		Available:     available,
		PriorFailure:  reason,
		ReplannedFrom: &failed.ID,
		Attempt:       failed.Attempt + 1,
	}
	history, err := e.store.List(ctx, scope, domain.IntentionFilter{
		GoalID:   failed.GoalID,
		Statuses: []domain.IntentionStatus{domain.IntentionFailed},
	})
	if err != nil {
		e.logger.Error("failed to load failed intentions", zap.String("goal_id", goal.ID.String()), zap.Error(err))
		return nil, true
	}
	for _, h := range history {
		if h.ParentID != nil {
			continue
		}
		opts.ExcludeFingerprints = append(opts.ExcludeFingerprints, h.Fingerprint)
		if h.ProcedureName != "" {
			opts.ExcludeProcedures = append(opts.ExcludeProcedures, h.ProcedureName)
		}
	}

	next, err := e.PlanFor(ctx, scope, goal, opts)
	if err != nil {
		e.logger.Warn("replanning failed",
			zap.String("agent_id", scope.AgentID.String()),
			zap.String("goal_id", goal.ID.String()),
			zap.Error(err))
		return nil, true
	}
	return next, false
}

// Monitor fails in-progress intentions that overran twice their estimate or
// whose preconditions no longer hold, and routes them to replanning.
func (e *IntentionEngine) Monitor(ctx context.Context, scope domain.Scope, now time.Time, available []string) ([]ExecutionResult, error) {
	running, err := e.store.List(ctx, scope, domain.IntentionFilter{
		Statuses: []domain.IntentionStatus{domain.IntentionInProgress},
	})
	if err != nil {
		return nil, fmt.Errorf("list running intentions: %w", err)
	}

	var (
		results []ExecutionResult
		handled = make(map[uuid.UUID]bool)
		errs    []error
	)
	for i := range running {
		in := &running[i]
		if handled[in.ID] {
			continue
		}
		reason := e.invalidReason(ctx, scope, in, now)
		if reason == "" {
			continue
		}

		// Re-read: an earlier failure in this pass may have changed it.
		cur, err := e.Get(ctx, scope, in.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if cur.Status != domain.IntentionInProgress {
			continue
		}

		root, err := e.fail(ctx, scope, cur, reason)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		handled[cur.ID] = true
		handled[root.ID] = true

		res := ExecutionResult{Intention: cur, Root: root, RootFinished: true}
		res.Replanned, res.Escalate = e.handleFailure(ctx, scope, root, reason, available)
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (e *IntentionEngine) invalidReason(ctx context.Context, scope domain.Scope, in *domain.Intention, now time.Time) string {
	if !in.Coordination && in.StartedAt != nil {
		estimate := in.EstimatedDuration
		if estimate <= 0 {
			estimate = e.ActionTimeout
		}
		if estimate > 0 && now.Sub(*in.StartedAt) > OverrunFactor*estimate {
			return fmt.Sprintf("overran estimate of %s", estimate)
		}
	}
	if e.beliefs == nil {
		return ""
	}
	for _, pre := range in.Preconditions {
		b, err := e.beliefs.Get(ctx, scope, pre.Subject, pre.Predicate)
		switch {
		case err != nil:
			return fmt.Sprintf("precondition %s.%s no longer held", pre.Subject, pre.Predicate)
		case !b.Object.Equal(pre.Object):
			return fmt.Sprintf("precondition %s.%s changed to %s", pre.Subject, pre.Predicate, b.Object)
		case b.Confidence < ReplacementThreshold:
			return fmt.Sprintf("precondition %s.%s lost confidence", pre.Subject, pre.Predicate)
		}
	}
	return ""
}
