package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrGoalNotFound         = errors.New("goal not found")
	ErrGoalDescriptionEmpty = errors.New("goal description is required")
	ErrInvalidGoalType      = errors.New("invalid goal type")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

const (
	UrgencyOverdue   = 1.0
	UrgencyWeek      = 0.9
	UrgencyMonth     = 0.7
	UrgencyDistant   = 0.5
	UrgencyWeight    = 0.6
	ImportanceWeight = 0.4

	DefaultCategoryWeight = 0.6
	HighValueMultiplier   = 1.2
)

// Urgency is a step function of days to deadline. Goals without a deadline
// are treated as distant.
func Urgency(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return UrgencyDistant
	}
	days := deadline.Sub(now).Hours() / 24
	switch {
	case days <= 0:
		return UrgencyOverdue
	case days <= 7:
		return UrgencyWeek
	case days <= 30:
		return UrgencyMonth
	default:
		return UrgencyDistant
	}
}

// Priority maps urgency and importance onto the 1..10 scale.
func Priority(urgency, importance float64) int {
	p := int(math.Round(10 * (UrgencyWeight*urgency + ImportanceWeight*importance)))
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

var goalTransitions = map[domain.GoalStatus][]domain.GoalStatus{
	domain.GoalActive:     {domain.GoalInProgress, domain.GoalCompleted, domain.GoalAbandoned, domain.GoalBlocked},
	domain.GoalInProgress: {domain.GoalActive, domain.GoalCompleted, domain.GoalAbandoned, domain.GoalBlocked},
	domain.GoalBlocked:    {domain.GoalActive, domain.GoalAbandoned},
}

func canTransition(from, to domain.GoalStatus) bool {
	for _, s := range goalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// GoalInput is an explicitly assigned goal.
type GoalInput struct {
	Type        domain.GoalType   `json:"type"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Tags        []string          `json:"tags,omitempty"`
	Target      domain.GoalTarget `json:"target"`
	HighValue   bool              `json:"high_value,omitempty"`
	TriggerName string            `json:"-"`
}

// GoalService owns goal formation, prioritisation and the goal state machine.
type GoalService struct {
	goals      domain.GoalStore
	intentions domain.IntentionStore
	beliefs    *BeliefService
	recorder   telemetry.Recorder
	logger     *zap.Logger

	Triggers        []domain.TriggerRule
	CategoryWeights map[string]float64
	Now             func() time.Time
}

func NewGoalService(
	gs domain.GoalStore,
	is domain.IntentionStore,
	beliefs *BeliefService,
	recorder telemetry.Recorder,
	logger *zap.Logger,
) *GoalService {
	if recorder == nil {
		recorder = telemetry.Nop{}
	}
	return &GoalService{
		goals:      gs,
		intentions: is,
		beliefs:    beliefs,
		recorder:   recorder,
		logger:     logger,
		Now:        time.Now,
	}
}

// Importance returns the role weight of category, raised for high-value
// contexts.
func (s *GoalService) Importance(category string, highValue bool) float64 {
	w, ok := s.CategoryWeights[category]
	if !ok {
		w = DefaultCategoryWeight
	}
	if highValue {
		w *= HighValueMultiplier
	}
	return clamp01(w)
}

func (s *GoalService) Assign(ctx context.Context, scope domain.Scope, in GoalInput) (*domain.Goal, error) {
	if in.Description == "" {
		return nil, ErrGoalDescriptionEmpty
	}
	if in.Type == "" {
		in.Type = domain.GoalAchievement
	}
	if !domain.ValidGoalType(string(in.Type)) {
		return nil, ErrInvalidGoalType
	}

	now := s.Now()
	base := s.Importance(in.Category, false)
	importance := s.Importance(in.Category, in.HighValue)
	urgency := Urgency(in.Target.Deadline, now)

	g := &domain.Goal{
		TenantID:       scope.TenantID,
		AgentID:        scope.AgentID,
		Type:           in.Type,
		Description:    in.Description,
		Category:       in.Category,
		Tags:           in.Tags,
		Urgency:        urgency,
		Importance:     importance,
		BaseImportance: base,
		HighValue:      in.HighValue,
		Priority:       Priority(urgency, importance),
		Target:         in.Target,
		Status:         domain.GoalActive,
		TriggerName:    in.TriggerName,
	}
	if err := s.goals.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}

	s.logger.Info("goal formed",
		zap.String("agent_id", scope.AgentID.String()),
		zap.String("goal_id", g.ID.String()),
		zap.String("type", string(g.Type)),
		zap.Int("priority", g.Priority),
		zap.String("trigger", g.TriggerName))
	s.emit(ctx, scope, g, "", domain.GoalActive, nil)

	if _, _, err := s.UpdateProgress(ctx, scope, g.ID); err != nil {
		s.logger.Warn("initial progress update failed", zap.String("goal_id", g.ID.String()), zap.Error(err))
	}
	return s.Get(ctx, scope, g.ID)
}

// Form evaluates trigger rules in order against current beliefs and forms a
// goal from the first one that matches. It returns nil when nothing matches.
func (s *GoalService) Form(ctx context.Context, scope domain.Scope) (*domain.Goal, error) {
	if len(s.Triggers) == 0 {
		return nil, nil
	}

	open, err := s.goals.List(ctx, scope, domain.GoalFilter{
		Statuses: []domain.GoalStatus{domain.GoalActive, domain.GoalInProgress, domain.GoalBlocked},
	})
	if err != nil {
		return nil, fmt.Errorf("list open goals: %w", err)
	}
	formed := make(map[string]bool, len(open))
	for _, g := range open {
		if g.TriggerName != "" {
			formed[g.TriggerName] = true
		}
	}

	now := s.Now()
	for _, rule := range s.Triggers {
		if formed[rule.Name] {
			continue
		}
		if !s.matches(ctx, scope, rule) {
			continue
		}

		in := GoalInput{
			Type:        rule.GoalType,
			Description: rule.Description,
			Category:    rule.Category,
			Tags:        rule.Tags,
			HighValue:   rule.HighValue,
			TriggerName: rule.Name,
			Target: domain.GoalTarget{
				Subject:     rule.Subject,
				Predicate:   rule.Predicate,
				TargetValue: rule.TargetValue,
				Threshold:   rule.Threshold,
			},
		}
		if rule.DeadlineDays > 0 {
			d := now.Add(time.Duration(rule.DeadlineDays) * 24 * time.Hour)
			in.Target.Deadline = &d
		}
		return s.Assign(ctx, scope, in)
	}
	return nil, nil
}

func (s *GoalService) matches(ctx context.Context, scope domain.Scope, rule domain.TriggerRule) bool {
	b, err := s.beliefs.Get(ctx, scope, rule.Subject, rule.Predicate)
	if err != nil {
		return false
	}
	if b.Confidence < rule.MinConfidence {
		return false
	}
	v, ok := b.Object.AsNumber()
	if !ok {
		return false
	}
	switch rule.Comparator {
	case domain.CompareBelow:
		return v < rule.Value
	case domain.CompareAbove:
		return v > rule.Value
	case domain.CompareEquals:
		return v == rule.Value
	}
	return false
}

func (s *GoalService) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, error) {
	g, err := s.goals.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return g, nil
}

func (s *GoalService) List(ctx context.Context, scope domain.Scope, filter domain.GoalFilter) ([]domain.Goal, error) {
	return s.goals.List(ctx, scope, filter)
}

func (s *GoalService) Activate(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, error) {
	return s.transition(ctx, scope, id, domain.GoalActive, "")
}

// MarkInProgress records that an intention for the goal is executing. Goals
// already in progress are returned unchanged.
func (s *GoalService) MarkInProgress(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, error) {
	g, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if g.Status == domain.GoalInProgress {
		return g, nil
	}
	return s.transition(ctx, scope, id, domain.GoalInProgress, "")
}

func (s *GoalService) Complete(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, error) {
	return s.transition(ctx, scope, id, domain.GoalCompleted, "")
}

// Abandon ends the goal and abandons every intention still pursuing it.
func (s *GoalService) Abandon(ctx context.Context, scope domain.Scope, id uuid.UUID, reason string) (*domain.Goal, error) {
	g, err := s.transition(ctx, scope, id, domain.GoalAbandoned, reason)
	if err != nil {
		return nil, err
	}
	err = s.cascade(ctx, scope, id,
		[]domain.IntentionStatus{domain.IntentionPlanned, domain.IntentionInProgress, domain.IntentionPaused},
		domain.IntentionAbandoned, "goal abandoned: "+reason)
	return g, err
}

// Block parks the goal on an external dependency and pauses its intentions.
func (s *GoalService) Block(ctx context.Context, scope domain.Scope, id uuid.UUID, reason string) (*domain.Goal, error) {
	g, err := s.transition(ctx, scope, id, domain.GoalBlocked, reason)
	if err != nil {
		return nil, err
	}
	err = s.cascade(ctx, scope, id,
		[]domain.IntentionStatus{domain.IntentionPlanned, domain.IntentionInProgress},
		domain.IntentionPaused, "goal blocked: "+reason)
	return g, err
}

// Unblock reactivates a blocked goal and returns its paused intentions to
// planned.
func (s *GoalService) Unblock(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, error) {
	g, err := s.transition(ctx, scope, id, domain.GoalActive, "")
	if err != nil {
		return nil, err
	}
	err = s.cascade(ctx, scope, id,
		[]domain.IntentionStatus{domain.IntentionPaused},
		domain.IntentionPlanned, "")
	return g, err
}

func (s *GoalService) transition(ctx context.Context, scope domain.Scope, id uuid.UUID, to domain.GoalStatus, reason string) (*domain.Goal, error) {
	g, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	from := g.Status
	if !canTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	g.Status = to
	g.StatusReason = reason
	if to == domain.GoalCompleted {
		now := s.Now()
		g.CompletedAt = &now
	}
	if err := s.goals.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update goal %s: %w", id, err)
	}
	s.emit(ctx, scope, g, from, to, map[string]any{"reason": reason})
	return g, nil
}

func (s *GoalService) cascade(ctx context.Context, scope domain.Scope, goalID uuid.UUID, from []domain.IntentionStatus, to domain.IntentionStatus, reason string) error {
	if s.intentions == nil {
		return nil
	}
	list, err := s.intentions.List(ctx, scope, domain.IntentionFilter{GoalID: &goalID, Statuses: from})
	if err != nil {
		return fmt.Errorf("list intentions for goal %s: %w", goalID, err)
	}
	var errs []error
	for i := range list {
		if err := setIntentionStatus(ctx, s.intentions, s.recorder, scope, &list[i], to, reason, s.Now()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reprioritize carries the goal's priority over to its intentions that have
// not started yet.
func (s *GoalService) reprioritize(ctx context.Context, scope domain.Scope, g *domain.Goal) error {
	if s.intentions == nil {
		return nil
	}
	list, err := s.intentions.List(ctx, scope, domain.IntentionFilter{
		GoalID:   &g.ID,
		Statuses: []domain.IntentionStatus{domain.IntentionPlanned, domain.IntentionPaused},
	})
	if err != nil {
		return fmt.Errorf("list intentions for goal %s: %w", g.ID, err)
	}
	var errs []error
	for i := range list {
		in := &list[i]
		if in.Priority == g.Priority {
			continue
		}
		in.Priority = g.Priority
		if err := s.intentions.Update(ctx, in); err != nil {
			errs = append(errs, fmt.Errorf("reprioritize intention %s: %w", in.ID, err))
		}
	}
	return errors.Join(errs...)
}

// UpdateProgress re-reads the goal's target belief, recomputes progress,
// urgency and priority, and completes the goal when it is satisfied. The
// goal is written only when something changed.
func (s *GoalService) UpdateProgress(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, bool, error) {
	g, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, false, err
	}
	if g.Status.Terminal() {
		return g, false, nil
	}

	now := s.Now()
	changed := false

	if g.Target.Subject != "" && g.Target.Predicate != "" {
		b, err := s.beliefs.Get(ctx, scope, g.Target.Subject, g.Target.Predicate)
		if err != nil && !errors.Is(err, ErrBeliefNotFound) {
			return nil, false, err
		}
		if b != nil {
			if cur, ok := b.Object.AsNumber(); ok {
				if g.CurrentValue == nil || *g.CurrentValue != cur {
					g.CurrentValue = &cur
					changed = true
				}
				if p := progressOf(g, cur); p != g.Progress {
					g.Progress = p
					changed = true
				}
			}
		}
	}

	urgency := Urgency(g.Target.Deadline, now)
	priority := Priority(urgency, g.Importance)
	reprioritized := priority != g.Priority
	if urgency != g.Urgency || reprioritized {
		g.Urgency = urgency
		g.Priority = priority
		changed = true
	}

	if changed {
		if err := s.goals.Update(ctx, g); err != nil {
			return nil, false, fmt.Errorf("update goal %s: %w", id, err)
		}
	}
	if reprioritized {
		if err := s.reprioritize(ctx, scope, g); err != nil {
			return nil, changed, err
		}
	}

	if s.satisfied(g) {
		done, err := s.Complete(ctx, scope, g.ID)
		if err != nil {
			return nil, changed, err
		}
		s.logger.Info("goal completed",
			zap.String("agent_id", scope.AgentID.String()),
			zap.String("goal_id", g.ID.String()),
			zap.Float64("progress", done.Progress))
		return done, true, nil
	}
	return g, changed, nil
}

// RefreshAll updates progress of every non-terminal goal and returns the ones
// that changed.
func (s *GoalService) RefreshAll(ctx context.Context, scope domain.Scope) ([]domain.Goal, error) {
	goals, err := s.goals.List(ctx, scope, domain.GoalFilter{
		Statuses: []domain.GoalStatus{domain.GoalActive, domain.GoalInProgress, domain.GoalBlocked},
	})
	if err != nil {
		return nil, err
	}
	var (
		changed []domain.Goal
		errs    []error
	)
	for _, g := range goals {
		updated, ok, err := s.UpdateProgress(ctx, scope, g.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			changed = append(changed, *updated)
		}
	}
	return changed, errors.Join(errs...)
}

func progressOf(g *domain.Goal, current float64) float64 {
	switch g.Type {
	case domain.GoalMaintenance:
		if current >= g.Target.Threshold {
			return 1
		}
		return 0
	case domain.GoalPrevention:
		if current < g.Target.Threshold {
			return 1
		}
		return 0
	default:
		if g.Target.TargetValue == 0 {
			if current >= 0 {
				return 1
			}
			return 0
		}
		return clamp01(current / g.Target.TargetValue)
	}
}

// satisfied reports whether an open goal should complete now. Every goal type
// completes once its progress reaches 1.
func (s *GoalService) satisfied(g *domain.Goal) bool {
	return g.Status.Open() && g.Progress >= 1
}

func (s *GoalService) emit(ctx context.Context, scope domain.Scope, g *domain.Goal, from, to domain.GoalStatus, data map[string]any) {
	id := g.ID
	if data == nil {
		data = map[string]any{}
	}
	data["priority"] = g.Priority
	data["progress"] = g.Progress
	s.recorder.Record(ctx, telemetry.NewEvent(ctx, scope, domain.EventGoalTransition, &id, string(from), string(to), data))
}

// setIntentionStatus moves an intention to a new status and records the
// transition.
func setIntentionStatus(
	ctx context.Context,
	is domain.IntentionStore,
	recorder telemetry.Recorder,
	scope domain.Scope,
	in *domain.Intention,
	to domain.IntentionStatus,
	reason string,
	now time.Time,
) error {
	from := in.Status
	if from == to {
		return nil
	}
	in.Status = to
	if reason != "" && (to == domain.IntentionFailed || to == domain.IntentionAbandoned) {
		in.FailureReason = reason
	}
	switch {
	case to == domain.IntentionInProgress && in.StartedAt == nil:
		in.StartedAt = &now
	case to.Terminal():
		in.CompletedAt = &now
	case to == domain.IntentionPlanned:
		in.StartedAt = nil
	}
	if err := is.Update(ctx, in); err != nil {
		return fmt.Errorf("update intention %s: %w", in.ID, err)
	}
	id := in.ID
	data := map[string]any{"type": string(in.Type)}
	if in.GoalID != nil {
		data["goal_id"] = in.GoalID.String()
	}
	if reason != "" {
		data["reason"] = reason
	}
	recorder.Record(ctx, telemetry.NewEvent(ctx, scope, domain.EventIntentionTransition, &id, string(from), string(to), data))
	return nil
}
