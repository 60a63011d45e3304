package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/adhocore/gronx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// A belief change this important and this large warrants re-planning.
	StrategicImportance = 0.7
	StrategicDelta      = 0.3

	recentObservationTTL = time.Hour
	currentTaskPriority  = 0.8
	escalationPriority   = 0.9
)

// Predicates that always prompt strategic reasoning when they change.
var strategicPredicates = []string{"achievab", "deadline", "priority"}

// CycleReport summarises one pass of the loop.
type CycleReport struct {
	ID            uuid.UUID                 `json:"id"`
	Observations  int                       `json:"observations"`
	BeliefChanges []domain.BeliefChange     `json:"belief_changes,omitempty"`
	Strategized   bool                      `json:"strategized"`
	Results       []service.ExecutionResult `json:"results,omitempty"`
	FailedPhases  []string                  `json:"failed_phases,omitempty"`
	StartedAt     time.Time                 `json:"started_at"`
	CompletedAt   time.Time                 `json:"completed_at"`
}

// RunCycle runs one full cycle. The returned error joins every phase failure;
// phases after a failed one still run.
func (l *Loop) RunCycle(ctx context.Context) error {
	_, err := l.cycle(ctx)
	return err
}

func (l *Loop) cycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{ID: uuid.New(), StartedAt: l.cfg.Now()}
	ctx = telemetry.WithCycleID(ctx, report.ID)
	ctx, span := telemetry.Tracer().Start(ctx, "loop.cycle", trace.WithAttributes(
		attribute.String("agent_id", l.scope.AgentID.String()),
		attribute.String("cycle_id", report.ID.String()),
	))
	defer span.End()

	var (
		errs         []error
		observations []domain.Observation
	)
	run := func(name string, fn func(ctx context.Context) error) {
		if err := l.phase(ctx, name, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			report.FailedPhases = append(report.FailedPhases, name)
		}
	}

	run("perceive", func(ctx context.Context) error {
		var err error
		observations, err = l.perceive(ctx)
		report.Observations = len(observations)
		return err
	})

	run("beliefs", func(ctx context.Context) error {
		if len(observations) == 0 {
			return nil
		}
		changes, err := l.deps.Beliefs.Update(ctx, l.scope, observations)
		report.BeliefChanges = changes
		l.noteObservations(ctx, observations)
		return err
	})

	run("strategize", func(ctx context.Context) error {
		now := l.cfg.Now()
		trigger := l.strategicTrigger(ctx, report.BeliefChanges, now)
		if trigger == "" {
			return nil
		}
		report.Strategized = true
		l.mu.Lock()
		l.lastStrategic = now
		l.mu.Unlock()
		l.logger.Debug("strategic reasoning", zap.String("trigger", trigger))
		_, err := l.strategist.Run(ctx, l.scope, l.exec.Capabilities())
		return err
	})

	run("goals", func(ctx context.Context) error {
		_, err := l.deps.Goals.RefreshAll(ctx, l.scope)
		return err
	})

	run("act", func(ctx context.Context) error {
		var err error
		report.Results, err = l.act(ctx)
		return err
	})

	run("learn", func(ctx context.Context) error {
		return l.learn(ctx, report.Results)
	})

	report.CompletedAt = l.cfg.Now()
	l.mu.Lock()
	l.status.Cycles++
	l.status.LastCycleAt = &report.CompletedAt
	l.status.HasError = len(errs) > 0
	l.mu.Unlock()

	l.deps.Recorder.Record(ctx, telemetry.NewEvent(ctx, l.scope, domain.EventCycleCompleted, &report.ID, "", "", map[string]any{
		"observations":   report.Observations,
		"belief_changes": len(report.BeliefChanges),
		"strategized":    report.Strategized,
		"executed":       len(report.Results),
		"failed_phases":  report.FailedPhases,
		"duration_ms":    report.CompletedAt.Sub(report.StartedAt).Milliseconds(),
	}))
	return report, errors.Join(errs...)
}

// perceive polls every capability concurrently. A failing or slow source
// contributes an error; the others' observations are still returned.
func (l *Loop) perceive(ctx context.Context) ([]domain.Observation, error) {
	names := l.exec.Capabilities()
	batches := make([][]domain.Observation, len(names))
	failures := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		cp := l.exec.caps[name]
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, l.cfg.PerceiveTimeout)
			defer cancel()
			obs, err := guarded(pctx, "perceive:"+name, cp.Perceive)
			if err != nil {
				failures[i] = fmt.Errorf("perceive %s: %w", name, err)
				return nil
			}
			for j := range obs {
				if obs[j].Source == "" {
					obs[j].Source = name
				}
			}
			batches[i] = obs
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.Observation
	for _, b := range batches {
		out = append(out, b...)
	}
	return out, errors.Join(failures...)
}

func (l *Loop) noteObservations(ctx context.Context, observations []domain.Observation) {
	if l.deps.Working == nil {
		return
	}
	expires := l.cfg.Now().Add(recentObservationTTL)
	for _, o := range observations {
		priority := o.Importance
		if priority <= 0 {
			priority = 0.5
		}
		item := &domain.WorkingMemoryItem{
			ContextType: domain.ContextRecentObservation,
			Key:         o.ID.String(),
			Payload: domain.Map(map[string]domain.Value{
				"source":  domain.String(o.Source),
				"content": domain.String(o.Content),
			}),
			Priority:  priority,
			ExpiresAt: &expires,
		}
		if _, err := l.deps.Working.Insert(ctx, l.scope, item); err != nil {
			l.logger.Warn("failed to note observation in working memory", zap.Error(err))
		}
	}
}

// strategicTrigger names why strategic reasoning should run now, or returns
// "" when it should not.
func (l *Loop) strategicTrigger(ctx context.Context, changes []domain.BeliefChange, now time.Time) string {
	l.mu.Lock()
	first := l.status.Cycles == 0
	last := l.lastStrategic
	l.mu.Unlock()
	if first {
		return "first cycle"
	}

	for _, c := range changes {
		if c.Importance >= StrategicImportance && c.Delta() > StrategicDelta {
			return "important belief changed: " + c.Subject + "." + c.Predicate
		}
		for _, p := range strategicPredicates {
			if strings.Contains(strings.ToLower(c.Predicate), p) {
				return "strategic predicate changed: " + c.Subject + "." + c.Predicate
			}
		}
	}

	if len(changes) > 0 {
		if key, ok := l.touchesCommitments(ctx, changes); ok {
			return "commitment belief changed: " + key
		}
	}

	if l.cfg.Schedule != "" && !last.IsZero() {
		next, err := gronx.NextTickAfter(l.cfg.Schedule, last, false)
		if err != nil {
			l.logger.Warn("invalid strategic schedule", zap.String("schedule", l.cfg.Schedule), zap.Error(err))
		} else if !next.After(now) {
			return "schedule"
		}
	}
	return ""
}

// touchesCommitments reports whether a change hits a precondition of a live
// intention or the target of an open goal.
func (l *Loop) touchesCommitments(ctx context.Context, changes []domain.BeliefChange) (string, bool) {
	watched := make(map[domain.BeliefKey]bool)

	live, err := l.deps.Intentions.List(ctx, l.scope, domain.IntentionFilter{
		Statuses: []domain.IntentionStatus{domain.IntentionPlanned, domain.IntentionInProgress, domain.IntentionPaused},
	})
	if err != nil {
		l.logger.Warn("failed to list intentions for strategic check", zap.Error(err))
	}
	for _, in := range live {
		for _, p := range in.Preconditions {
			watched[domain.BeliefKey{Subject: p.Subject, Predicate: p.Predicate}] = true
		}
	}

	goals, err := l.deps.Goals.List(ctx, l.scope, domain.GoalFilter{
		Statuses: []domain.GoalStatus{domain.GoalActive, domain.GoalInProgress, domain.GoalBlocked},
	})
	if err != nil {
		l.logger.Warn("failed to list goals for strategic check", zap.Error(err))
	}
	for _, g := range goals {
		if g.Target.Subject != "" {
			watched[domain.BeliefKey{Subject: g.Target.Subject, Predicate: g.Target.Predicate}] = true
		}
	}

	for _, c := range changes {
		k := domain.BeliefKey{Subject: c.Subject, Predicate: c.Predicate}
		if watched[k] {
			return k.Subject + "." + k.Predicate, true
		}
	}
	return "", false
}

// act fails intentions that overran or lost their preconditions, then runs up
// to IntentionsPerCycle ready intentions one after another.
func (l *Loop) act(ctx context.Context) ([]service.ExecutionResult, error) {
	available := l.exec.Capabilities()
	results, err := l.deps.Intentions.Monitor(ctx, l.scope, l.cfg.Now(), available)
	if err != nil {
		return results, fmt.Errorf("monitor: %w", err)
	}

	for i := 0; i < l.cfg.IntentionsPerCycle; i++ {
		res, err := l.deps.Intentions.ExecuteNext(ctx, l.scope, l.exec)
		if err != nil {
			return results, fmt.Errorf("execute: %w", err)
		}
		if res == nil {
			break
		}
		results = append(results, *res)
		l.noteCurrentTask(ctx, res)
	}
	return results, nil
}

func (l *Loop) noteCurrentTask(ctx context.Context, res *service.ExecutionResult) {
	if l.deps.Working == nil {
		return
	}
	expires := l.cfg.Now().Add(2 * l.cfg.Interval)
	item := &domain.WorkingMemoryItem{
		ContextType: domain.ContextCurrentTask,
		Key:         res.Root.ID.String(),
		Payload: domain.Map(map[string]domain.Value{
			"intention_id": domain.String(res.Intention.ID.String()),
			"description":  domain.String(res.Intention.Description),
			"status":       domain.String(string(res.Intention.Status)),
		}),
		Priority:  currentTaskPriority,
		ExpiresAt: &expires,
	}
	if _, err := l.deps.Working.Insert(ctx, l.scope, item); err != nil {
		l.logger.Warn("failed to note current task", zap.Error(err))
	}
}
