// Package loop runs the proactive perceive, believe, strategize, act and learn
// cycle for each agent, and exposes the control interface over those loops.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/Harshitk-cp/cognicore/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning    = errors.New("loop already running")
	ErrNotRunning        = errors.New("loop not running")
	ErrMissingCapability = errors.New("required capability not available")
)

// PanicError is a recovered panic from a phase or a capability call.
type PanicError struct {
	Phase string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Phase, e.Value)
}

type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Status is a snapshot of one agent's loop.
type Status struct {
	AgentID      uuid.UUID  `json:"agent_id"`
	State        State      `json:"state"`
	Running      bool       `json:"running"`
	Paused       bool       `json:"paused"`
	HasError     bool       `json:"has_error"`
	LastError    string     `json:"last_error,omitempty"`
	LastErrorAt  *time.Time `json:"last_error_at,omitempty"`
	Cycles       int        `json:"cycles"`
	FailedPhases int        `json:"failed_phases"`
	LastCycleAt  *time.Time `json:"last_cycle_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	Capabilities []string   `json:"capabilities,omitempty"`
}

const (
	DefaultInterval           = 5 * time.Minute
	DefaultErrorBackoff       = time.Minute
	DefaultPerceiveTimeout    = 30 * time.Second
	DefaultPhaseTimeout       = 2 * time.Minute
	DefaultStopTimeout        = 30 * time.Second
	DefaultIntentionsPerCycle = 1
	DefaultStrategicSchedule  = "0 */6 * * *"
)

type Config struct {
	Interval           time.Duration
	ErrorBackoff       time.Duration
	PerceiveTimeout    time.Duration
	// PhaseTimeout bounds every phase, and with it each store call the phase makes.
	PhaseTimeout       time.Duration
	StopTimeout        time.Duration
	IntentionsPerCycle int
	// Cron expression for scheduled strategic reasoning. Empty disables it.
	Schedule string
	Now      func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Interval:           DefaultInterval,
		ErrorBackoff:       DefaultErrorBackoff,
		PerceiveTimeout:    DefaultPerceiveTimeout,
		PhaseTimeout:       DefaultPhaseTimeout,
		StopTimeout:        DefaultStopTimeout,
		IntentionsPerCycle: DefaultIntentionsPerCycle,
		Schedule:           DefaultStrategicSchedule,
		Now:                time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = d.ErrorBackoff
	}
	if c.PerceiveTimeout <= 0 {
		c.PerceiveTimeout = d.PerceiveTimeout
	}
	if c.PhaseTimeout <= 0 {
		c.PhaseTimeout = d.PhaseTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = d.StopTimeout
	}
	if c.IntentionsPerCycle <= 0 {
		c.IntentionsPerCycle = d.IntentionsPerCycle
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Deps are the cognitive services shared by every loop.
type Deps struct {
	Beliefs    *service.BeliefService
	Goals      *service.GoalService
	Intentions *service.IntentionEngine
	Episodes   *service.EpisodicMemory
	Procedures *service.ProceduralMemory
	Working    *service.WorkingMemory
	Recorder   telemetry.Recorder
	Logger     *zap.Logger
}

// Loop drives one agent. A Loop is started once; after it stops a new Loop
// must be built.
type Loop struct {
	scope      domain.Scope
	exec       *capabilitySet
	cfg        Config
	deps       Deps
	logger     *zap.Logger
	strategist *Strategist

	mu            sync.Mutex
	status        Status
	lastStrategic time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wakeCh   chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
}

func New(scope domain.Scope, caps map[string]domain.Capability, cfg Config, deps Deps) *Loop {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Recorder == nil {
		deps.Recorder = telemetry.Nop{}
	}
	cfg = cfg.withDefaults()
	exec := newCapabilitySet(caps)
	return &Loop{
		scope:      scope,
		exec:       exec,
		cfg:        cfg,
		deps:       deps,
		logger:     deps.Logger.With(zap.String("agent_id", scope.AgentID.String())),
		strategist: NewStrategist(deps.Goals, deps.Intentions, deps.Logger),
		status: Status{
			AgentID:      scope.AgentID,
			State:        StateStopped,
			Capabilities: exec.Capabilities(),
		},
		stopCh: make(chan struct{}),
		wakeCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start runs the loop in its own goroutine. ctx bounds the whole run; Stop
// is the normal way to end it.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.status.State != StateStopped || l.cancel != nil {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	now := l.cfg.Now()
	l.status.State = StateRunning
	l.status.StartedAt = &now
	l.mu.Unlock()

	l.emitState(ctx, StateStopped, StateRunning)
	l.logger.Info("loop started", zap.Strings("capabilities", l.exec.Capabilities()))

	go l.run(runCtx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	defer func() {
		l.setState(context.WithoutCancel(ctx), StateStopped)
		l.logger.Info("loop stopped")
	}()

	for {
		if l.stopping(ctx) {
			return
		}

		if l.State() == StatePaused {
			select {
			case <-l.wakeCh:
			case <-l.stopCh:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := l.cfg.Interval
		if err := l.RunCycle(ctx); err != nil {
			wait = l.cfg.ErrorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-l.wakeCh:
			timer.Stop()
		case <-l.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (l *Loop) stopping(ctx context.Context) bool {
	select {
	case <-l.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Stop asks the loop to finish its current phase and exit. If it has not
// exited within the stop timeout, or ctx ends first, the run is cancelled.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	started := l.cancel != nil
	l.mu.Unlock()
	if !started {
		return ErrNotRunning
	}

	l.stopOnce.Do(func() { close(l.stopCh) })

	timer := time.NewTimer(l.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-l.done:
		return nil
	case <-timer.C:
		l.logger.Warn("loop did not stop in time, cancelling", zap.Duration("timeout", l.cfg.StopTimeout))
	case <-ctx.Done():
	}
	l.cancel()
	<-l.done
	return nil
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) Pause(ctx context.Context) error {
	l.mu.Lock()
	from := l.status.State
	if from == StateStopped {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.status.State = StatePaused
	l.mu.Unlock()
	if from != StatePaused {
		l.emitState(ctx, from, StatePaused)
	}
	return nil
}

func (l *Loop) Resume(ctx context.Context) error {
	l.mu.Lock()
	from := l.status.State
	if from == StateStopped {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.status.State = StateRunning
	l.mu.Unlock()
	if from == StatePaused {
		l.emitState(ctx, from, StateRunning)
		l.wake()
	}
	return nil
}

func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status.State
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.status
	s.Running = s.State == StateRunning
	s.Paused = s.State == StatePaused
	s.Capabilities = append([]string(nil), s.Capabilities...)
	return s
}

func (l *Loop) setState(ctx context.Context, to State) {
	l.mu.Lock()
	from := l.status.State
	l.status.State = to
	l.mu.Unlock()
	if from != to {
		l.emitState(ctx, from, to)
	}
}

func (l *Loop) emitState(ctx context.Context, from, to State) {
	l.deps.Recorder.Record(ctx, telemetry.NewEvent(ctx, l.scope, domain.EventLoopState, &l.scope.AgentID, string(from), string(to), nil))
}

// phase runs fn as one contained step of a cycle under PhaseTimeout. Errors
// and panics are logged, counted and returned; they never escape as panics.
func (l *Loop) phase(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "loop."+name,
		trace.WithAttributes(attribute.String("agent_id", l.scope.AgentID.String())))
	defer span.End()

	phaseCtx, cancel := context.WithTimeout(ctx, l.cfg.PhaseTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Phase: name, Value: r, Stack: debug.Stack()}
		}
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.phaseFailed(ctx, name, err)
	}()
	if err = fn(phaseCtx); err == nil && errors.Is(phaseCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("phase exceeded %s: %w", l.cfg.PhaseTimeout, context.DeadlineExceeded)
	}
	return err
}

func (l *Loop) phaseFailed(ctx context.Context, name string, err error) {
	var pe *PanicError
	if errors.As(err, &pe) {
		l.logger.Error("phase panicked", zap.String("phase", name), zap.Error(err), zap.ByteString("stack", pe.Stack))
	} else {
		l.logger.Warn("phase failed", zap.String("phase", name), zap.Error(err))
	}

	now := l.cfg.Now()
	l.mu.Lock()
	l.status.FailedPhases++
	l.status.LastError = fmt.Sprintf("%s: %v", name, err)
	l.status.LastErrorAt = &now
	l.mu.Unlock()

	l.deps.Recorder.Record(ctx, telemetry.NewEvent(ctx, l.scope, domain.EventPhaseFailed, &l.scope.AgentID, "", name, map[string]any{
		"error": err.Error(),
	}))
}

// capabilitySet routes actions to the agent's capabilities. Calls that panic
// or ignore their context still return to the caller.
type capabilitySet struct {
	caps  map[string]domain.Capability
	names []string
}

func newCapabilitySet(caps map[string]domain.Capability) *capabilitySet {
	names := make([]string, 0, len(caps))
	for n := range caps {
		names = append(names, n)
	}
	sort.Strings(names)
	return &capabilitySet{caps: caps, names: names}
}

func (c *capabilitySet) Capabilities() []string { return c.names }

func (c *capabilitySet) Execute(ctx context.Context, action domain.Action) (*domain.ActionResult, error) {
	cp, ok := c.caps[action.Capability]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingCapability, action.Capability)
	}
	return guarded(ctx, "execute:"+action.Capability, func(ctx context.Context) (*domain.ActionResult, error) {
		return cp.Execute(ctx, action)
	})
}

// guarded calls fn in its own goroutine so that a panic becomes a
// PanicError and a call that ignores ctx is abandoned when ctx ends.
func guarded[T any](ctx context.Context, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: &PanicError{Phase: name, Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
