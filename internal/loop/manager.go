package loop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Harshitk-cp/cognicore/internal/capability"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the running loops of every agent in the process.
type Manager struct {
	agents   *service.AgentService
	registry *capability.Registry
	deps     Deps
	cfg      Config
	logger   *zap.Logger

	// Capabilities an agent of a given role cannot start without.
	RoleRequirements map[string][]string

	base   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	loops map[uuid.UUID]*Loop
	// Last status of loops that stopped or failed to start, so errors
	// outlive the loop.
	stopped map[uuid.UUID]Status
}

func NewManager(agents *service.AgentService, registry *capability.Registry, cfg Config, deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		agents:           agents,
		registry:         registry,
		deps:             deps,
		cfg:              cfg,
		logger:           deps.Logger,
		RoleRequirements: map[string][]string{},
		base:             base,
		cancel:           cancel,
		loops:            make(map[uuid.UUID]*Loop),
		stopped:          make(map[uuid.UUID]Status),
	}
}

// Start builds and starts the agent's loop. A missing required capability is
// a configuration error and the loop is not started.
func (m *Manager) Start(ctx context.Context, scope domain.Scope) (Status, error) {
	agent, err := m.agents.GetByID(ctx, scope.AgentID, scope.TenantID)
	if err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loops[agent.ID]; ok {
		select {
		case <-l.Done():
			m.retire(l)
		default:
			return l.Status(), ErrAlreadyRunning
		}
	}

	caps, resolveErr := m.registry.Resolve(*agent)
	var missing []string
	for _, req := range m.RoleRequirements[agent.Role] {
		if _, ok := caps[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		err := fmt.Errorf("%w: role %q needs %v", ErrMissingCapability, agent.Role, missing)
		if resolveErr != nil {
			err = errors.Join(err, resolveErr)
		}
		m.logger.Error("agent cannot start",
			zap.String("agent_id", agent.ID.String()),
			zap.String("tenant_id", agent.TenantID.String()),
			zap.Error(err))
		now := m.cfg.withDefaults().Now()
		st := m.stopped[agent.ID]
		st.AgentID, st.State, st.Running, st.Paused = agent.ID, StateStopped, false, false
		st.HasError, st.LastError, st.LastErrorAt = true, err.Error(), &now
		m.stopped[agent.ID] = st
		return st, err
	}
	if resolveErr != nil {
		m.logger.Warn("some capabilities unavailable",
			zap.String("agent_id", agent.ID.String()),
			zap.Error(resolveErr))
	}

	l := New(domain.ScopeOf(agent), caps, m.cfg, m.deps)
	if err := l.Start(m.base); err != nil {
		return l.Status(), err
	}
	m.loops[agent.ID] = l
	delete(m.stopped, agent.ID)
	return l.Status(), nil
}

// retire moves l out of the running set and keeps its final status. The
// caller holds m.mu.
func (m *Manager) retire(l *Loop) {
	st := l.Status()
	st.State, st.Running, st.Paused = StateStopped, false, false
	m.stopped[st.AgentID] = st
	delete(m.loops, st.AgentID)
}

func (m *Manager) get(agentID uuid.UUID) (*Loop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loops[agentID]
	if !ok {
		return nil, ErrNotRunning
	}
	return l, nil
}

// Stop stops the agent's loop gracefully, forcing it after the stop timeout.
func (m *Manager) Stop(ctx context.Context, agentID uuid.UUID) error {
	l, err := m.get(agentID)
	if err != nil {
		return err
	}
	err = l.Stop(ctx)

	m.mu.Lock()
	if m.loops[agentID] == l {
		m.retire(l)
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) Pause(ctx context.Context, agentID uuid.UUID) error {
	l, err := m.get(agentID)
	if err != nil {
		return err
	}
	return l.Pause(ctx)
}

func (m *Manager) Resume(ctx context.Context, agentID uuid.UUID) error {
	l, err := m.get(agentID)
	if err != nil {
		return err
	}
	return l.Resume(ctx)
}

// Status reports the agent's loop. A stopped agent reports the final status
// of its last loop, including its most recent error.
func (m *Manager) Status(agentID uuid.UUID) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loops[agentID]; ok {
		return l.Status()
	}
	if st, ok := m.stopped[agentID]; ok {
		return st
	}
	return Status{AgentID: agentID, State: StateStopped}
}

// List reports every loop the manager holds, ordered by agent id.
func (m *Manager) List() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.loops))
	for _, l := range m.loops {
		out = append(out, l.Status())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].AgentID.String() < out[j].AgentID.String()
	})
	return out
}

// Shutdown stops every loop concurrently and waits for them.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	loops := make([]*Loop, 0, len(m.loops))
	for _, l := range m.loops {
		loops = append(loops, l)
	}
	m.loops = make(map[uuid.UUID]*Loop)
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		for _, l := range loops {
			st := l.Status()
			st.State, st.Running, st.Paused = StateStopped, false, false
			m.stopped[st.AgentID] = st
		}
		m.mu.Unlock()
	}()

	var wg sync.WaitGroup
	errs := make([]error, len(loops))
	for i, l := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
				errs[i] = err
			}
		}()
	}
	wg.Wait()
	m.cancel()

	m.logger.Info("all loops stopped", zap.Int("count", len(loops)))
	return errors.Join(errs...)
}
