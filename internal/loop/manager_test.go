package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/capability"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, f *fixture) (*Manager, *capability.InboxHub) {
	t.Helper()
	hub := capability.NewInboxHub()
	reg := capability.NewRegistry()
	require.NoError(t, reg.Register(capability.InboxName, hub.Factory()))

	m := NewManager(service.NewAgentService(f.stores.Agents), reg, Config{Interval: time.Hour}, f.deps)
	m.RoleRequirements = map[string][]string{"account_manager": {"inbox", "crm"}}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, hub
}

func (f *fixture) createAgent(t *testing.T, role string, caps ...string) domain.Scope {
	t.Helper()
	a := &domain.Agent{
		TenantID:     f.scope.TenantID,
		ExternalID:   "emp-" + uuid.NewString(),
		Name:         "Dana",
		Role:         role,
		Capabilities: caps,
	}
	require.NoError(t, service.NewAgentService(f.stores.Agents).Create(f.ctx, a))
	return domain.ScopeOf(a)
}

func TestManager_Lifecycle(t *testing.T) {
	f := newFixture(t)
	m, _ := newTestManager(t, f)
	scope := f.createAgent(t, "assistant", "inbox")

	st, err := m.Start(f.ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, []string{"inbox"}, st.Capabilities)

	_, err = m.Start(f.ctx, scope)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return m.Status(scope.AgentID).Cycles >= 1 }, 2*time.Second, 5*time.Millisecond)
	require.Len(t, m.List(), 1)

	require.NoError(t, m.Pause(f.ctx, scope.AgentID))
	assert.True(t, m.Status(scope.AgentID).Paused)
	require.NoError(t, m.Resume(f.ctx, scope.AgentID))
	assert.True(t, m.Status(scope.AgentID).Running)

	require.NoError(t, m.Stop(f.ctx, scope.AgentID))
	assert.Equal(t, StateStopped, m.Status(scope.AgentID).State)
	assert.Empty(t, m.List())
	assert.ErrorIs(t, m.Stop(f.ctx, scope.AgentID), ErrNotRunning)
	assert.ErrorIs(t, m.Pause(f.ctx, scope.AgentID), ErrNotRunning)

	// A stopped agent can be started again.
	_, err = m.Start(f.ctx, scope)
	require.NoError(t, err)
}

func TestManager_StartRequiresRoleCapabilities(t *testing.T) {
	f := newFixture(t)
	m, _ := newTestManager(t, f)
	scope := f.createAgent(t, "account_manager", "inbox", "crm")

	st, err := m.Start(f.ctx, scope)
	assert.ErrorIs(t, err, ErrMissingCapability)
	assert.ErrorIs(t, err, capability.ErrUnknownCapability)
	assert.Equal(t, StateStopped, st.State)
	assert.Empty(t, m.List())
}

func TestManager_StoppedStatusKeepsLastError(t *testing.T) {
	f := newFixture(t)
	m, _ := newTestManager(t, f)
	require.NoError(t, m.registry.Register("crm", func(domain.Agent) (domain.Capability, error) {
		return &stubCapability{
			name: "crm",
			perceive: func(context.Context) ([]domain.Observation, error) {
				return nil, errors.New("crm session expired")
			},
		}, nil
	}))
	scope := f.createAgent(t, "assistant", "inbox", "crm")

	_, err := m.Start(f.ctx, scope)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return m.Status(scope.AgentID).HasError }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop(f.ctx, scope.AgentID))
	st := m.Status(scope.AgentID)
	assert.Equal(t, StateStopped, st.State)
	assert.False(t, st.Running)
	assert.True(t, st.HasError)
	assert.Contains(t, st.LastError, "crm session expired")
	require.NotNil(t, st.LastErrorAt)
	assert.GreaterOrEqual(t, st.Cycles, 1)
	assert.Empty(t, m.List())

	// A fresh start begins a fresh history.
	st, err = m.Start(f.ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	assert.Zero(t, st.Cycles)
}

func TestManager_FailedStartIsReportedByStatus(t *testing.T) {
	f := newFixture(t)
	m, _ := newTestManager(t, f)
	scope := f.createAgent(t, "account_manager", "inbox")

	_, err := m.Start(f.ctx, scope)
	require.ErrorIs(t, err, ErrMissingCapability)

	st := m.Status(scope.AgentID)
	assert.Equal(t, StateStopped, st.State)
	assert.True(t, st.HasError)
	assert.Contains(t, st.LastError, "crm")
}

func TestManager_StartUnknownAgent(t *testing.T) {
	f := newFixture(t)
	m, _ := newTestManager(t, f)

	_, err := m.Start(f.ctx, domain.Scope{TenantID: f.scope.TenantID, AgentID: uuid.New()})
	assert.ErrorIs(t, err, service.ErrAgentNotFound)
}

func TestManager_InboxFeedsRunningLoop(t *testing.T) {
	f := newFixture(t)
	m, hub := newTestManager(t, f)
	scope := f.createAgent(t, "assistant", "inbox")

	hub.For(scope.AgentID).Push(domain.Observation{
		Kind:    domain.SourceToldByHuman,
		Content: "Acme renewal is at risk",
		Propositions: []domain.Proposition{{
			Subject: "acme", Predicate: "renewal_risk", Object: domain.String("high"),
		}},
	})
	_, err := m.Start(f.ctx, scope)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		b, err := f.deps.Beliefs.Get(f.ctx, scope, "acme", "renewal_risk")
		return err == nil && b.Object.Equal(domain.String("high"))
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.For(scope.AgentID).Pending())
}

func TestManager_ShutdownStopsEverything(t *testing.T) {
	f := newFixture(t)
	m, _ := newTestManager(t, f)
	a := f.createAgent(t, "assistant", "inbox")
	b := f.createAgent(t, "assistant", "inbox")

	_, err := m.Start(f.ctx, a)
	require.NoError(t, err)
	_, err = m.Start(f.ctx, b)
	require.NoError(t, err)
	require.Len(t, m.List(), 2)

	require.NoError(t, m.Shutdown(f.ctx))
	assert.Empty(t, m.List())
	assert.Equal(t, StateStopped, m.Status(a.AgentID).State)
}
