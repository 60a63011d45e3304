package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsolidationWorker_RunOnceCoversEveryAgent(t *testing.T) {
	h := newHarness(t)

	agent := &domain.Agent{TenantID: h.scope.TenantID, ExternalID: "sdr-1", Name: "SDR"}
	require.NoError(t, h.stores.Agents.Create(h.ctx, agent))
	scope := domain.ScopeOf(agent)

	for i := 0; i < 2; i++ {
		_, err := h.episodes.Record(h.ctx, scope, domain.EpisodeInput{Description: "acme asked about sso"})
		require.NoError(t, err)
	}

	w := NewConsolidationWorker(h.episodes, h.stores.Agents, zap.NewNop())
	res := w.RunOnce(h.ctx)
	assert.Equal(t, 1, res.EpisodesMerged)
}

func TestWorkingMemoryExpirer_StartStop(t *testing.T) {
	h := newHarness(t)
	wm := newTestWorkingMemory(h, 5)

	past := h.now.Add(-time.Minute)
	_, err := wm.Insert(h.ctx, h.scope, &domain.WorkingMemoryItem{Payload: domain.String("stale"), ExpiresAt: &past})
	require.NoError(t, err)
	// Insert already drops items that are expired on arrival.
	items, err := wm.List(h.ctx, h.scope, "")
	require.NoError(t, err)
	assert.Empty(t, items)

	soon := h.now.Add(time.Second)
	_, err = wm.Insert(h.ctx, h.scope, &domain.WorkingMemoryItem{Payload: domain.String("fleeting"), ExpiresAt: &soon})
	require.NoError(t, err)
	h.advance(time.Minute)

	e := NewWorkingMemoryExpirer(wm, zap.NewNop())
	e.SetInterval(10 * time.Millisecond)
	e.Start()
	assert.Eventually(t, func() bool {
		items, err := h.stores.WorkingMemory.List(h.ctx, h.scope)
		return err == nil && len(items) == 0
	}, time.Second, 10*time.Millisecond)
	e.Stop()
}
