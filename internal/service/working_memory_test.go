package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWorkingMemory(h *harness, capacity int) *WorkingMemory {
	wm := NewWorkingMemory(h.stores.WorkingMemory, capacity, zap.NewNop())
	wm.Now = func() time.Time { return h.now }
	return wm
}

func TestWorkingMemory_CapacityKeepsHighestPriority(t *testing.T) {
	h := newHarness(t)
	wm := newTestWorkingMemory(h, 5)

	for p := 0; p < 10; p++ {
		_, err := wm.Insert(h.ctx, h.scope, &domain.WorkingMemoryItem{
			ContextType: domain.ContextScratchpad,
			Payload:     domain.Number(float64(p)),
			Priority:    float64(p),
		})
		require.NoError(t, err)
		h.advance(time.Second)
	}

	items, err := wm.List(h.ctx, h.scope, "")
	require.NoError(t, err)
	require.Len(t, items, 5)
	var got []float64
	for _, it := range items {
		got = append(got, it.Priority)
	}
	assert.ElementsMatch(t, []float64{5, 6, 7, 8, 9}, got)
}

func TestWorkingMemory_TiesEvictOldestFirst(t *testing.T) {
	h := newHarness(t)
	wm := newTestWorkingMemory(h, 2)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		item := &domain.WorkingMemoryItem{Priority: 1, Payload: domain.Number(float64(i))}
		_, err := wm.Insert(h.ctx, h.scope, item)
		require.NoError(t, err)
		ids = append(ids, item.ID)
		h.advance(time.Second)
	}

	items, err := wm.List(h.ctx, h.scope, domain.ContextScratchpad)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NotEqual(t, ids[0], it.ID)
	}
}

func TestWorkingMemory_ExpiryAndSweep(t *testing.T) {
	h := newHarness(t)
	wm := newTestWorkingMemory(h, 10)

	soon := h.now.Add(time.Minute)
	_, err := wm.Insert(h.ctx, h.scope, &domain.WorkingMemoryItem{
		ContextType: domain.ContextRecentObservation, Payload: domain.String("pricing page visit"), ExpiresAt: &soon,
	})
	require.NoError(t, err)
	_, err = wm.Insert(h.ctx, h.scope, &domain.WorkingMemoryItem{
		ContextType: domain.ContextCurrentTask, Payload: domain.String("draft proposal"),
	})
	require.NoError(t, err)

	items, err := wm.List(h.ctx, h.scope, domain.ContextRecentObservation)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	h.advance(2 * time.Minute)
	items, err = wm.List(h.ctx, h.scope, domain.ContextRecentObservation)
	require.NoError(t, err)
	assert.Empty(t, items, "expired items are never returned")

	n, err := wm.Sweep(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	items, err = wm.List(h.ctx, h.scope, "")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWorkingMemory_ScopedPerAgent(t *testing.T) {
	h := newHarness(t)
	wm := newTestWorkingMemory(h, 1)
	other := domain.Scope{TenantID: h.scope.TenantID, AgentID: uuid.New()}

	_, err := wm.Insert(h.ctx, h.scope, &domain.WorkingMemoryItem{Priority: 5, Payload: domain.String("mine")})
	require.NoError(t, err)
	_, err = wm.Insert(h.ctx, other, &domain.WorkingMemoryItem{Priority: 1, Payload: domain.String("theirs")})
	require.NoError(t, err)

	mine, err := wm.List(h.ctx, h.scope, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Payload.Str)

	require.NoError(t, wm.Clear(h.ctx, h.scope))
	theirs, err := wm.List(h.ctx, other, "")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestWorkingMemory_Validation(t *testing.T) {
	h := newHarness(t)
	wm := newTestWorkingMemory(h, 3)

	_, err := wm.Insert(h.ctx, h.scope, &domain.WorkingMemoryItem{ContextType: "daydream"})
	assert.ErrorIs(t, err, ErrInvalidContextType)

	err = wm.Remove(h.ctx, h.scope, uuid.New())
	assert.ErrorIs(t, err, ErrWorkingMemoryItemMissing)
}
