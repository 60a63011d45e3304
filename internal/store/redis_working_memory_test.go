package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisWorkingMemoryKeys(t *testing.T) {
	tenant := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	agent := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	sk := scopeKey(domain.Scope{TenantID: tenant, AgentID: agent})

	assert.Equal(t, tenant.String()+":"+agent.String(), sk)
	assert.Equal(t, "cognicore:wm:"+sk+":items", itemsKey(sk))
	assert.Equal(t, "cognicore:wm:"+sk+":expiry", expiryKey(sk))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("http://not-redis")
	assert.Error(t, err)
}

// Runs against a real server when REDIS_TEST_URL is set.
func TestRedisWorkingMemoryStore(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	rdb, err := NewRedisClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	s := NewRedisWorkingMemoryStore(rdb)
	scope := domain.Scope{TenantID: uuid.New(), AgentID: uuid.New()}
	t.Cleanup(func() { _ = s.Clear(context.Background(), scope) })

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	item := func(ct domain.ContextType, priority float64, expires *time.Time) *domain.WorkingMemoryItem {
		return &domain.WorkingMemoryItem{
			TenantID: scope.TenantID, AgentID: scope.AgentID,
			ContextType: ct, Payload: domain.String("x"), Priority: priority, ExpiresAt: expires,
		}
	}
	stale := item(domain.ContextScratchpad, 0.9, &past)
	fresh := item(domain.ContextScratchpad, 0.2, &future)
	task := item(domain.ContextCurrentTask, 0.7, nil)
	for _, it := range []*domain.WorkingMemoryItem{stale, fresh, task} {
		require.NoError(t, s.Insert(ctx, it))
	}

	items, err := s.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, stale.ID, items[0].ID, "ordered by priority")
	assert.Equal(t, fresh.ID, items[2].ID)

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	items, err = s.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, task.ID, items[0].ID)

	require.NoError(t, s.Delete(ctx, scope, fresh.ID))
	assert.ErrorIs(t, s.Delete(ctx, scope, fresh.ID), ErrNotFound)

	require.NoError(t, s.Clear(ctx, scope))
	items, err = s.List(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, items)
}
