package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultWorkingMemoryCapacity = 20

var (
	ErrInvalidContextType       = errors.New("invalid context type")
	ErrWorkingMemoryItemMissing = errors.New("working memory item not found")
)

// WorkingMemory is the small, short-lived context of an agent's current
// activity. Each agent holds at most capacity items; inserting beyond that
// evicts the lowest-priority items, oldest first among equals.
type WorkingMemory struct {
	store    domain.WorkingMemoryStore
	capacity int
	logger   *zap.Logger

	// Insert and its eviction run under a per-agent lock.
	mu    sync.Mutex
	locks map[domain.Scope]*sync.Mutex

	Now func() time.Time
}

func NewWorkingMemory(ws domain.WorkingMemoryStore, capacity int, logger *zap.Logger) *WorkingMemory {
	if capacity <= 0 {
		capacity = DefaultWorkingMemoryCapacity
	}
	return &WorkingMemory{
		store:    ws,
		capacity: capacity,
		logger:   logger,
		locks:    make(map[domain.Scope]*sync.Mutex),
		Now:      time.Now,
	}
}

func (s *WorkingMemory) Capacity() int {
	return s.capacity
}

func (s *WorkingMemory) lockFor(scope domain.Scope) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		s.locks[scope] = l
	}
	return l
}

// Insert adds item and returns the ids of the items evicted to stay within
// capacity. The inserted item itself may be evicted when its priority is the
// lowest.
func (s *WorkingMemory) Insert(ctx context.Context, scope domain.Scope, item *domain.WorkingMemoryItem) ([]uuid.UUID, error) {
	if item.ContextType == "" {
		item.ContextType = domain.ContextScratchpad
	}
	if !domain.ValidContextType(string(item.ContextType)) {
		return nil, ErrInvalidContextType
	}

	l := s.lockFor(scope)
	l.Lock()
	defer l.Unlock()

	now := s.Now()
	item.TenantID, item.AgentID = scope.TenantID, scope.AgentID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if err := s.store.Insert(ctx, item); err != nil {
		return nil, err
	}

	items, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	var live []domain.WorkingMemoryItem
	var evicted []uuid.UUID
	for _, it := range items {
		if it.Expired(now) {
			if err := s.store.Delete(ctx, scope, it.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			continue
		}
		live = append(live, it)
	}
	if len(live) <= s.capacity {
		return nil, nil
	}

	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Priority != live[j].Priority {
			return live[i].Priority < live[j].Priority
		}
		return live[i].CreatedAt.Before(live[j].CreatedAt)
	})
	for _, it := range live[:len(live)-s.capacity] {
		if err := s.store.Delete(ctx, scope, it.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return evicted, err
		}
		evicted = append(evicted, it.ID)
	}

	s.logger.Debug("working memory evicted items",
		zap.String("agent_id", scope.AgentID.String()),
		zap.Int("count", len(evicted)))
	return evicted, nil
}

// List returns unexpired items, highest priority first. An empty context
// type returns every item.
func (s *WorkingMemory) List(ctx context.Context, scope domain.Scope, ct domain.ContextType) ([]domain.WorkingMemoryItem, error) {
	items, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	out := make([]domain.WorkingMemoryItem, 0, len(items))
	for _, it := range items {
		if it.Expired(now) {
			continue
		}
		if ct != "" && it.ContextType != ct {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *WorkingMemory) Remove(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	if err := s.store.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrWorkingMemoryItemMissing
		}
		return err
	}
	return nil
}

func (s *WorkingMemory) Clear(ctx context.Context, scope domain.Scope) error {
	return s.store.Clear(ctx, scope)
}

// Sweep deletes expired items of every agent, regardless of capacity.
func (s *WorkingMemory) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.Now())
}
