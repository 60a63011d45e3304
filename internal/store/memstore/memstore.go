// Package memstore holds in-process implementations of every store. It backs
// STORE_DRIVER=memory and the service and loop tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/embedding"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/google/uuid"
)

// Stores bundles one instance of each store.
type Stores struct {
	Tenants       *TenantStore
	Agents        *AgentStore
	Beliefs       *BeliefStore
	Goals         *GoalStore
	Intentions    *IntentionStore
	Episodes      *EpisodeStore
	Facts         *FactStore
	Procedures    *ProcedureStore
	WorkingMemory *WorkingMemoryStore
	Events        *EventStore
}

func New() *Stores {
	return &Stores{
		Tenants:       NewTenantStore(),
		Agents:        NewAgentStore(),
		Beliefs:       NewBeliefStore(),
		Goals:         NewGoalStore(),
		Intentions:    NewIntentionStore(),
		Episodes:      NewEpisodeStore(),
		Facts:         NewFactStore(),
		Procedures:    NewProcedureStore(),
		WorkingMemory: NewWorkingMemoryStore(),
		Events:        NewEventStore(),
	}
}

func owned(scope domain.Scope, tenantID, agentID uuid.UUID) bool {
	return scope.TenantID == tenantID && scope.AgentID == agentID
}

func stamp(id *uuid.UUID, created, updated *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// Tenants

type TenantStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]domain.Tenant
}

func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[uuid.UUID]domain.Tenant)}
}

func (s *TenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if existing.APIKeyHash == t.APIKeyHash {
			return store.ErrConflict
		}
	}
	stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	s.tenants[t.ID] = *t
	return nil
}

func (s *TenantStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.APIKeyHash == apiKeyHash {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

// Agents

type AgentStore struct {
	mu     sync.RWMutex
	agents map[uuid.UUID]domain.Agent
}

func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[uuid.UUID]domain.Agent)}
}

func (s *AgentStore) Create(ctx context.Context, a *domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.agents {
		if existing.TenantID == a.TenantID && existing.ExternalID == a.ExternalID {
			return store.ErrConflict
		}
	}
	stamp(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	s.agents[a.ID] = *a
	return nil
}

func (s *AgentStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok || a.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *AgentStore) GetByExternalID(ctx context.Context, externalID string, tenantID uuid.UUID) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.agents {
		if a.ExternalID == externalID && a.TenantID == tenantID {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *AgentStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Agent
	for _, a := range s.agents {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *AgentStore) ListScopes(ctx context.Context) ([]domain.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Scope, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, domain.Scope{TenantID: a.TenantID, AgentID: a.ID})
	}
	return out, nil
}

// Beliefs

// BeliefStore does not enforce live-belief uniqueness; the belief service
// owns that invariant and repairs violations in its conflict pass.
type BeliefStore struct {
	mu      sync.RWMutex
	beliefs map[uuid.UUID]domain.Belief
}

func NewBeliefStore() *BeliefStore {
	return &BeliefStore{beliefs: make(map[uuid.UUID]domain.Belief)}
}

func (s *BeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	s.beliefs[b.ID] = *b
	return nil
}

func (s *BeliefStore) Update(ctx context.Context, b *domain.Belief) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.beliefs[b.ID]
	if !ok || existing.TenantID != b.TenantID || existing.AgentID != b.AgentID {
		return store.ErrNotFound
	}
	b.UpdatedAt = time.Now()
	s.beliefs[b.ID] = *b
	return nil
}

func (s *BeliefStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beliefs[id]
	if !ok || !owned(scope, b.TenantID, b.AgentID) {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *BeliefStore) GetLive(ctx context.Context, scope domain.Scope, subject, predicate string) ([]domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Belief
	for _, b := range s.beliefs {
		if owned(scope, b.TenantID, b.AgentID) && !b.Archived && b.Subject == subject && b.Predicate == predicate {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func (s *BeliefStore) Archive(ctx context.Context, scope domain.Scope, id uuid.UUID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beliefs[id]
	if !ok || !owned(scope, b.TenantID, b.AgentID) || b.Archived {
		return store.ErrNotFound
	}
	b.Archived = true
	b.ArchivedReason = reason
	b.ArchivedAt = &at
	b.UpdatedAt = time.Now()
	s.beliefs[id] = b
	return nil
}

func (s *BeliefStore) List(ctx context.Context, scope domain.Scope, f domain.BeliefFilter) ([]domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Belief
	for _, b := range s.beliefs {
		if !owned(scope, b.TenantID, b.AgentID) {
			continue
		}
		if b.Archived && !f.IncludeArchived {
			continue
		}
		if f.Subject != "" && b.Subject != f.Subject {
			continue
		}
		if f.Predicate != "" && b.Predicate != f.Predicate {
			continue
		}
		if f.Source != "" && b.Source != f.Source {
			continue
		}
		if f.ObjectKind != "" && b.Object.Kind != f.ObjectKind {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].LastUpdatedAt.After(out[j].LastUpdatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *BeliefStore) About(ctx context.Context, scope domain.Scope, entity string) ([]domain.Belief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Belief
	for _, b := range s.beliefs {
		if !owned(scope, b.TenantID, b.AgentID) || b.Archived {
			continue
		}
		if b.Subject == entity || (b.Object.Kind == domain.ValueString && b.Object.Str == entity) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// Goals

type GoalStore struct {
	mu    sync.RWMutex
	goals map[uuid.UUID]domain.Goal
}

func NewGoalStore() *GoalStore {
	return &GoalStore{goals: make(map[uuid.UUID]domain.Goal)}
}

func (s *GoalStore) Create(ctx context.Context, g *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	s.goals[g.ID] = *g
	return nil
}

func (s *GoalStore) Update(ctx context.Context, g *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.goals[g.ID]
	if !ok || existing.TenantID != g.TenantID || existing.AgentID != g.AgentID {
		return store.ErrNotFound
	}
	g.UpdatedAt = time.Now()
	s.goals[g.ID] = *g
	return nil
}

func (s *GoalStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || !owned(scope, g.TenantID, g.AgentID) {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *GoalStore) List(ctx context.Context, scope domain.Scope, f domain.GoalFilter) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Goal
	for _, g := range s.goals {
		if !owned(scope, g.TenantID, g.AgentID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsGoalStatus(f.Statuses, g.Status) {
			continue
		}
		if f.Type != "" && g.Type != f.Type {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsGoalStatus(list []domain.GoalStatus, s domain.GoalStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Intentions

type IntentionStore struct {
	mu         sync.RWMutex
	intentions map[uuid.UUID]domain.Intention
}

func NewIntentionStore() *IntentionStore {
	return &IntentionStore{intentions: make(map[uuid.UUID]domain.Intention)}
}

func (s *IntentionStore) Create(ctx context.Context, i *domain.Intention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&i.ID, &i.CreatedAt, &i.UpdatedAt)
	s.intentions[i.ID] = *i
	return nil
}

func (s *IntentionStore) Update(ctx context.Context, i *domain.Intention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.intentions[i.ID]
	if !ok || existing.TenantID != i.TenantID || existing.AgentID != i.AgentID {
		return store.ErrNotFound
	}
	i.UpdatedAt = time.Now()
	s.intentions[i.ID] = *i
	return nil
}

func (s *IntentionStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Intention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.intentions[id]
	if !ok || !owned(scope, i.TenantID, i.AgentID) {
		return nil, store.ErrNotFound
	}
	return &i, nil
}

func (s *IntentionStore) List(ctx context.Context, scope domain.Scope, f domain.IntentionFilter) ([]domain.Intention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Intention
	for _, i := range s.intentions {
		if !owned(scope, i.TenantID, i.AgentID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsIntentionStatus(f.Statuses, i.Status) {
			continue
		}
		if f.GoalID != nil && (i.GoalID == nil || *i.GoalID != *f.GoalID) {
			continue
		}
		if f.ParentID != nil && (i.ParentID == nil || *i.ParentID != *f.ParentID) {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Priority != out[b].Priority {
			return out[a].Priority > out[b].Priority
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsIntentionStatus(list []domain.IntentionStatus, s domain.IntentionStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// Episodes

type EpisodeStore struct {
	mu       sync.RWMutex
	episodes map[uuid.UUID]domain.Episode
}

func NewEpisodeStore() *EpisodeStore {
	return &EpisodeStore{episodes: make(map[uuid.UUID]domain.Episode)}
}

func (s *EpisodeStore) Create(ctx context.Context, e *domain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&e.ID, &e.CreatedAt, nil)
	s.episodes[e.ID] = *e
	return nil
}

func (s *EpisodeStore) Update(ctx context.Context, e *domain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.episodes[e.ID]
	if !ok || existing.TenantID != e.TenantID || existing.AgentID != e.AgentID {
		return store.ErrNotFound
	}
	if len(e.Embedding) == 0 {
		e.Embedding = existing.Embedding
	}
	s.episodes[e.ID] = *e
	return nil
}

func (s *EpisodeStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.episodes[id]
	if !ok || !owned(scope, e.TenantID, e.AgentID) {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *EpisodeStore) FindSimilar(ctx context.Context, scope domain.Scope, vec []float32, minSimilarity float64, limit int) ([]domain.EpisodeWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.EpisodeWithScore
	for _, e := range s.episodes {
		if !owned(scope, e.TenantID, e.AgentID) || e.Archived || len(e.Embedding) == 0 {
			continue
		}
		sim := embedding.Cosine(vec, e.Embedding)
		if sim < minSimilarity {
			continue
		}
		out = append(out, domain.EpisodeWithScore{Episode: e, Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *EpisodeStore) MarkRecalled(ctx context.Context, scope domain.Scope, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		e, ok := s.episodes[id]
		if !ok || !owned(scope, e.TenantID, e.AgentID) {
			continue
		}
		e.RecallCount++
		t := at
		e.LastRecalledAt = &t
		s.episodes[id] = e
	}
	return nil
}

func (s *EpisodeStore) ListActive(ctx context.Context, scope domain.Scope) ([]domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Episode
	for _, e := range s.episodes {
		if owned(scope, e.TenantID, e.AgentID) && !e.Archived {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// Facts

type FactStore struct {
	mu    sync.RWMutex
	facts map[uuid.UUID]domain.Fact
}

func NewFactStore() *FactStore {
	return &FactStore{facts: make(map[uuid.UUID]domain.Fact)}
}

func (s *FactStore) Create(ctx context.Context, f *domain.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.facts {
		if existing.AgentID == f.AgentID && existing.Subject == f.Subject && existing.Predicate == f.Predicate {
			return store.ErrConflict
		}
	}
	stamp(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	s.facts[f.ID] = *f
	return nil
}

func (s *FactStore) Update(ctx context.Context, f *domain.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.facts[f.ID]
	if !ok || existing.TenantID != f.TenantID || existing.AgentID != f.AgentID {
		return store.ErrNotFound
	}
	if len(f.Embedding) == 0 {
		f.Embedding = existing.Embedding
	}
	f.UpdatedAt = time.Now()
	s.facts[f.ID] = *f
	return nil
}

func (s *FactStore) GetByKey(ctx context.Context, scope domain.Scope, subject, predicate string) (*domain.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.facts {
		if owned(scope, f.TenantID, f.AgentID) && f.Subject == subject && f.Predicate == predicate {
			return &f, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *FactStore) List(ctx context.Context, scope domain.Scope, filter domain.FactFilter) ([]domain.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Fact
	for _, f := range s.facts {
		if !owned(scope, f.TenantID, f.AgentID) {
			continue
		}
		if filter.Subject != "" && f.Subject != filter.Subject {
			continue
		}
		if filter.Predicate != "" && f.Predicate != filter.Predicate {
			continue
		}
		if filter.FactType != "" && f.FactType != filter.FactType {
			continue
		}
		if f.Confidence < filter.MinConfidence {
			continue
		}
		if filter.VerifiedOnly && !f.Verified {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *FactStore) FindSimilar(ctx context.Context, scope domain.Scope, vec []float32, limit int) ([]domain.FactWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.FactWithScore
	for _, f := range s.facts {
		if !owned(scope, f.TenantID, f.AgentID) || len(f.Embedding) == 0 {
			continue
		}
		out = append(out, domain.FactWithScore{Fact: f, Similarity: embedding.Cosine(vec, f.Embedding)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Procedures

type ProcedureStore struct {
	mu         sync.RWMutex
	procedures map[uuid.UUID]domain.Procedure
}

func NewProcedureStore() *ProcedureStore {
	return &ProcedureStore{procedures: make(map[uuid.UUID]domain.Procedure)}
}

func (s *ProcedureStore) Create(ctx context.Context, p *domain.Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.procedures {
		if existing.AgentID == p.AgentID && existing.Name == p.Name {
			return store.ErrConflict
		}
	}
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	s.procedures[p.ID] = *p
	return nil
}

func (s *ProcedureStore) Update(ctx context.Context, p *domain.Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.procedures[p.ID]
	if !ok || existing.TenantID != p.TenantID || existing.AgentID != p.AgentID {
		return store.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	s.procedures[p.ID] = *p
	return nil
}

func (s *ProcedureStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.procedures[id]
	if !ok || !owned(scope, p.TenantID, p.AgentID) {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *ProcedureStore) GetByName(ctx context.Context, scope domain.Scope, name string) (*domain.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.procedures {
		if owned(scope, p.TenantID, p.AgentID) && p.Name == name {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *ProcedureStore) List(ctx context.Context, scope domain.Scope) ([]domain.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Procedure
	for _, p := range s.procedures {
		if owned(scope, p.TenantID, p.AgentID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Working memory

type WorkingMemoryStore struct {
	mu    sync.RWMutex
	items map[domain.Scope]map[uuid.UUID]domain.WorkingMemoryItem
}

func NewWorkingMemoryStore() *WorkingMemoryStore {
	return &WorkingMemoryStore{items: make(map[domain.Scope]map[uuid.UUID]domain.WorkingMemoryItem)}
}

func (s *WorkingMemoryStore) Insert(ctx context.Context, item *domain.WorkingMemoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp(&item.ID, &item.CreatedAt, nil)
	scope := domain.Scope{TenantID: item.TenantID, AgentID: item.AgentID}
	if s.items[scope] == nil {
		s.items[scope] = make(map[uuid.UUID]domain.WorkingMemoryItem)
	}
	s.items[scope][item.ID] = *item
	return nil
}

func (s *WorkingMemoryStore) List(ctx context.Context, scope domain.Scope) ([]domain.WorkingMemoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WorkingMemoryItem, 0, len(s.items[scope]))
	for _, it := range s.items[scope] {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *WorkingMemoryStore) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[scope][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items[scope], id)
	return nil
}

func (s *WorkingMemoryStore) Clear(ctx context.Context, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, scope)
	return nil
}

func (s *WorkingMemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, items := range s.items {
		for id, it := range items {
			if it.Expired(now) {
				delete(items, id)
				n++
			}
		}
	}
	return n, nil
}

// Events

type EventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) Append(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *EventStore) List(ctx context.Context, scope domain.Scope, kind domain.EventKind, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if !owned(scope, e.TenantID, e.AgentID) {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
