package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
}

type AgentStore interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Agent, error)
	GetByExternalID(ctx context.Context, externalID string, tenantID uuid.UUID) (*Agent, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Agent, error)
	ListScopes(ctx context.Context) ([]Scope, error)
}

// BeliefStore persists beliefs. Uniqueness of live beliefs is maintained by
// the belief service; stores that can enforce it report ErrConflict.
type BeliefStore interface {
	Create(ctx context.Context, b *Belief) error
	Update(ctx context.Context, b *Belief) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*Belief, error)
	GetLive(ctx context.Context, scope Scope, subject, predicate string) ([]Belief, error)
	Archive(ctx context.Context, scope Scope, id uuid.UUID, reason string, at time.Time) error
	List(ctx context.Context, scope Scope, filter BeliefFilter) ([]Belief, error)
	About(ctx context.Context, scope Scope, entity string) ([]Belief, error)
}

type GoalStore interface {
	Create(ctx context.Context, g *Goal) error
	Update(ctx context.Context, g *Goal) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*Goal, error)
	List(ctx context.Context, scope Scope, filter GoalFilter) ([]Goal, error)
}

type IntentionStore interface {
	Create(ctx context.Context, i *Intention) error
	Update(ctx context.Context, i *Intention) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*Intention, error)
	List(ctx context.Context, scope Scope, filter IntentionFilter) ([]Intention, error)
}

type EpisodeStore interface {
	Create(ctx context.Context, e *Episode) error
	Update(ctx context.Context, e *Episode) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*Episode, error)
	FindSimilar(ctx context.Context, scope Scope, embedding []float32, minSimilarity float64, limit int) ([]EpisodeWithScore, error)
	MarkRecalled(ctx context.Context, scope Scope, ids []uuid.UUID, at time.Time) error
	ListActive(ctx context.Context, scope Scope) ([]Episode, error)
}

type FactStore interface {
	Create(ctx context.Context, f *Fact) error
	Update(ctx context.Context, f *Fact) error
	GetByKey(ctx context.Context, scope Scope, subject, predicate string) (*Fact, error)
	List(ctx context.Context, scope Scope, filter FactFilter) ([]Fact, error)
	FindSimilar(ctx context.Context, scope Scope, embedding []float32, limit int) ([]FactWithScore, error)
}

type ProcedureStore interface {
	Create(ctx context.Context, p *Procedure) error
	Update(ctx context.Context, p *Procedure) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*Procedure, error)
	GetByName(ctx context.Context, scope Scope, name string) (*Procedure, error)
	List(ctx context.Context, scope Scope) ([]Procedure, error)
}

type WorkingMemoryStore interface {
	Insert(ctx context.Context, item *WorkingMemoryItem) error
	List(ctx context.Context, scope Scope) ([]WorkingMemoryItem, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
	Clear(ctx context.Context, scope Scope) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type EventStore interface {
	Append(ctx context.Context, e *Event) error
	List(ctx context.Context, scope Scope, kind EventKind, limit int) ([]Event, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PlanRequest is the input to plan synthesis.
type PlanRequest struct {
	Goal         *Goal    `json:"goal"`
	Capabilities []string `json:"capabilities"`
	Beliefs      []Belief `json:"beliefs,omitempty"`
	Excluded     []string `json:"excluded,omitempty"` // plan fingerprints that must not be returned
	PriorFailure string   `json:"prior_failure,omitempty"`
}

// ExtractionRequest is the input to proposition extraction.
type ExtractionRequest struct {
	Observation Observation `json:"observation"`
}

// Reasoner is the external reasoning collaborator. It must be safe for
// concurrent use by all agent loops.
type Reasoner interface {
	SynthesizePlan(ctx context.Context, req PlanRequest) (*Plan, error)
	ExtractPropositions(ctx context.Context, req ExtractionRequest) ([]Proposition, error)
}
