package domain

import (
	"time"

	"github.com/google/uuid"
)

// Fact is a piece of general knowledge, keyed by subject and predicate.
type Fact struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	Subject       string     `json:"subject"`
	Predicate     string     `json:"predicate"`
	Object        Value      `json:"object"`
	FactType      string     `json:"fact_type,omitempty"`
	Confidence    float64    `json:"confidence"`
	Verified      bool       `json:"verified"`
	SourceEpisode *uuid.UUID `json:"source_episode,omitempty"`
	Embedding     []float32  `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Text renders the fact for embedding.
func (f *Fact) Text() string {
	return f.Subject + " " + f.Predicate + " " + f.Object.String()
}

type FactFilter struct {
	Subject       string
	Predicate     string
	FactType      string
	MinConfidence float64
	VerifiedOnly  bool
	Limit         int
}

type FactWithScore struct {
	Fact
	Similarity float64 `json:"similarity"`
}
