package domain

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a digital employee. Role selects which capabilities must be
// available before its loop may start.
type Agent struct {
	ID           uuid.UUID      `json:"id"`
	TenantID     uuid.UUID      `json:"tenant_id,omitempty"`
	ExternalID   string         `json:"external_id"`
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Scope identifies the owner of every cognitive record. All store and service
// calls take one explicitly.
type Scope struct {
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`
}

func ScopeOf(a *Agent) Scope {
	return Scope{TenantID: a.TenantID, AgentID: a.ID}
}

func (s Scope) Valid() bool {
	return s.TenantID != uuid.Nil && s.AgentID != uuid.Nil
}
