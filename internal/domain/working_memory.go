package domain

import (
	"time"

	"github.com/google/uuid"
)

type ContextType string

const (
	ContextCurrentTask       ContextType = "current_task"
	ContextConversation      ContextType = "conversation"
	ContextScratchpad        ContextType = "scratchpad"
	ContextRecentObservation ContextType = "recent_observation"
)

func ValidContextType(s string) bool {
	switch ContextType(s) {
	case ContextCurrentTask, ContextConversation, ContextScratchpad, ContextRecentObservation:
		return true
	}
	return false
}

// WorkingMemoryItem is short-lived context for the agent's current activity.
type WorkingMemoryItem struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	ContextType ContextType `json:"context_type"`
	Key         string      `json:"key,omitempty"`
	Payload     Value       `json:"payload"`
	Priority    float64     `json:"priority"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (w *WorkingMemoryItem) Expired(now time.Time) bool {
	return w.ExpiresAt != nil && !now.Before(*w.ExpiresAt)
}
