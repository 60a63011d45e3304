package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventBeliefChanged       EventKind = "belief.changed"
	EventGoalTransition      EventKind = "goal.transition"
	EventIntentionTransition EventKind = "intention.transition"
	EventCycleCompleted      EventKind = "cycle.completed"
	EventPhaseFailed         EventKind = "cycle.phase_failed"
	EventLoopState           EventKind = "loop.state"
)

// Event is a structured telemetry record emitted by the cognitive core.
type Event struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	Kind      EventKind      `json:"kind"`
	SubjectID *uuid.UUID     `json:"subject_id,omitempty"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	CycleID   *uuid.UUID     `json:"cycle_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}
