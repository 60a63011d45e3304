package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Observation is a unit of perceived information produced by a capability.
type Observation struct {
	ID         uuid.UUID        `json:"id"`
	Source     string           `json:"source"` // capability name
	Kind       BeliefSource     `json:"kind"`   // how the information was obtained
	Content    string           `json:"content"`
	Payload    map[string]Value `json:"payload,omitempty"`

	// Propositions already structured by the producer; when empty the belief
	// system asks the reasoner to extract them from Content.
	Propositions []Proposition `json:"propositions,omitempty"`
	Importance   float64       `json:"importance,omitempty"`
	ObservedAt   time.Time     `json:"observed_at"`
}

// Action is a single capability call issued by the intention engine.
type Action struct {
	IntentionID uuid.UUID        `json:"intention_id"`
	Capability  string           `json:"capability"`
	Operation   string           `json:"operation"`
	Parameters  map[string]Value `json:"parameters,omitempty"`
	Description string           `json:"description,omitempty"`
}

// ActionResult is what a capability reports after executing an action.
type ActionResult struct {
	Success  bool             `json:"success"`
	Output   map[string]Value `json:"output,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// Capability is an integration that can perceive and act.
type Capability interface {
	Name() string
	Perceive(ctx context.Context) ([]Observation, error)
	Execute(ctx context.Context, action Action) (*ActionResult, error)
}
