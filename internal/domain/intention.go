package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IntentionType string

const (
	IntentionAction   IntentionType = "action"
	IntentionTactic   IntentionType = "tactic"
	IntentionStrategy IntentionType = "strategy"
)

type IntentionStatus string

const (
	IntentionPlanned    IntentionStatus = "planned"
	IntentionInProgress IntentionStatus = "in_progress"
	IntentionCompleted  IntentionStatus = "completed"
	IntentionFailed     IntentionStatus = "failed"
	IntentionAbandoned  IntentionStatus = "abandoned"
	IntentionPaused     IntentionStatus = "paused"
)

func (s IntentionStatus) Terminal() bool {
	return s == IntentionCompleted || s == IntentionFailed || s == IntentionAbandoned
}

// PlanSource records where a plan came from.
type PlanSource string

const (
	PlanFromProcedure PlanSource = "procedure"
	PlanFromReasoner  PlanSource = "reasoner"
)

// PlanStep is one capability call in a plan.
type PlanStep struct {
	Capability        string           `json:"capability"`
	Operation         string           `json:"operation"`
	Parameters        map[string]Value `json:"parameters,omitempty"`
	Description       string           `json:"description,omitempty"`
	EstimatedDuration time.Duration    `json:"estimated_duration,omitempty"`
}

// Plan is an ordered sequence of steps.
type Plan struct {
	Steps         []PlanStep     `json:"steps"`
	Source        PlanSource     `json:"source"`
	Strategic     bool           `json:"strategic,omitempty"`
	Rationale     string         `json:"rationale,omitempty"`
	Preconditions []Precondition `json:"preconditions,omitempty"`
}

// Fingerprint identifies a plan by its steps so that replanning can reject
// an identical plan.
func (p Plan) Fingerprint() string {
	var b strings.Builder
	for _, s := range p.Steps {
		b.WriteString(s.Capability)
		b.WriteByte('|')
		b.WriteString(s.Operation)
		b.WriteByte('|')
		b.WriteString(Map(s.Parameters).String())
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// EstimatedDuration sums the step estimates.
func (p Plan) EstimatedDuration() time.Duration {
	var d time.Duration
	for _, s := range p.Steps {
		d += s.EstimatedDuration
	}
	return d
}

// Precondition is a belief that must keep holding while an intention runs.
type Precondition struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    Value  `json:"object"`
}

// Intention is a committed plan of action.
type Intention struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	Type        IntentionType `json:"type"`
	Description string        `json:"description"`
	Plan        Plan          `json:"plan"`
	Fingerprint string        `json:"fingerprint"`
	Priority    int           `json:"priority"`

	Dependencies []uuid.UUID `json:"dependencies,omitempty"`
	GoalID       *uuid.UUID  `json:"goal_id,omitempty"` // nil for opportunistic intentions
	ParentID     *uuid.UUID  `json:"parent_id,omitempty"`
	Coordination bool        `json:"coordination"`

	ProcedureID   *uuid.UUID     `json:"procedure_id,omitempty"`
	ProcedureName string         `json:"procedure_name,omitempty"`
	Preconditions []Precondition `json:"preconditions,omitempty"`

	EstimatedDuration time.Duration   `json:"estimated_duration"`
	Status            IntentionStatus `json:"status"`
	Attempt           int             `json:"attempt"`
	ReplannedFrom     *uuid.UUID      `json:"replanned_from,omitempty"`
	Result            *ActionResult   `json:"result,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IntentionFilter narrows intention queries. Zero fields are ignored.
type IntentionFilter struct {
	Statuses []IntentionStatus
	GoalID   *uuid.UUID
	ParentID *uuid.UUID
	Limit    int
}
