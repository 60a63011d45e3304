package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProcedureType string

const (
	ProcedureSkill     ProcedureType = "skill"
	ProcedureWorkflow  ProcedureType = "workflow"
	ProcedureHeuristic ProcedureType = "heuristic"
)

// ProcedureOrigin records how a procedure was acquired.
type ProcedureOrigin string

const (
	OriginPrebuilt      ProcedureOrigin = "prebuilt"
	OriginDemonstration ProcedureOrigin = "demonstration"
	OriginTrial         ProcedureOrigin = "trial"
)

// Procedure is a learned way of doing something.
type Procedure struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        ProcedureType   `json:"type"`
	Origin      ProcedureOrigin `json:"origin"`
	Steps       []PlanStep      `json:"steps"`
	Conditions  []string        `json:"conditions,omitempty"` // contexts where it applies
	GoalTypes   []GoalType      `json:"goal_types,omitempty"`

	// Beliefs that must keep holding while a plan built from this procedure runs.
	Preconditions []Precondition `json:"preconditions,omitempty"`

	SuccessRate    float64    `json:"success_rate"`
	ExecutionCount int        `json:"execution_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequiredCapabilities lists the capabilities named by the steps.
func (p *Procedure) RequiredCapabilities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range p.Steps {
		if s.Capability == "" || seen[s.Capability] {
			continue
		}
		seen[s.Capability] = true
		out = append(out, s.Capability)
	}
	return out
}

// ProcedureQuery narrows procedure retrieval. Zero fields are ignored.
type ProcedureQuery struct {
	Type           ProcedureType
	GoalType       GoalType
	Context        []string
	MinSuccessRate float64
	Limit          int
}
