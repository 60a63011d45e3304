package domain

import (
	"time"

	"github.com/google/uuid"
)

type GoalType string

const (
	GoalAchievement GoalType = "achievement"
	GoalMaintenance GoalType = "maintenance"
	GoalPrevention  GoalType = "prevention"
)

func ValidGoalType(s string) bool {
	switch GoalType(s) {
	case GoalAchievement, GoalMaintenance, GoalPrevention:
		return true
	}
	return false
}

type GoalStatus string

const (
	GoalActive     GoalStatus = "active"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalAbandoned  GoalStatus = "abandoned"
	GoalBlocked    GoalStatus = "blocked"
)

// Terminal reports whether no further transitions are allowed.
func (s GoalStatus) Terminal() bool {
	return s == GoalCompleted || s == GoalAbandoned
}

// Open reports whether the goal should still be pursued.
func (s GoalStatus) Open() bool {
	return s == GoalActive || s == GoalInProgress
}

// GoalTarget names the belief that measures a goal and the value to reach.
type GoalTarget struct {
	Subject     string     `json:"subject"`
	Predicate   string     `json:"predicate"`
	TargetValue float64    `json:"target_value"`
	Threshold   float64    `json:"threshold"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// Goal is a desired state of the world.
type Goal struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	Type        GoalType `json:"type"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`

	Priority       int     `json:"priority"` // 1..10, derived
	Urgency        float64 `json:"urgency"`
	Importance     float64 `json:"importance"`
	BaseImportance float64 `json:"base_importance"`
	HighValue      bool    `json:"high_value"`

	Target       GoalTarget `json:"target"`
	Progress     float64    `json:"progress"`
	CurrentValue *float64   `json:"current_value,omitempty"`

	Status       GoalStatus `json:"status"`
	StatusReason string     `json:"status_reason,omitempty"`
	TriggerName  string     `json:"trigger_name,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// GoalFilter narrows goal queries. Zero fields are ignored.
type GoalFilter struct {
	Statuses []GoalStatus
	Type     GoalType
	Limit    int
}

// TriggerComparator compares a numeric belief against a rule value.
type TriggerComparator string

const (
	CompareBelow  TriggerComparator = "below"
	CompareAbove  TriggerComparator = "above"
	CompareEquals TriggerComparator = "equals"
)

// TriggerRule forms a goal when a belief crosses a condition.
type TriggerRule struct {
	Name          string            `json:"name"`
	Subject       string            `json:"subject"`
	Predicate     string            `json:"predicate"`
	Comparator    TriggerComparator `json:"comparator"`
	Value         float64           `json:"value"`
	MinConfidence float64           `json:"min_confidence,omitempty"`

	GoalType     GoalType `json:"goal_type"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags,omitempty"`
	TargetValue  float64  `json:"target_value"`
	Threshold    float64  `json:"threshold"`
	DeadlineDays int      `json:"deadline_days,omitempty"`
	HighValue    bool     `json:"high_value,omitempty"`
}
