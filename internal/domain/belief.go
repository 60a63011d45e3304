package domain

import (
	"time"

	"github.com/google/uuid"
)

// BeliefSource indicates where a belief originated.
type BeliefSource string

const (
	SourceObservation BeliefSource = "observation"
	SourceInference   BeliefSource = "inference"
	SourceToldByHuman BeliefSource = "told_by_human"
	SourcePrior       BeliefSource = "prior"
)

func ValidBeliefSource(s string) bool {
	switch BeliefSource(s) {
	case SourceObservation, SourceInference, SourceToldByHuman, SourcePrior:
		return true
	}
	return false
}

// Archive reasons recorded on beliefs that are no longer live.
const (
	ArchiveSuperseded         = "superseded"
	ArchiveConflictResolution = "conflict_resolution"
)

// Belief is a proposition the agent currently holds about the world.
// At most one live (non-archived) belief exists per agent, subject and predicate.
type Belief struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    Value  `json:"object"`

	// Stored confidence as of LastUpdatedAt. Readers use the decayed value.
	Confidence float64      `json:"confidence"`
	Source     BeliefSource `json:"source"`
	DecayRate  float64      `json:"decay_rate"` // confidence units per day
	Importance float64      `json:"importance"`
	Evidence   []uuid.UUID  `json:"evidence,omitempty"`

	FormedAt      time.Time `json:"formed_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`

	Archived       bool       `json:"archived"`
	ArchivedReason string     `json:"archived_reason,omitempty"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the uniqueness key of the belief within its agent.
func (b *Belief) Key() BeliefKey {
	return BeliefKey{Subject: b.Subject, Predicate: b.Predicate}
}

type BeliefKey struct {
	Subject   string
	Predicate string
}

// Proposition is a candidate (subject, predicate, object) extracted from an
// observation or produced internally.
type Proposition struct {
	Subject    string       `json:"subject"`
	Predicate  string       `json:"predicate"`
	Object     Value        `json:"object"`
	Source     BeliefSource `json:"source,omitempty"`
	Importance float64      `json:"importance,omitempty"`
	DecayRate  float64      `json:"decay_rate,omitempty"`
}

// BeliefChangeKind names what happened to a belief during revision.
type BeliefChangeKind string

const (
	BeliefFormed     BeliefChangeKind = "formed"
	BeliefReinforced BeliefChangeKind = "reinforced"
	BeliefWeakened   BeliefChangeKind = "weakened"
	BeliefReplaced   BeliefChangeKind = "replaced"
	BeliefArchived   BeliefChangeKind = "archived"
)

// BeliefChange describes one revision applied to the belief set.
type BeliefChange struct {
	Kind           BeliefChangeKind `json:"kind"`
	BeliefID       uuid.UUID        `json:"belief_id"`
	PreviousID     *uuid.UUID       `json:"previous_id,omitempty"`
	Subject        string           `json:"subject"`
	Predicate      string           `json:"predicate"`
	Object         Value            `json:"object"`
	PreviousObject *Value           `json:"previous_object,omitempty"`
	OldConfidence  float64          `json:"old_confidence"`
	NewConfidence  float64          `json:"new_confidence"`
	Importance     float64          `json:"importance"`
	Source         BeliefSource     `json:"source"`
}

// Delta is the absolute confidence movement of the change.
func (c BeliefChange) Delta() float64 {
	d := c.NewConfidence - c.OldConfidence
	if d < 0 {
		return -d
	}
	return d
}

// BeliefFilter narrows belief queries. Zero fields are ignored.
type BeliefFilter struct {
	Subject         string
	Predicate       string
	Source          BeliefSource
	ObjectKind      ValueKind
	MinConfidence   float64
	IncludeArchived bool
	Limit           int
}
