package domain

import (
	"time"

	"github.com/google/uuid"
)

type EpisodeType string

const (
	EpisodeInteraction EpisodeType = "interaction"
	EpisodeEvent       EpisodeType = "event"
	EpisodeObservation EpisodeType = "observation"
	EpisodeFeedback    EpisodeType = "feedback"
)

func ValidEpisodeType(s string) bool {
	switch EpisodeType(s) {
	case EpisodeInteraction, EpisodeEvent, EpisodeObservation, EpisodeFeedback:
		return true
	}
	return false
}

// OutcomeType represents the result of an episode.
type OutcomeType string

const (
	OutcomeSuccess OutcomeType = "success"
	OutcomeFailure OutcomeType = "failure"
	OutcomeNeutral OutcomeType = "neutral"
)

type Participant struct {
	Name       string `json:"name"`
	HighStatus bool   `json:"high_status,omitempty"`
}

// Episode is a record of a specific past experience.
type Episode struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	AgentID  uuid.UUID `json:"agent_id"`

	Type             EpisodeType      `json:"type"`
	Description      string           `json:"description"`
	Payload          map[string]Value `json:"payload,omitempty"`
	Participants     []Participant    `json:"participants,omitempty"`
	Location         string           `json:"location,omitempty"`
	Sentiment        float64          `json:"sentiment"`
	FlaggedImportant bool             `json:"flagged_important,omitempty"`
	Outcome          OutcomeType      `json:"outcome,omitempty"`
	Embedding        []float32        `json:"-"`

	Importance     float64     `json:"importance"`
	RecallCount    int         `json:"recall_count"`
	LastRecalledAt *time.Time  `json:"last_recalled_at,omitempty"`
	MergedFrom     []uuid.UUID `json:"merged_from,omitempty"`
	Archived       bool        `json:"archived"`

	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// EpisodeInput is what callers supply when recording an experience.
type EpisodeInput struct {
	Type             EpisodeType      `json:"type"`
	Description      string           `json:"description"`
	Payload          map[string]Value `json:"payload,omitempty"`
	Participants     []Participant    `json:"participants,omitempty"`
	Location         string           `json:"location,omitempty"`
	Sentiment        float64          `json:"sentiment"`
	FlaggedImportant bool             `json:"flagged_important,omitempty"`
	Outcome          OutcomeType      `json:"outcome,omitempty"`
	OccurredAt       *time.Time       `json:"occurred_at,omitempty"`
}

type EpisodeWithScore struct {
	Episode
	Similarity float64 `json:"similarity"`
	// Score is the recall ranking: similarity adjusted for importance and age.
	Score float64 `json:"score"`
}
