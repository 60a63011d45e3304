package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpisodeImportance(t *testing.T) {
	tests := []struct {
		name string
		in   domain.EpisodeInput
		want float64
	}{
		{"plain", domain.EpisodeInput{Sentiment: 0.2}, 0.5},
		{"strong negative sentiment", domain.EpisodeInput{Sentiment: -0.7}, 0.7},
		{"two executives", domain.EpisodeInput{Participants: []domain.Participant{
			{Name: "ceo", HighStatus: true}, {Name: "cfo", HighStatus: true}, {Name: "intern"},
		}}, 0.8},
		{"flagged", domain.EpisodeInput{FlaggedImportant: true}, 0.8},
		{"capped", domain.EpisodeInput{Sentiment: 0.9, FlaggedImportant: true, Participants: []domain.Participant{
			{Name: "ceo", HighStatus: true},
		}}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EpisodeImportance(tt.in), 1e-9)
		})
	}
}

func TestEpisodicMemory_RecordValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{})
	assert.ErrorIs(t, err, ErrEpisodeDescriptionEmpty)

	_, err = h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{Description: "x", Type: "dream"})
	assert.ErrorIs(t, err, ErrInvalidEpisodeType)

	ep, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{Description: "met acme", Sentiment: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeObservation, ep.Type)
	assert.Equal(t, 1.0, ep.Sentiment, "sentiment is clamped")
	assert.NotEmpty(t, ep.Embedding)
	assert.Equal(t, h.now, ep.OccurredAt)
}

func TestEpisodicMemory_RecallReinforces(t *testing.T) {
	h := newHarness(t)

	call, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{
		Type: domain.EpisodeInteraction, Description: "acme renewal call went well",
	})
	require.NoError(t, err)
	_, err = h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{Description: "quarterly tax filing"})
	require.NoError(t, err)

	hits, err := h.episodes.Recall(h.ctx, h.scope, "acme renewal call", RecallOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, call.ID, hits[0].ID)
	assert.Equal(t, 1, hits[0].RecallCount)
	assert.GreaterOrEqual(t, hits[0].Similarity, DefaultRecallFloor)

	stored, err := h.episodes.GetByID(h.ctx, h.scope, call.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RecallCount)
	require.NotNil(t, stored.LastRecalledAt)
	assert.Equal(t, h.now, *stored.LastRecalledAt)

	_, err = h.episodes.Recall(h.ctx, h.scope, "", RecallOptions{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestEpisodicMemory_Reinforce(t *testing.T) {
	h := newHarness(t)
	ep, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{Description: "lost the globex deal"})
	require.NoError(t, err)

	ep, err = h.episodes.Reinforce(h.ctx, h.scope, ep.ID, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ep.Importance)

	_, err = h.episodes.Reinforce(h.ctx, h.scope, ep.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidBoost)
}

func TestEpisodicMemory_ConsolidateMerges(t *testing.T) {
	h := newHarness(t)

	plain, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{Description: "acme asked for a security review"})
	require.NoError(t, err)
	flagged, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{
		Description: "Acme asked for a security review", FlaggedImportant: true,
	})
	require.NoError(t, err)

	res, err := h.episodes.Consolidate(h.ctx, h.scope)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EpisodesMerged)

	kept, err := h.episodes.GetByID(h.ctx, h.scope, flagged.ID)
	require.NoError(t, err)
	assert.False(t, kept.Archived, "the more important episode survives")
	assert.Contains(t, kept.MergedFrom, plain.ID)

	dropped, err := h.episodes.GetByID(h.ctx, h.scope, plain.ID)
	require.NoError(t, err)
	assert.True(t, dropped.Archived)
}

func TestEpisodicMemory_ConsolidateDecaysAndArchives(t *testing.T) {
	h := newHarness(t)

	recent, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{Description: "demo with initech"})
	require.NoError(t, err)

	old := h.now.Add(-40 * 24 * time.Hour)
	stale, err := h.episodes.Record(h.ctx, h.scope, domain.EpisodeInput{Description: "printer ran out of toner", OccurredAt: &old})
	require.NoError(t, err)
	stale.Importance = 0.05
	require.NoError(t, h.stores.Episodes.Update(h.ctx, stale))

	h.advance(8 * 24 * time.Hour)
	res, err := h.episodes.Consolidate(h.ctx, h.scope)
	require.NoError(t, err)
	assert.Equal(t, 2, res.EpisodesDecayed)
	assert.Equal(t, 1, res.EpisodesArchived)

	got, err := h.episodes.GetByID(h.ctx, h.scope, recent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, got.Importance, 1e-9)
	assert.False(t, got.Archived)

	got, err = h.episodes.GetByID(h.ctx, h.scope, stale.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
}
