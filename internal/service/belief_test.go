package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coverage(v float64, src domain.BeliefSource) domain.Observation {
	return domain.Observation{
		Source:  "crm",
		Kind:    src,
		Content: "pipeline coverage report",
		Propositions: []domain.Proposition{
			{Subject: "pipeline", Predicate: "coverage", Object: domain.Number(v)},
		},
	}
}

func TestBeliefService_FormAndReinforce(t *testing.T) {
	h := newHarness(t)

	changes, err := h.beliefs.Update(h.ctx, h.scope, []domain.Observation{coverage(2.0, domain.SourceObservation)})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.BeliefFormed, changes[0].Kind)
	assert.InDelta(t, 0.7, changes[0].NewConfidence, 1e-9)

	changes, err = h.beliefs.Update(h.ctx, h.scope, []domain.Observation{coverage(2.0, domain.SourceObservation)})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.BeliefReinforced, changes[0].Kind)
	assert.InDelta(t, 0.9, changes[0].NewConfidence, 1e-9)

	b, err := h.beliefs.Get(h.ctx, h.scope, "pipeline", "coverage")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, b.Confidence, 1e-9)
	assert.Len(t, b.Evidence, 2, "each observation is linked as evidence")
}

func TestBeliefService_WeakenWithoutReplacement(t *testing.T) {
	h := newHarness(t)

	_, err := h.beliefs.Update(h.ctx, h.scope, []domain.Observation{coverage(2.0, domain.SourceObservation)})
	require.NoError(t, err)

	changes, err := h.beliefs.Update(h.ctx, h.scope, []domain.Observation{coverage(1.0, domain.SourceInference)})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.BeliefWeakened, changes[0].Kind)
	assert.InDelta(t, 0.49, changes[0].NewConfidence, 1e-9)

	b, err := h.beliefs.Get(h.ctx, h.scope, "pipeline", "coverage")
	require.NoError(t, err)
	assert.True(t, b.Object.Equal(domain.Number(2.0)), "a weakened belief keeps its object")
	assert.InDelta(t, 0.49, b.Confidence, 1e-9)
}

func TestBeliefService_ReplaceBelowThreshold(t *testing.T) {
	h := newHarness(t)

	_, err := h.beliefs.Update(h.ctx, h.scope, []domain.Observation{coverage(2.0, domain.SourceObservation)})
	require.NoError(t, err)
	old, err := h.beliefs.Get(h.ctx, h.scope, "pipeline", "coverage")
	require.NoError(t, err)

	// 0.7 -> 0.4 (weakened), then 0.4 -> 0.1 which is below 0.3.
	_, err = h.beliefs.Update(h.ctx, h.scope, []domain.Observation{coverage(1.0, domain.SourceObservation)})
	require.NoError(t, err)
	changes, err := h.beliefs.Update(h.ctx, h.scope, []domain.Observation{coverage(1.0, domain.SourceObservation)})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.BeliefReplaced, changes[0].Kind)
	require.NotNil(t, changes[0].PreviousID)
	assert.Equal(t, old.ID, *changes[0].PreviousID)

	b, err := h.beliefs.Get(h.ctx, h.scope, "pipeline", "coverage")
	require.NoError(t, err)
	assert.True(t, b.Object.Equal(domain.Number(1.0)))
	assert.InDelta(t, InitialBeliefConfidence, b.Confidence, 1e-9)

	archived, err := h.stores.Beliefs.GetByID(h.ctx, h.scope, old.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Equal(t, domain.ArchiveSuperseded, archived.ArchivedReason)
}

func TestBeliefService_UniquenessRepair(t *testing.T) {
	h := newHarness(t)

	// Two live beliefs for one key, as a racing writer could leave behind.
	strong := &domain.Belief{
		TenantID: h.scope.TenantID, AgentID: h.scope.AgentID,
		Subject: "acme", Predicate: "stage", Object: domain.String("proposal"),
		Confidence: 0.8, Source: domain.SourceObservation, LastUpdatedAt: h.now,
	}
	weak := &domain.Belief{
		TenantID: h.scope.TenantID, AgentID: h.scope.AgentID,
		Subject: "acme", Predicate: "stage", Object: domain.String("discovery"),
		Confidence: 0.5, Source: domain.SourceObservation, LastUpdatedAt: h.now,
	}
	require.NoError(t, h.stores.Beliefs.Create(h.ctx, strong))
	require.NoError(t, h.stores.Beliefs.Create(h.ctx, weak))

	changes, err := h.beliefs.Apply(h.ctx, h.scope, []domain.Proposition{
		{Subject: "acme", Predicate: "stage", Object: domain.String("proposal"), Source: domain.SourceObservation},
	}, nil)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.BeliefReinforced, changes[0].Kind)
	assert.Equal(t, domain.BeliefArchived, changes[1].Kind)

	live, err := h.stores.Beliefs.GetLive(h.ctx, h.scope, "acme", "stage")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, strong.ID, live[0].ID)

	loser, err := h.stores.Beliefs.GetByID(h.ctx, h.scope, weak.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ArchiveConflictResolution, loser.ArchivedReason)
}

func TestBeliefService_ReadsAreDecayed(t *testing.T) {
	h := newHarness(t)

	_, err := h.beliefs.Apply(h.ctx, h.scope, []domain.Proposition{
		{Subject: "deal-42", Predicate: "champion", Object: domain.String("dana"), DecayRate: 0.1},
	}, nil)
	require.NoError(t, err)

	h.advance(48 * time.Hour)

	b, err := h.beliefs.Get(h.ctx, h.scope, "deal-42", "champion")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, b.Confidence, 1e-9)

	stored, err := h.stores.Beliefs.GetLive(h.ctx, h.scope, "deal-42", "champion")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, stored[0].Confidence, 1e-9, "decay is never written back")

	list, err := h.beliefs.List(h.ctx, h.scope, domain.BeliefFilter{MinConfidence: 0.6})
	require.NoError(t, err)
	assert.Empty(t, list, "minimum confidence is checked after decay")

	// Agreement starts from the decayed value: 0.5 + 0.7*0.2.
	changes, err := h.beliefs.Apply(h.ctx, h.scope, []domain.Proposition{
		{Subject: "deal-42", Predicate: "champion", Object: domain.String("dana")},
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.64, changes[0].NewConfidence, 1e-9)
}

func TestBeliefService_ExtractsWhenUnstructured(t *testing.T) {
	h := newHarness(t)
	h.reasoner.PropositionResponse = []domain.Proposition{
		{Subject: "acme", Predicate: "budget", Object: domain.Number(50000)},
	}

	changes, err := h.beliefs.Update(h.ctx, h.scope, []domain.Observation{
		{Source: "inbox", Kind: domain.SourceToldByHuman, Content: "Acme confirmed a 50k budget"},
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.SourceToldByHuman, changes[0].Source)
	assert.Len(t, h.reasoner.ExtractionCalls, 1)
}

func TestBeliefService_ExtractionFailureYieldsNothing(t *testing.T) {
	h := newHarness(t)
	h.reasoner.PropositionError = errors.New("upstream unavailable")

	changes, err := h.beliefs.Update(h.ctx, h.scope, []domain.Observation{
		{Source: "inbox", Content: "something happened"},
	})
	require.NoError(t, err)
	assert.Empty(t, changes)

	// The observation is still remembered.
	eps, err := h.stores.Episodes.ListActive(h.ctx, h.scope)
	require.NoError(t, err)
	assert.Len(t, eps, 1)
}

func TestBeliefService_InvalidPropositionIsReported(t *testing.T) {
	h := newHarness(t)

	changes, err := h.beliefs.Apply(h.ctx, h.scope, []domain.Proposition{
		{Subject: "acme", Predicate: "", Object: domain.String("x")},
		{Subject: "acme", Predicate: "region", Object: domain.String("emea")},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidProposition)
	assert.Len(t, changes, 1, "one bad proposition does not stop the batch")
}

func TestBeliefService_AboutAndEvents(t *testing.T) {
	h := newHarness(t)

	_, err := h.beliefs.Apply(h.ctx, h.scope, []domain.Proposition{
		{Subject: "acme", Predicate: "owner", Object: domain.String("dana")},
		{Subject: "dana", Predicate: "title", Object: domain.String("vp sales")},
		{Subject: "globex", Predicate: "owner", Object: domain.String("li")},
	}, nil)
	require.NoError(t, err)

	about, err := h.beliefs.About(h.ctx, h.scope, "dana")
	require.NoError(t, err)
	assert.Len(t, about, 2)

	_, err = h.beliefs.Get(h.ctx, h.scope, "nobody", "owner")
	assert.ErrorIs(t, err, ErrBeliefNotFound)

	assert.Len(t, h.events(domain.EventBeliefChanged), 3)
}
