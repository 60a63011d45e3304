package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/embedding"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEpisodeNotFound         = errors.New("episode not found")
	ErrEpisodeDescriptionEmpty = errors.New("description is required")
	ErrInvalidEpisodeType      = errors.New("invalid episode type")
	ErrInvalidBoost            = errors.New("boost must be positive")
	ErrEmptyQuery              = errors.New("query is required")
)

const (
	BaseEpisodeImportance    = 0.5
	StrongSentimentThreshold = 0.6
	StrongSentimentBoost     = 0.2
	HighStatusBoost          = 0.15
	FlaggedImportantBoost    = 0.3

	// DefaultRecallFloor is the minimum cosine similarity for a recall hit.
	DefaultRecallFloor = 0.5
	DefaultRecallLimit = 10

	MergeSimilarityThreshold = 0.95
	UnrecalledWindow         = 7 * 24 * time.Hour
	UnrecalledDecayFactor    = 0.9
	StaleImportanceFloor     = 0.1
	StaleAge                 = 30 * 24 * time.Hour
)

// EpisodeImportance scores a new experience. Strong sentiment, high-status
// participants and an explicit flag raise it; the result is capped at 1.
func EpisodeImportance(in domain.EpisodeInput) float64 {
	imp := BaseEpisodeImportance
	if math.Abs(in.Sentiment) >= StrongSentimentThreshold {
		imp += StrongSentimentBoost
	}
	for _, p := range in.Participants {
		if p.HighStatus {
			imp += HighStatusBoost
		}
	}
	if in.FlaggedImportant {
		imp += FlaggedImportantBoost
	}
	return math.Min(imp, 1.0)
}

// EpisodicMemory records and recalls specific past experiences.
type EpisodicMemory struct {
	store           domain.EpisodeStore
	embeddingClient domain.EmbeddingClient
	logger          *zap.Logger

	Scorer *RecallScorer
	Now    func() time.Time
}

func NewEpisodicMemory(es domain.EpisodeStore, ec domain.EmbeddingClient, logger *zap.Logger) *EpisodicMemory {
	return &EpisodicMemory{
		store:           es,
		embeddingClient: ec,
		logger:          logger,
		Scorer:          NewRecallScorer(),
		Now:             time.Now,
	}
}

// Record appends an experience with a computed importance.
func (s *EpisodicMemory) Record(ctx context.Context, scope domain.Scope, in domain.EpisodeInput) (*domain.Episode, error) {
	if in.Description == "" {
		return nil, ErrEpisodeDescriptionEmpty
	}
	if in.Type == "" {
		in.Type = domain.EpisodeObservation
	}
	if !domain.ValidEpisodeType(string(in.Type)) {
		return nil, ErrInvalidEpisodeType
	}

	now := s.Now()
	occurred := now
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		occurred = *in.OccurredAt
	}

	ep := &domain.Episode{
		TenantID:         scope.TenantID,
		AgentID:          scope.AgentID,
		Type:             in.Type,
		Description:      in.Description,
		Payload:          in.Payload,
		Participants:     in.Participants,
		Location:         in.Location,
		Sentiment:        math.Max(-1, math.Min(1, in.Sentiment)),
		FlaggedImportant: in.FlaggedImportant,
		Outcome:          in.Outcome,
		Importance:       EpisodeImportance(in),
		OccurredAt:       occurred,
		CreatedAt:        now,
	}

	if s.embeddingClient != nil {
		emb, err := s.embeddingClient.Embed(ctx, in.Description)
		if err != nil {
			s.logger.Warn("failed to generate episode embedding", zap.Error(err))
		} else {
			ep.Embedding = emb
		}
	}

	if err := s.store.Create(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

func (s *EpisodicMemory) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Episode, error) {
	ep, err := s.store.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEpisodeNotFound
		}
		return nil, err
	}
	return ep, nil
}

type RecallOptions struct {
	Limit         int
	MinSimilarity float64
}

// Recall ranks episodes by similarity to query, weighted by importance and
// age. Every returned episode is reinforced: its recall count goes up and its last-recalled time is set.
func (s *EpisodicMemory) Recall(ctx context.Context, scope domain.Scope, query string, opts RecallOptions) ([]domain.EpisodeWithScore, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.embeddingClient == nil {
		return nil, errors.New("episodic recall requires an embedding client")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultRecallLimit
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = DefaultRecallFloor
	}

	emb, err := s.embeddingClient.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.FindSimilar(ctx, scope, emb, opts.MinSimilarity, opts.Limit*recallOverfetch)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return hits, nil
	}

	now := s.Now()
	hits = s.Scorer.Rank(hits, now)
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	ids := make([]uuid.UUID, len(hits))
	for i := range hits {
		ids[i] = hits[i].ID
	}
	if err := s.store.MarkRecalled(ctx, scope, ids, now); err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].RecallCount++
		hits[i].LastRecalledAt = &now
	}
	return hits, nil
}

// Reinforce raises an episode's importance explicitly.
func (s *EpisodicMemory) Reinforce(ctx context.Context, scope domain.Scope, id uuid.UUID, boost float64) (*domain.Episode, error) {
	if boost <= 0 {
		return nil, ErrInvalidBoost
	}
	ep, err := s.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	ep.Importance = math.Min(1.0, ep.Importance+boost)
	if err := s.store.Update(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

type ConsolidationResult struct {
	EpisodesMerged   int `json:"episodes_merged"`
	EpisodesDecayed  int `json:"episodes_decayed"`
	EpisodesArchived int `json:"episodes_archived"`
}

// Consolidate merges near-duplicate episodes, decays the importance of
// episodes not recalled recently and archives stale unimportant ones.
func (s *EpisodicMemory) Consolidate(ctx context.Context, scope domain.Scope) (*ConsolidationResult, error) {
	episodes, err := s.store.ListActive(ctx, scope)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	result := &ConsolidationResult{}
	dirty := make(map[int]bool)

	// Stage 1: merge near-duplicates into the more important episode.
	for i := range episodes {
		if episodes[i].Archived || len(episodes[i].Embedding) == 0 {
			continue
		}
		for j := i + 1; j < len(episodes); j++ {
			if episodes[j].Archived || len(episodes[j].Embedding) == 0 {
				continue
			}
			if embedding.Cosine(episodes[i].Embedding, episodes[j].Embedding) <= MergeSimilarityThreshold {
				continue
			}
			keep, drop := i, j
			if episodes[j].Importance > episodes[i].Importance {
				keep, drop = j, i
			}
			mergeEpisode(&episodes[keep], &episodes[drop])
			dirty[keep], dirty[drop] = true, true
			result.EpisodesMerged++
			if drop == i {
				break
			}
		}
	}

	// Stage 2: decay unrecalled, archive stale.
	for i := range episodes {
		ep := &episodes[i]
		if ep.Archived {
			continue
		}
		lastTouched := ep.OccurredAt
		if ep.LastRecalledAt != nil {
			lastTouched = *ep.LastRecalledAt
		}
		if now.Sub(lastTouched) > UnrecalledWindow {
			ep.Importance *= UnrecalledDecayFactor
			dirty[i] = true
			result.EpisodesDecayed++
		}
		if ep.Importance < StaleImportanceFloor && now.Sub(ep.OccurredAt) > StaleAge {
			ep.Archived = true
			dirty[i] = true
			result.EpisodesArchived++
		}
	}

	var errs []error
	for i := range dirty {
		if err := s.store.Update(ctx, &episodes[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

func mergeEpisode(keep, drop *domain.Episode) {
	keep.RecallCount += drop.RecallCount
	keep.MergedFrom = append(keep.MergedFrom, drop.ID)
	keep.MergedFrom = append(keep.MergedFrom, drop.MergedFrom...)
	if drop.LastRecalledAt != nil && (keep.LastRecalledAt == nil || drop.LastRecalledAt.After(*keep.LastRecalledAt)) {
		keep.LastRecalledAt = drop.LastRecalledAt
	}
	drop.Archived = true
}
