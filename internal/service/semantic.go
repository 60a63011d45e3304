package service

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/store"
	"go.uber.org/zap"
)

var (
	ErrFactNotFound = errors.New("fact not found")
	ErrInvalidFact  = errors.New("subject, predicate and object are required")
)

const (
	DefaultFactConfidence = 0.5
	DefaultRelatedDepth   = 2
	MaxRelatedDepth       = 5
)

// SemanticMemory holds general knowledge as subject-predicate-object facts.
type SemanticMemory struct {
	store           domain.FactStore
	embeddingClient domain.EmbeddingClient
	logger          *zap.Logger

	Now func() time.Time
}

func NewSemanticMemory(fs domain.FactStore, ec domain.EmbeddingClient, logger *zap.Logger) *SemanticMemory {
	return &SemanticMemory{store: fs, embeddingClient: ec, logger: logger, Now: time.Now}
}

// Upsert stores f keyed by (subject, predicate). An existing fact is only
// replaced by a strictly more confident one. The returned bool reports
// whether anything was written.
func (s *SemanticMemory) Upsert(ctx context.Context, scope domain.Scope, f *domain.Fact) (*domain.Fact, bool, error) {
	if f.Subject == "" || f.Predicate == "" || f.Object.IsZero() {
		return nil, false, ErrInvalidFact
	}
	if f.Confidence <= 0 {
		f.Confidence = DefaultFactConfidence
	}
	f.Confidence = clamp01(f.Confidence)
	f.TenantID, f.AgentID = scope.TenantID, scope.AgentID

	existing, err := s.store.GetByKey(ctx, scope, f.Subject, f.Predicate)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	if existing == nil {
		s.embed(ctx, f)
		if err := s.store.Create(ctx, f); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Lost a race with another writer; retry as an update.
				return s.Upsert(ctx, scope, f)
			}
			return nil, false, err
		}
		return f, true, nil
	}

	if f.Confidence <= existing.Confidence {
		return existing, false, nil
	}

	existing.Object = f.Object
	existing.Confidence = f.Confidence
	existing.Verified = existing.Verified || f.Verified
	if f.FactType != "" {
		existing.FactType = f.FactType
	}
	if f.SourceEpisode != nil {
		existing.SourceEpisode = f.SourceEpisode
	}
	existing.Embedding = nil
	s.embed(ctx, existing)
	if err := s.store.Update(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (s *SemanticMemory) embed(ctx context.Context, f *domain.Fact) {
	if s.embeddingClient == nil {
		return
	}
	emb, err := s.embeddingClient.Embed(ctx, f.Text())
	if err != nil {
		s.logger.Warn("failed to generate fact embedding", zap.Error(err))
		return
	}
	f.Embedding = emb
}

func (s *SemanticMemory) Get(ctx context.Context, scope domain.Scope, subject, predicate string) (*domain.Fact, error) {
	f, err := s.store.GetByKey(ctx, scope, subject, predicate)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFactNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *SemanticMemory) Query(ctx context.Context, scope domain.Scope, filter domain.FactFilter) ([]domain.Fact, error) {
	return s.store.List(ctx, scope, filter)
}

// Similar ranks facts by embedding similarity to text.
func (s *SemanticMemory) Similar(ctx context.Context, scope domain.Scope, text string, limit int) ([]domain.FactWithScore, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if s.embeddingClient == nil {
		return nil, errors.New("semantic similarity requires an embedding client")
	}
	emb, err := s.embeddingClient.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.store.FindSimilar(ctx, scope, emb, limit)
}

// Related walks the fact graph breadth-first from subject, treating a string
// object as the next subject. depth defaults to 2 and is capped at 5.
func (s *SemanticMemory) Related(ctx context.Context, scope domain.Scope, subject string, depth int) ([]domain.Fact, error) {
	if depth <= 0 {
		depth = DefaultRelatedDepth
	}
	if depth > MaxRelatedDepth {
		depth = MaxRelatedDepth
	}

	visited := map[string]bool{subject: true}
	frontier := []string{subject}
	var out []domain.Fact

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, subj := range frontier {
			facts, err := s.store.List(ctx, scope, domain.FactFilter{Subject: subj})
			if err != nil {
				return nil, err
			}
			for _, f := range facts {
				out = append(out, f)
				if f.Object.Kind != domain.ValueString || visited[f.Object.Str] {
					continue
				}
				visited[f.Object.Str] = true
				next = append(next, f.Object.Str)
			}
		}
		frontier = next
	}
	return out, nil
}
