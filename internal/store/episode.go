package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const episodeColumns = `id, tenant_id, agent_id, type, description, payload, participants, location,
	sentiment, flagged_important, outcome, importance, recall_count, last_recalled_at,
	merged_from, archived, occurred_at, created_at`

type EpisodeStore struct {
	db *pgxpool.Pool
}

func NewEpisodeStore(db *pgxpool.Pool) *EpisodeStore {
	return &EpisodeStore{db: db}
}

func (s *EpisodeStore) Create(ctx context.Context, e *domain.Episode) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	participantsJSON, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO episodes (
			tenant_id, agent_id, type, description, payload, participants, location,
			sentiment, flagged_important, outcome, embedding, importance, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		e.TenantID, e.AgentID, string(e.Type), e.Description, payloadJSON, participantsJSON, e.Location,
		e.Sentiment, e.FlaggedImportant, string(e.Outcome), vectorOrNil(e.Embedding), e.Importance, e.OccurredAt,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *EpisodeStore) Update(ctx context.Context, e *domain.Episode) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE episodes
		SET importance = $1, recall_count = $2, last_recalled_at = $3, merged_from = $4,
			archived = $5, outcome = $6
		WHERE id = $7 AND tenant_id = $8 AND agent_id = $9`,
		e.Importance, e.RecallCount, e.LastRecalledAt, nonNilIDs(e.MergedFrom),
		e.Archived, string(e.Outcome),
		e.ID, e.TenantID, e.AgentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *EpisodeStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Episode, error) {
	var e domain.Episode
	err := scanEpisode(s.db.QueryRow(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE id = $1 AND tenant_id = $2 AND agent_id = $3`,
		id, scope.TenantID, scope.AgentID,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *EpisodeStore) FindSimilar(ctx context.Context, scope domain.Scope, embedding []float32, minSimilarity float64, limit int) ([]domain.EpisodeWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+episodeColumns+`, 1 - (embedding <=> $1) AS similarity
		FROM episodes
		WHERE tenant_id = $2 AND agent_id = $3 AND NOT archived AND embedding IS NOT NULL
			AND 1 - (embedding <=> $1) >= $4
		ORDER BY similarity DESC
		LIMIT $5`,
		vec, scope.TenantID, scope.AgentID, minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar episodes query: %w", err)
	}
	defer rows.Close()

	var out []domain.EpisodeWithScore
	for rows.Next() {
		var e domain.EpisodeWithScore
		if err := scanEpisode(rows, &e.Episode, &e.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar episode row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *EpisodeStore) MarkRecalled(ctx context.Context, scope domain.Scope, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE episodes SET recall_count = recall_count + 1, last_recalled_at = $1
		WHERE id = ANY($2) AND tenant_id = $3 AND agent_id = $4`,
		at, ids, scope.TenantID, scope.AgentID,
	)
	return err
}

// ListActive returns non-archived episodes with their embeddings, for consolidation.
func (s *EpisodeStore) ListActive(ctx context.Context, scope domain.Scope) ([]domain.Episode, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+episodeColumns+`, embedding
		FROM episodes WHERE tenant_id = $1 AND agent_id = $2 AND NOT archived
		ORDER BY occurred_at`,
		scope.TenantID, scope.AgentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Episode
	for rows.Next() {
		var e domain.Episode
		var vec *pgvector.Vector
		if err := scanEpisode(rows, &e, &vec); err != nil {
			return nil, fmt.Errorf("scan episode row: %w", err)
		}
		if vec != nil {
			e.Embedding = vec.Slice()
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEpisode(row pgx.Row, e *domain.Episode, extra ...any) error {
	var etype string
	var payloadJSON, participantsJSON []byte
	var location, outcome *string
	dest := []any{
		&e.ID, &e.TenantID, &e.AgentID, &etype, &e.Description, &payloadJSON, &participantsJSON, &location,
		&e.Sentiment, &e.FlaggedImportant, &outcome, &e.Importance, &e.RecallCount, &e.LastRecalledAt,
		&e.MergedFrom, &e.Archived, &e.OccurredAt, &e.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	e.Type = domain.EpisodeType(etype)
	if location != nil {
		e.Location = *location
	}
	if outcome != nil {
		e.Outcome = domain.OutcomeType(*outcome)
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if len(participantsJSON) > 0 {
		if err := json.Unmarshal(participantsJSON, &e.Participants); err != nil {
			return fmt.Errorf("unmarshal participants: %w", err)
		}
	}
	return nil
}
