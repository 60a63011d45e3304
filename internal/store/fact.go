package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const factColumns = `id, tenant_id, agent_id, subject, predicate, object, fact_type, confidence,
	verified, source_episode, created_at, updated_at`

type FactStore struct {
	db *pgxpool.Pool
}

func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

func (s *FactStore) Create(ctx context.Context, f *domain.Fact) error {
	objectJSON, err := json.Marshal(f.Object)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO semantic_facts (
			tenant_id, agent_id, subject, predicate, object, fact_type, confidence, verified,
			source_episode, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		f.TenantID, f.AgentID, f.Subject, f.Predicate, objectJSON, f.FactType, f.Confidence, f.Verified,
		f.SourceEpisode, vectorOrNil(f.Embedding),
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *FactStore) Update(ctx context.Context, f *domain.Fact) error {
	objectJSON, err := json.Marshal(f.Object)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	err = s.db.QueryRow(ctx,
		`UPDATE semantic_facts
		SET object = $1, fact_type = $2, confidence = $3, verified = $4, source_episode = $5,
			embedding = COALESCE($6, embedding), updated_at = NOW()
		WHERE id = $7 AND tenant_id = $8 AND agent_id = $9
		RETURNING updated_at`,
		objectJSON, f.FactType, f.Confidence, f.Verified, f.SourceEpisode, vectorOrNil(f.Embedding),
		f.ID, f.TenantID, f.AgentID,
	).Scan(&f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *FactStore) GetByKey(ctx context.Context, scope domain.Scope, subject, predicate string) (*domain.Fact, error) {
	var f domain.Fact
	err := scanFact(s.db.QueryRow(ctx,
		`SELECT `+factColumns+` FROM semantic_facts
		WHERE tenant_id = $1 AND agent_id = $2 AND subject = $3 AND predicate = $4`,
		scope.TenantID, scope.AgentID, subject, predicate,
	), &f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *FactStore) List(ctx context.Context, scope domain.Scope, filter domain.FactFilter) ([]domain.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM semantic_facts WHERE tenant_id = $1 AND agent_id = $2`
	args := []any{scope.TenantID, scope.AgentID}
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		query += fmt.Sprintf(" AND subject = $%d", len(args))
	}
	if filter.Predicate != "" {
		args = append(args, filter.Predicate)
		query += fmt.Sprintf(" AND predicate = $%d", len(args))
	}
	if filter.FactType != "" {
		args = append(args, filter.FactType)
		query += fmt.Sprintf(" AND fact_type = $%d", len(args))
	}
	if filter.MinConfidence > 0 {
		args = append(args, filter.MinConfidence)
		query += fmt.Sprintf(" AND confidence >= $%d", len(args))
	}
	if filter.VerifiedOnly {
		query += " AND verified"
	}
	query += " ORDER BY confidence DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facts query: %w", err)
	}
	defer rows.Close()

	var out []domain.Fact
	for rows.Next() {
		var f domain.Fact
		if err := scanFact(rows, &f); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *FactStore) FindSimilar(ctx context.Context, scope domain.Scope, embedding []float32, limit int) ([]domain.FactWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+factColumns+`, 1 - (embedding <=> $1) AS similarity
		FROM semantic_facts
		WHERE tenant_id = $2 AND agent_id = $3 AND embedding IS NOT NULL
		ORDER BY similarity DESC
		LIMIT $4`,
		pgvector.NewVector(embedding), scope.TenantID, scope.AgentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar facts query: %w", err)
	}
	defer rows.Close()

	var out []domain.FactWithScore
	for rows.Next() {
		var f domain.FactWithScore
		if err := scanFact(rows, &f.Fact, &f.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar fact row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func vectorOrNil(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

func scanFact(row pgx.Row, f *domain.Fact, extra ...any) error {
	var objectJSON []byte
	var factType *string
	dest := []any{
		&f.ID, &f.TenantID, &f.AgentID, &f.Subject, &f.Predicate, &objectJSON, &factType, &f.Confidence,
		&f.Verified, &f.SourceEpisode, &f.CreatedAt, &f.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if factType != nil {
		f.FactType = *factType
	}
	if err := json.Unmarshal(objectJSON, &f.Object); err != nil {
		return fmt.Errorf("unmarshal object: %w", err)
	}
	return nil
}
