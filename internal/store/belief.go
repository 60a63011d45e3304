package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const beliefColumns = `id, tenant_id, agent_id, subject, predicate, object, confidence, source,
	decay_rate, importance, evidence, formed_at, last_updated_at,
	archived, archived_reason, archived_at, created_at, updated_at`

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

func (s *BeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	objectJSON, err := json.Marshal(b.Object)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO beliefs (
			tenant_id, agent_id, subject, predicate, object, object_kind, confidence, source,
			decay_rate, importance, evidence, formed_at, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		b.TenantID, b.AgentID, b.Subject, b.Predicate, objectJSON, string(b.Object.Kind), b.Confidence, string(b.Source),
		b.DecayRate, b.Importance, nonNilIDs(b.Evidence), b.FormedAt, b.LastUpdatedAt,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *BeliefStore) Update(ctx context.Context, b *domain.Belief) error {
	objectJSON, err := json.Marshal(b.Object)
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs
		SET object = $1, object_kind = $2, confidence = $3, source = $4, decay_rate = $5,
			importance = $6, evidence = $7, last_updated_at = $8, updated_at = NOW()
		WHERE id = $9 AND tenant_id = $10 AND agent_id = $11`,
		objectJSON, string(b.Object.Kind), b.Confidence, string(b.Source), b.DecayRate,
		b.Importance, nonNilIDs(b.Evidence), b.LastUpdatedAt,
		b.ID, b.TenantID, b.AgentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Belief, error) {
	var b domain.Belief
	err := scanBelief(s.db.QueryRow(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE id = $1 AND tenant_id = $2 AND agent_id = $3`,
		id, scope.TenantID, scope.AgentID,
	), &b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *BeliefStore) GetLive(ctx context.Context, scope domain.Scope, subject, predicate string) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+` FROM beliefs
		WHERE tenant_id = $1 AND agent_id = $2 AND subject = $3 AND predicate = $4 AND NOT archived
		ORDER BY confidence DESC`,
		scope.TenantID, scope.AgentID, subject, predicate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBeliefs(rows)
}

func (s *BeliefStore) Archive(ctx context.Context, scope domain.Scope, id uuid.UUID, reason string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET archived = TRUE, archived_reason = $1, archived_at = $2, updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4 AND agent_id = $5 AND NOT archived`,
		reason, at, id, scope.TenantID, scope.AgentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) List(ctx context.Context, scope domain.Scope, f domain.BeliefFilter) ([]domain.Belief, error) {
	conds := []string{"tenant_id = $1", "agent_id = $2"}
	args := []any{scope.TenantID, scope.AgentID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludeArchived {
		conds = append(conds, "NOT archived")
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if f.Predicate != "" {
		add("predicate = $%d", f.Predicate)
	}
	if f.Source != "" {
		add("source = $%d", string(f.Source))
	}
	if f.ObjectKind != "" {
		add("object_kind = $%d", string(f.ObjectKind))
	}

	query := `SELECT ` + beliefColumns + ` FROM beliefs WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY importance DESC, last_updated_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list beliefs query: %w", err)
	}
	defer rows.Close()
	return collectBeliefs(rows)
}

// About returns live beliefs whose subject is the entity or whose string
// object names it.
func (s *BeliefStore) About(ctx context.Context, scope domain.Scope, entity string) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+` FROM beliefs
		WHERE tenant_id = $1 AND agent_id = $2 AND NOT archived
			AND (subject = $3 OR (object_kind = 'string' AND object->>'value' = $3))
		ORDER BY importance DESC`,
		scope.TenantID, scope.AgentID, entity,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBeliefs(rows)
}

func collectBeliefs(rows pgx.Rows) ([]domain.Belief, error) {
	var out []domain.Belief
	for rows.Next() {
		var b domain.Belief
		if err := scanBelief(rows, &b); err != nil {
			return nil, fmt.Errorf("scan belief row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBelief(row pgx.Row, b *domain.Belief) error {
	var objectJSON []byte
	var source string
	var archivedReason *string
	err := row.Scan(
		&b.ID, &b.TenantID, &b.AgentID, &b.Subject, &b.Predicate, &objectJSON, &b.Confidence, &source,
		&b.DecayRate, &b.Importance, &b.Evidence, &b.FormedAt, &b.LastUpdatedAt,
		&b.Archived, &archivedReason, &b.ArchivedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	b.Source = domain.BeliefSource(source)
	if archivedReason != nil {
		b.ArchivedReason = *archivedReason
	}
	if err := json.Unmarshal(objectJSON, &b.Object); err != nil {
		return fmt.Errorf("unmarshal object: %w", err)
	}
	return nil
}
