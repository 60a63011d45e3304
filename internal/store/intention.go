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
)

const intentionColumns = `id, tenant_id, agent_id, type, description, plan, fingerprint, priority,
	dependencies, goal_id, parent_id, coordination, procedure_id, procedure_name, preconditions,
	estimated_duration, status, attempt, replanned_from, result, failure_reason,
	started_at, completed_at, created_at, updated_at`

type IntentionStore struct {
	db *pgxpool.Pool
}

func NewIntentionStore(db *pgxpool.Pool) *IntentionStore {
	return &IntentionStore{db: db}
}

func (s *IntentionStore) Create(ctx context.Context, i *domain.Intention) error {
	planJSON, preJSON, resultJSON, err := marshalIntention(i)
	if err != nil {
		return err
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO intentions (
			tenant_id, agent_id, type, description, plan, fingerprint, priority,
			dependencies, goal_id, parent_id, coordination, procedure_id, procedure_name, preconditions,
			estimated_duration, status, attempt, replanned_from, result, failure_reason, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at`,
		i.TenantID, i.AgentID, string(i.Type), i.Description, planJSON, i.Fingerprint, i.Priority,
		nonNilIDs(i.Dependencies), i.GoalID, i.ParentID, i.Coordination, i.ProcedureID, i.ProcedureName, preJSON,
		int64(i.EstimatedDuration), string(i.Status), i.Attempt, i.ReplannedFrom, resultJSON, i.FailureReason,
		i.StartedAt, i.CompletedAt,
	).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
}

func (s *IntentionStore) Update(ctx context.Context, i *domain.Intention) error {
	planJSON, preJSON, resultJSON, err := marshalIntention(i)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`UPDATE intentions
		SET type = $1, plan = $2, fingerprint = $3, priority = $4, dependencies = $5, coordination = $6,
			preconditions = $7, estimated_duration = $8, status = $9, attempt = $10, result = $11,
			failure_reason = $12, started_at = $13, completed_at = $14, updated_at = NOW()
		WHERE id = $15 AND tenant_id = $16 AND agent_id = $17
		RETURNING updated_at`,
		string(i.Type), planJSON, i.Fingerprint, i.Priority, nonNilIDs(i.Dependencies), i.Coordination,
		preJSON, int64(i.EstimatedDuration), string(i.Status), i.Attempt, resultJSON,
		i.FailureReason, i.StartedAt, i.CompletedAt,
		i.ID, i.TenantID, i.AgentID,
	).Scan(&i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *IntentionStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Intention, error) {
	var i domain.Intention
	err := scanIntention(s.db.QueryRow(ctx,
		`SELECT `+intentionColumns+` FROM intentions WHERE id = $1 AND tenant_id = $2 AND agent_id = $3`,
		id, scope.TenantID, scope.AgentID,
	), &i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (s *IntentionStore) List(ctx context.Context, scope domain.Scope, f domain.IntentionFilter) ([]domain.Intention, error) {
	query := `SELECT ` + intentionColumns + ` FROM intentions WHERE tenant_id = $1 AND agent_id = $2`
	args := []any{scope.TenantID, scope.AgentID}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if f.GoalID != nil {
		args = append(args, *f.GoalID)
		query += fmt.Sprintf(" AND goal_id = $%d", len(args))
	}
	if f.ParentID != nil {
		args = append(args, *f.ParentID)
		query += fmt.Sprintf(" AND parent_id = $%d", len(args))
	}
	query += " ORDER BY priority DESC, created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intentions query: %w", err)
	}
	defer rows.Close()

	var out []domain.Intention
	for rows.Next() {
		var i domain.Intention
		if err := scanIntention(rows, &i); err != nil {
			return nil, fmt.Errorf("scan intention row: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func marshalIntention(i *domain.Intention) (plan, pre, result []byte, err error) {
	if plan, err = json.Marshal(i.Plan); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal plan: %w", err)
	}
	if pre, err = json.Marshal(i.Preconditions); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal preconditions: %w", err)
	}
	if i.Result != nil {
		if result, err = json.Marshal(i.Result); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return plan, pre, result, nil
}

func scanIntention(row pgx.Row, i *domain.Intention) error {
	var itype, status string
	var planJSON, preJSON, resultJSON []byte
	var procName, failure *string
	var estimated int64
	err := row.Scan(
		&i.ID, &i.TenantID, &i.AgentID, &itype, &i.Description, &planJSON, &i.Fingerprint, &i.Priority,
		&i.Dependencies, &i.GoalID, &i.ParentID, &i.Coordination, &i.ProcedureID, &procName, &preJSON,
		&estimated, &status, &i.Attempt, &i.ReplannedFrom, &resultJSON, &failure,
		&i.StartedAt, &i.CompletedAt, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return err
	}
	i.Type = domain.IntentionType(itype)
	i.Status = domain.IntentionStatus(status)
	i.EstimatedDuration = time.Duration(estimated)
	if procName != nil {
		i.ProcedureName = *procName
	}
	if failure != nil {
		i.FailureReason = *failure
	}
	if err := json.Unmarshal(planJSON, &i.Plan); err != nil {
		return fmt.Errorf("unmarshal plan: %w", err)
	}
	if len(preJSON) > 0 {
		if err := json.Unmarshal(preJSON, &i.Preconditions); err != nil {
			return fmt.Errorf("unmarshal preconditions: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		i.Result = &domain.ActionResult{}
		if err := json.Unmarshal(resultJSON, i.Result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}
