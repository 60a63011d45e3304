package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const goalColumns = `id, tenant_id, agent_id, type, description, category, tags, priority, urgency,
	importance, base_importance, high_value, target, progress, current_value, status,
	status_reason, trigger_name, completed_at, created_at, updated_at`

type GoalStore struct {
	db *pgxpool.Pool
}

func NewGoalStore(db *pgxpool.Pool) *GoalStore {
	return &GoalStore{db: db}
}

func (s *GoalStore) Create(ctx context.Context, g *domain.Goal) error {
	targetJSON, err := json.Marshal(g.Target)
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO goals (
			tenant_id, agent_id, type, description, category, tags, priority, urgency,
			importance, base_importance, high_value, target, progress, current_value, status,
			status_reason, trigger_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`,
		g.TenantID, g.AgentID, string(g.Type), g.Description, g.Category, nonNilStrings(g.Tags), g.Priority, g.Urgency,
		g.Importance, g.BaseImportance, g.HighValue, targetJSON, g.Progress, g.CurrentValue, string(g.Status),
		g.StatusReason, g.TriggerName,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

func (s *GoalStore) Update(ctx context.Context, g *domain.Goal) error {
	targetJSON, err := json.Marshal(g.Target)
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`UPDATE goals
		SET priority = $1, urgency = $2, importance = $3, base_importance = $4, high_value = $5,
			target = $6, progress = $7, current_value = $8, status = $9, status_reason = $10,
			completed_at = $11, updated_at = NOW()
		WHERE id = $12 AND tenant_id = $13 AND agent_id = $14
		RETURNING updated_at`,
		g.Priority, g.Urgency, g.Importance, g.BaseImportance, g.HighValue,
		targetJSON, g.Progress, g.CurrentValue, string(g.Status), g.StatusReason,
		g.CompletedAt, g.ID, g.TenantID, g.AgentID,
	).Scan(&g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *GoalStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Goal, error) {
	var g domain.Goal
	err := scanGoal(s.db.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND tenant_id = $2 AND agent_id = $3`,
		id, scope.TenantID, scope.AgentID,
	), &g)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *GoalStore) List(ctx context.Context, scope domain.Scope, f domain.GoalFilter) ([]domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE tenant_id = $1 AND agent_id = $2`
	args := []any{scope.TenantID, scope.AgentID}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY priority DESC, created_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals query: %w", err)
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var g domain.Goal
		if err := scanGoal(rows, &g); err != nil {
			return nil, fmt.Errorf("scan goal row: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func scanGoal(row pgx.Row, g *domain.Goal) error {
	var goalType, status string
	var targetJSON []byte
	var statusReason, triggerName *string
	err := row.Scan(
		&g.ID, &g.TenantID, &g.AgentID, &goalType, &g.Description, &g.Category, &g.Tags, &g.Priority, &g.Urgency,
		&g.Importance, &g.BaseImportance, &g.HighValue, &targetJSON, &g.Progress, &g.CurrentValue, &status,
		&statusReason, &triggerName, &g.CompletedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return err
	}
	g.Type = domain.GoalType(goalType)
	g.Status = domain.GoalStatus(status)
	if statusReason != nil {
		g.StatusReason = *statusReason
	}
	if triggerName != nil {
		g.TriggerName = *triggerName
	}
	if err := json.Unmarshal(targetJSON, &g.Target); err != nil {
		return fmt.Errorf("unmarshal target: %w", err)
	}
	return nil
}
