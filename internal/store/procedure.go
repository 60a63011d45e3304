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

const procedureColumns = `id, tenant_id, agent_id, name, description, type, origin, steps, conditions,
	goal_types, preconditions, success_rate, execution_count, last_executed_at, created_at, updated_at`

type ProcedureStore struct {
	db *pgxpool.Pool
}

func NewProcedureStore(db *pgxpool.Pool) *ProcedureStore {
	return &ProcedureStore{db: db}
}

func (s *ProcedureStore) Create(ctx context.Context, p *domain.Procedure) error {
	stepsJSON, preJSON, err := marshalProcedure(p)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO procedures (
			tenant_id, agent_id, name, description, type, origin, steps, conditions,
			goal_types, preconditions, success_rate, execution_count, last_executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		p.TenantID, p.AgentID, p.Name, p.Description, string(p.Type), string(p.Origin), stepsJSON,
		nonNilStrings(p.Conditions), goalTypeStrings(p.GoalTypes), preJSON, p.SuccessRate, p.ExecutionCount, p.LastExecutedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *ProcedureStore) Update(ctx context.Context, p *domain.Procedure) error {
	stepsJSON, preJSON, err := marshalProcedure(p)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE procedures
		SET description = $1, type = $2, origin = $3, steps = $4, conditions = $5, goal_types = $6,
			preconditions = $7, success_rate = $8, execution_count = $9, last_executed_at = $10, updated_at = NOW()
		WHERE id = $11 AND tenant_id = $12 AND agent_id = $13`,
		p.Description, string(p.Type), string(p.Origin), stepsJSON, nonNilStrings(p.Conditions), goalTypeStrings(p.GoalTypes),
		preJSON, p.SuccessRate, p.ExecutionCount, p.LastExecutedAt,
		p.ID, p.TenantID, p.AgentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProcedureStore) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Procedure, error) {
	return s.getOne(ctx,
		`SELECT `+procedureColumns+` FROM procedures WHERE id = $1 AND tenant_id = $2 AND agent_id = $3`,
		id, scope.TenantID, scope.AgentID)
}

func (s *ProcedureStore) GetByName(ctx context.Context, scope domain.Scope, name string) (*domain.Procedure, error) {
	return s.getOne(ctx,
		`SELECT `+procedureColumns+` FROM procedures WHERE name = $1 AND tenant_id = $2 AND agent_id = $3`,
		name, scope.TenantID, scope.AgentID)
}

func (s *ProcedureStore) List(ctx context.Context, scope domain.Scope) ([]domain.Procedure, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+procedureColumns+` FROM procedures
		WHERE tenant_id = $1 AND agent_id = $2
		ORDER BY success_rate DESC, name`,
		scope.TenantID, scope.AgentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Procedure
	for rows.Next() {
		var p domain.Procedure
		if err := scanProcedure(rows, &p); err != nil {
			return nil, fmt.Errorf("scan procedure row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ProcedureStore) getOne(ctx context.Context, query string, args ...any) (*domain.Procedure, error) {
	var p domain.Procedure
	if err := scanProcedure(s.db.QueryRow(ctx, query, args...), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func marshalProcedure(p *domain.Procedure) (steps, preconditions []byte, err error) {
	steps, err = json.Marshal(p.Steps)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal steps: %w", err)
	}
	pre := p.Preconditions
	if pre == nil {
		pre = []domain.Precondition{}
	}
	preconditions, err = json.Marshal(pre)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal preconditions: %w", err)
	}
	return steps, preconditions, nil
}

func goalTypeStrings(types []domain.GoalType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func scanProcedure(row pgx.Row, p *domain.Procedure) error {
	var ptype, origin string
	var description *string
	var stepsJSON, preJSON []byte
	var goalTypes []string
	err := row.Scan(
		&p.ID, &p.TenantID, &p.AgentID, &p.Name, &description, &ptype, &origin, &stepsJSON, &p.Conditions,
		&goalTypes, &preJSON, &p.SuccessRate, &p.ExecutionCount, &p.LastExecutedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	p.Type = domain.ProcedureType(ptype)
	p.Origin = domain.ProcedureOrigin(origin)
	if description != nil {
		p.Description = *description
	}
	for _, gt := range goalTypes {
		p.GoalTypes = append(p.GoalTypes, domain.GoalType(gt))
	}
	if err := json.Unmarshal(stepsJSON, &p.Steps); err != nil {
		return fmt.Errorf("unmarshal steps: %w", err)
	}
	if len(preJSON) > 0 {
		if err := json.Unmarshal(preJSON, &p.Preconditions); err != nil {
			return fmt.Errorf("unmarshal preconditions: %w", err)
		}
	}
	return nil
}
