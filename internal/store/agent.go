package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const agentColumns = `id, tenant_id, external_id, name, role, capabilities, metadata, created_at, updated_at`

type AgentStore struct {
	db *pgxpool.Pool
}

func NewAgentStore(db *pgxpool.Pool) *AgentStore {
	return &AgentStore{db: db}
}

func (s *AgentStore) Create(ctx context.Context, a *domain.Agent) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO agents (tenant_id, external_id, name, role, capabilities, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		a.TenantID, a.ExternalID, a.Name, a.Role, nonNilStrings(a.Capabilities), a.Metadata,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *AgentStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Agent, error) {
	return s.getOne(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1 AND tenant_id = $2`,
		id, tenantID)
}

func (s *AgentStore) GetByExternalID(ctx context.Context, externalID string, tenantID uuid.UUID) (*domain.Agent, error) {
	return s.getOne(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE external_id = $1 AND tenant_id = $2`,
		externalID, tenantID)
}

func (s *AgentStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.Agent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var a domain.Agent
		if err := scanAgent(rows, &a); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// ListScopes returns every (tenant, agent) pair. Background workers iterate it.
func (s *AgentStore) ListScopes(ctx context.Context) ([]domain.Scope, error) {
	rows, err := s.db.Query(ctx, `SELECT tenant_id, id FROM agents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []domain.Scope
	for rows.Next() {
		var sc domain.Scope
		if err := rows.Scan(&sc.TenantID, &sc.AgentID); err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, rows.Err()
}

func (s *AgentStore) getOne(ctx context.Context, query string, args ...any) (*domain.Agent, error) {
	a := &domain.Agent{}
	if err := scanAgent(s.db.QueryRow(ctx, query, args...), a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func scanAgent(row pgx.Row, a *domain.Agent) error {
	return row.Scan(&a.ID, &a.TenantID, &a.ExternalID, &a.Name, &a.Role, &a.Capabilities, &a.Metadata, &a.CreatedAt, &a.UpdatedAt)
}
