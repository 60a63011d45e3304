package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WorkingMemoryStore struct {
	db *pgxpool.Pool
}

func NewWorkingMemoryStore(db *pgxpool.Pool) *WorkingMemoryStore {
	return &WorkingMemoryStore{db: db}
}

func (s *WorkingMemoryStore) Insert(ctx context.Context, item *domain.WorkingMemoryItem) error {
	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO working_memory_items (tenant_id, agent_id, context_type, key, payload, priority, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		item.TenantID, item.AgentID, string(item.ContextType), item.Key, payloadJSON, item.Priority, item.ExpiresAt,
	).Scan(&item.ID, &item.CreatedAt)
}

func (s *WorkingMemoryStore) List(ctx context.Context, scope domain.Scope) ([]domain.WorkingMemoryItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, agent_id, context_type, key, payload, priority, expires_at, created_at
		FROM working_memory_items
		WHERE tenant_id = $1 AND agent_id = $2
		ORDER BY priority DESC, created_at DESC`,
		scope.TenantID, scope.AgentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.WorkingMemoryItem
	for rows.Next() {
		var it domain.WorkingMemoryItem
		var ctxType string
		var key *string
		var payloadJSON []byte
		if err := rows.Scan(&it.ID, &it.TenantID, &it.AgentID, &ctxType, &key, &payloadJSON, &it.Priority, &it.ExpiresAt, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan working memory row: %w", err)
		}
		it.ContextType = domain.ContextType(ctxType)
		if key != nil {
			it.Key = *key
		}
		if err := json.Unmarshal(payloadJSON, &it.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *WorkingMemoryStore) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM working_memory_items WHERE id = $1 AND tenant_id = $2 AND agent_id = $3`,
		id, scope.TenantID, scope.AgentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *WorkingMemoryStore) Clear(ctx context.Context, scope domain.Scope) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM working_memory_items WHERE tenant_id = $1 AND agent_id = $2`,
		scope.TenantID, scope.AgentID,
	)
	return err
}

func (s *WorkingMemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM working_memory_items WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
