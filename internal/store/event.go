package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventStore struct {
	db *pgxpool.Pool
}

func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, e *domain.Event) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO events (tenant_id, agent_id, kind, subject_id, from_state, to_state, cycle_id, data, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		e.TenantID, e.AgentID, string(e.Kind), e.SubjectID, e.From, e.To, e.CycleID, dataJSON, e.At,
	).Scan(&e.ID)
}

func (s *EventStore) List(ctx context.Context, scope domain.Scope, kind domain.EventKind, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, tenant_id, agent_id, kind, subject_id, from_state, to_state, cycle_id, data, at
		FROM events WHERE tenant_id = $1 AND agent_id = $2`
	args := []any{scope.TenantID, scope.AgentID}
	if kind != "" {
		args = append(args, string(kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var kindStr string
		var from, to *string
		var dataJSON []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AgentID, &kindStr, &e.SubjectID, &from, &to, &e.CycleID, &dataJSON, &e.At); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Kind = domain.EventKind(kindStr)
		if from != nil {
			e.From = *from
		}
		if to != nil {
			e.To = *to
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
				return nil, fmt.Errorf("unmarshal data: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
