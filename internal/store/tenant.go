package store

import (
	"context"

	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantStore looks tenants up only by API key hash; the plaintext key is
// never stored.
type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

// Create reports ErrConflict when the key hash is already taken.
func (s *TenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO tenants (name, api_key_hash)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		t.Name, t.APIKeyHash)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *TenantStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Tenant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, api_key_hash, created_at, updated_at
		FROM tenants
		WHERE api_key_hash = $1`, apiKeyHash)
	if err != nil {
		return nil, err
	}
	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[domain.Tenant])
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}
