package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// DirectoryRepository is the local projection of identity-provider principals.
// It lets the workflow resolve assignees by id.
type DirectoryRepository interface {
	Upsert(ctx context.Context, principal domain.Principal) error
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Principal, error)
}

type directoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository returns a Postgres-backed implementation.
func NewDirectoryRepository(pool *pgxpool.Pool) DirectoryRepository {
	return &directoryRepository{pool: pool}
}

func (r *directoryRepository) Upsert(ctx context.Context, principal domain.Principal) error {
	const query = `
        INSERT INTO directory_users (id, name, role, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, role=EXCLUDED.role, updated_at=EXCLUDED.updated_at
        WHERE directory_users.name <> EXCLUDED.name OR directory_users.role <> EXCLUDED.role`
	_, err := conn(ctx, r.pool).Exec(ctx, query, principal.ID, principal.Name, principal.Role, time.Now().UTC())
	return err
}

func (r *directoryRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	const query = `SELECT id, name, role FROM directory_users WHERE id=$1`

	var principal domain.Principal
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&principal.ID,
		&principal.Name,
		&principal.Role,
	); err != nil {
		return nil, notFound(err)
	}
	return &principal, nil
}

func (r *directoryRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Principal, error) {
	const query = `SELECT id, name, role FROM directory_users WHERE role=$1 ORDER BY name ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Principal
	for rows.Next() {
		var p domain.Principal
		if err := rows.Scan(&p.ID, &p.Name, &p.Role); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
