package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// ResourceRepository stores the bookable resource registry.
type ResourceRepository interface {
	Create(ctx context.Context, resource *domain.Resource) error
	Update(ctx context.Context, resource *domain.Resource) error
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
	// GetByIDForUpdate serializes bookings of one resource inside a transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Resource, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Resource, error)
}

type resourceRepository struct {
	pool *pgxpool.Pool
}

// NewResourceRepository builds repository.
func NewResourceRepository(pool *pgxpool.Pool) ResourceRepository {
	return &resourceRepository{pool: pool}
}

const resourceColumns = `id::text, category, name, capacity, active, created_at, updated_at`

func (r *resourceRepository) Create(ctx context.Context, resource *domain.Resource) error {
	const query = `
        INSERT INTO resources (id, category, name, capacity, active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		resource.ID,
		resource.Category,
		resource.Name,
		resource.Capacity,
		resource.Active,
		resource.CreatedAt,
		resource.UpdatedAt,
	)
	return err
}

func (r *resourceRepository) Update(ctx context.Context, resource *domain.Resource) error {
	const query = `
        UPDATE resources SET category=$1, name=$2, capacity=$3, active=$4, updated_at=$5
        WHERE id=$6`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		resource.Category,
		resource.Name,
		resource.Capacity,
		resource.Active,
		resource.UpdatedAt,
		resource.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *resourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	return r.fetchSingle(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id=$1::uuid`, id)
}

func (r *resourceRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Resource, error) {
	return r.fetchSingle(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id=$1::uuid FOR UPDATE`, id)
}

func (r *resourceRepository) fetchSingle(ctx context.Context, query string, id string) (*domain.Resource, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	resource, err := scanResource(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &resource, nil
}

func (r *resourceRepository) List(ctx context.Context, activeOnly bool) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY category ASC, name ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, resource)
	}
	return result, rows.Err()
}

func scanResource(row pgx.Row) (domain.Resource, error) {
	var resource domain.Resource
	err := row.Scan(
		&resource.ID,
		&resource.Category,
		&resource.Name,
		&resource.Capacity,
		&resource.Active,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)
	resource.CreatedAt, resource.UpdatedAt = resource.CreatedAt.UTC(), resource.UpdatedAt.UTC()
	return resource, err
}
