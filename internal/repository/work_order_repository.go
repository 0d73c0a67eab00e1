package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// WorkOrderRepository persists procurement work orders.
type WorkOrderRepository interface {
	Create(ctx context.Context, order *domain.WorkOrder) error
	Update(ctx context.Context, order *domain.WorkOrder) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkOrder, error)
	// ListByTickets returns work orders keyed by ticket id.
	ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.WorkOrder, error)
}

type workOrderRepository struct {
	pool     *pgxpool.Pool
	timeline timelineStore
}

// NewWorkOrderRepository builds repository.
func NewWorkOrderRepository(pool *pgxpool.Pool) WorkOrderRepository {
	return &workOrderRepository{pool: pool}
}

const workOrderColumns = `id::text, ticket_id::text, type, status, payload, failure_reason, completion_notes,
               asset_condition_change, created_by, created_at, updated_at`

func (r *workOrderRepository) Create(ctx context.Context, order *domain.WorkOrder) error {
	const query = `
        INSERT INTO work_orders (id, ticket_id, type, status, payload, failure_reason, completion_notes,
            asset_condition_change, created_by, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	db := conn(ctx, r.pool)
	if _, err := db.Exec(ctx, query,
		order.ID,
		order.TicketID,
		order.Type,
		order.Status,
		order.Payload,
		order.FailureReason,
		order.CompletionNotes,
		order.AssetConditionChange,
		order.CreatedBy,
		order.CreatedAt,
		order.UpdatedAt,
	); err != nil {
		return err
	}
	return r.timeline.appendNew(ctx, db, subjectWorkOrder, order.ID, order.Timeline)
}

func (r *workOrderRepository) Update(ctx context.Context, order *domain.WorkOrder) error {
	const query = `
        UPDATE work_orders SET status=$1, payload=$2, failure_reason=$3, completion_notes=$4,
            asset_condition_change=$5, updated_at=$6
        WHERE id=$7`
	db := conn(ctx, r.pool)
	cmd, err := db.Exec(ctx, query,
		order.Status,
		order.Payload,
		order.FailureReason,
		order.CompletionNotes,
		order.AssetConditionChange,
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return r.timeline.appendNew(ctx, db, subjectWorkOrder, order.ID, order.Timeline)
}

func (r *workOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	db := conn(ctx, r.pool)
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id=$1::uuid`
	order, err := scanWorkOrder(db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	timelines, err := r.timeline.listBySubjects(ctx, db, subjectWorkOrder, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Timeline = timelines[order.ID]
	return &order, nil
}

func (r *workOrderRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkOrder, error) {
	byTicket, err := r.ListByTickets(ctx, []string{ticketID})
	if err != nil {
		return nil, err
	}
	return byTicket[ticketID], nil
}

func (r *workOrderRepository) ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.WorkOrder, error) {
	result := make(map[string][]domain.WorkOrder, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	db := conn(ctx, r.pool)
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE ticket_id = ANY($1::uuid[]) ORDER BY created_at ASC, id ASC`
	rows, err := db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	var orders []domain.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	timelines, err := r.timeline.listBySubjects(ctx, db, subjectWorkOrder, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Timeline = timelines[o.ID]
		result[o.TicketID] = append(result[o.TicketID], o)
	}
	return result, nil
}

func scanWorkOrder(row pgx.Row) (domain.WorkOrder, error) {
	var order domain.WorkOrder
	err := row.Scan(
		&order.ID,
		&order.TicketID,
		&order.Type,
		&order.Status,
		&order.Payload,
		&order.FailureReason,
		&order.CompletionNotes,
		&order.AssetConditionChange,
		&order.CreatedBy,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	order.CreatedAt, order.UpdatedAt = order.CreatedAt.UTC(), order.UpdatedAt.UTC()
	return order, err
}
