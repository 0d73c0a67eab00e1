package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// TicketFilter captures list parameters. Zero values mean "any".
type TicketFilter struct {
	Type        *domain.TicketType
	Statuses    []string
	RequesterID *string
	AssigneeID  *string
	AssetCode   *string
	ResourceID  *string
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence for both variants.
type TicketRepository interface {
	Create(ctx context.Context, ticket domain.Ticket) error
	Update(ctx context.Context, ticket domain.Ticket) error
	GetByID(ctx context.Context, id string) (domain.Ticket, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListRepairByAsset(ctx context.Context, assetCode string) ([]*domain.RepairTicket, error)
	ListBookingEvents(ctx context.Context, resourceID string) ([]domain.BookingEvent, error)
}

type ticketRepository struct {
	pool        *pgxpool.Pool
	timeline    timelineStore
	attachments attachmentStore
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id::text, number, type, title, description, requester_id, requester_name, assignee_id, assignee_name,
               status, severity, asset_code, asset_inventory_number, asset_location, diagnosis, work_orders_ready,
               rejection_reason, closed_at, resource_id::text, start_at, end_at, participants, breakout_rooms,
               co_hosts, credentials, host_key_hash, cancellation_reason, created_at, updated_at`

// ticketRow mirrors the tickets table; variant columns are nullable.
type ticketRow struct {
	ID                   string
	Number               string
	Type                 domain.TicketType
	Title                string
	Description          string
	RequesterID          string
	RequesterName        string
	AssigneeID           *string
	AssigneeName         *string
	Status               string
	Severity             *string
	AssetCode            *string
	AssetInventoryNumber *string
	AssetLocation        *string
	Diagnosis            *domain.Diagnosis
	WorkOrdersReady      bool
	RejectionReason      string
	ClosedAt             *time.Time
	ResourceID           *string
	StartAt              *time.Time
	EndAt                *time.Time
	Participants         *int
	BreakoutRooms        *int
	CoHosts              []string
	Credentials          *domain.BookingCredentials
	HostKeyHash          *string
	CancellationReason   string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (row *ticketRow) scan(s pgx.Row) error {
	return s.Scan(
		&row.ID,
		&row.Number,
		&row.Type,
		&row.Title,
		&row.Description,
		&row.RequesterID,
		&row.RequesterName,
		&row.AssigneeID,
		&row.AssigneeName,
		&row.Status,
		&row.Severity,
		&row.AssetCode,
		&row.AssetInventoryNumber,
		&row.AssetLocation,
		&row.Diagnosis,
		&row.WorkOrdersReady,
		&row.RejectionReason,
		&row.ClosedAt,
		&row.ResourceID,
		&row.StartAt,
		&row.EndAt,
		&row.Participants,
		&row.BreakoutRooms,
		&row.CoHosts,
		&row.Credentials,
		&row.HostKeyHash,
		&row.CancellationReason,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
}

func (row *ticketRow) toDomain() (domain.Ticket, error) {
	base := domain.TicketBase{
		ID:            row.ID,
		Number:        row.Number,
		Title:         row.Title,
		Description:   row.Description,
		RequesterID:   row.RequesterID,
		RequesterName: row.RequesterName,
		AssigneeID:    row.AssigneeID,
		AssigneeName:  row.AssigneeName,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
	switch row.Type {
	case domain.TicketTypeRepair:
		t := &domain.RepairTicket{
			TicketBase:      base,
			Status:          domain.RepairStatus(row.Status),
			Severity:        domain.Severity(deref(row.Severity)),
			Diagnosis:       row.Diagnosis,
			WorkOrdersReady: row.WorkOrdersReady,
			RejectionReason: row.RejectionReason,
			Asset: domain.AssetRef{
				Code:            deref(row.AssetCode),
				InventoryNumber: deref(row.AssetInventoryNumber),
				Location:        deref(row.AssetLocation),
			},
		}
		if row.ClosedAt != nil {
			closed := row.ClosedAt.UTC()
			t.ClosedAt = &closed
		}
		return t, nil
	case domain.TicketTypeBooking:
		t := &domain.BookingTicket{
			TicketBase:         base,
			Status:             domain.BookingStatus(row.Status),
			ResourceID:         deref(row.ResourceID),
			CoHosts:            row.CoHosts,
			Credentials:        row.Credentials,
			RejectionReason:    row.RejectionReason,
			CancellationReason: row.CancellationReason,
		}
		if row.StartAt != nil {
			t.Start = row.StartAt.UTC()
		}
		if row.EndAt != nil {
			t.End = row.EndAt.UTC()
		}
		if row.Participants != nil {
			t.Participants = *row.Participants
		}
		if row.BreakoutRooms != nil {
			t.BreakoutRooms = *row.BreakoutRooms
		}
		if t.Credentials != nil && row.HostKeyHash != nil {
			t.Credentials.HostKeyHash = *row.HostKeyHash
		}
		return t, nil
	}
	return nil, fmt.Errorf("ticket %s has unknown type %q", row.ID, row.Type)
}

// ticketArgs flattens a ticket into the column order used by insert and update.
func ticketArgs(ticket domain.Ticket) ([]any, error) {
	base := ticket.Base()
	args := []any{
		base.ID,
		base.Number,
		ticket.Type(),
		base.Title,
		base.Description,
		base.RequesterID,
		base.RequesterName,
		base.AssigneeID,
		base.AssigneeName,
		ticket.CurrentStatus(),
	}
	switch t := ticket.(type) {
	case *domain.RepairTicket:
		args = append(args,
			string(t.Severity),
			t.Asset.Code,
			t.Asset.InventoryNumber,
			t.Asset.Location,
			t.Diagnosis,
			t.WorkOrdersReady,
			t.RejectionReason,
			t.ClosedAt,
			nil, nil, nil, nil, nil,
			[]string{},
			nil, nil,
			"",
		)
	case *domain.BookingTicket:
		var hostKeyHash *string
		if t.Credentials != nil && t.Credentials.HostKeyHash != "" {
			hash := t.Credentials.HostKeyHash
			hostKeyHash = &hash
		}
		coHosts := t.CoHosts
		if coHosts == nil {
			coHosts = []string{}
		}
		args = append(args,
			nil, nil, nil, nil, nil,
			false,
			t.RejectionReason,
			nil,
			t.ResourceID,
			t.Start,
			t.End,
			t.Participants,
			t.BreakoutRooms,
			coHosts,
			t.Credentials,
			hostKeyHash,
			t.CancellationReason,
		)
	default:
		return nil, fmt.Errorf("unsupported ticket type %T", ticket)
	}
	return append(args, base.CreatedAt, base.UpdatedAt), nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket domain.Ticket) error {
	args, err := ticketArgs(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, number, type, title, description, requester_id, requester_name, assignee_id, assignee_name,
            status, severity, asset_code, asset_inventory_number, asset_location, diagnosis, work_orders_ready,
            rejection_reason, closed_at, resource_id, start_at, end_at, participants, breakout_rooms,
            co_hosts, credentials, host_key_hash, cancellation_reason, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)`
	db := conn(ctx, r.pool)
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return err
	}
	base := ticket.Base()
	if err := r.attachments.replace(ctx, db, base.ID, base.Attachments); err != nil {
		return err
	}
	return r.timeline.appendNew(ctx, db, subjectTicket, base.ID, base.Timeline)
}

func (r *ticketRepository) Update(ctx context.Context, ticket domain.Ticket) error {
	args, err := ticketArgs(ticket)
	if err != nil {
		return err
	}
	// id, number, type and created_at are immutable.
	args = append(args[:27], args[28])
	const query = `
        UPDATE tickets SET title=$4, description=$5, requester_id=$6, requester_name=$7, assignee_id=$8, assignee_name=$9,
            status=$10, severity=$11, asset_code=$12, asset_inventory_number=$13, asset_location=$14, diagnosis=$15,
            work_orders_ready=$16, rejection_reason=$17, closed_at=$18, resource_id=$19, start_at=$20, end_at=$21,
            participants=$22, breakout_rooms=$23, co_hosts=$24, credentials=$25, host_key_hash=$26,
            cancellation_reason=$27, updated_at=$28
        WHERE id=$1 AND number=$2 AND type=$3`
	db := conn(ctx, r.pool)
	cmd, err := db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	base := ticket.Base()
	if err := r.attachments.replace(ctx, db, base.ID, base.Attachments); err != nil {
		return err
	}
	return r.timeline.appendNew(ctx, db, subjectTicket, base.ID, base.Timeline)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1::uuid`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1::uuid FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, id string) (domain.Ticket, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	db := conn(ctx, r.pool)
	var row ticketRow
	if err := row.scan(db.QueryRow(ctx, query, id)); err != nil {
		return nil, notFound(err)
	}
	ticket, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, db, []domain.Ticket{ticket}); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.AssetCode != nil {
		args = append(args, strings.ToLower(strings.TrimSpace(*filter.AssetCode)))
		clauses = append(clauses, fmt.Sprintf("LOWER(TRIM(asset_code))=$%d", len(args)))
	}
	if filter.ResourceID != nil {
		if !isUUID(*filter.ResourceID) {
			return []domain.Ticket{}, nil
		}
		args = append(args, *filter.ResourceID)
		clauses = append(clauses, fmt.Sprintf("resource_id=$%d::uuid", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC, number DESC", base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	db := conn(ctx, r.pool)
	tickets, err := r.query(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, db, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) ListRepairByAsset(ctx context.Context, assetCode string) ([]*domain.RepairTicket, error) {
	typ := domain.TicketTypeRepair
	tickets, err := r.List(ctx, TicketFilter{Type: &typ, AssetCode: &assetCode})
	if err != nil {
		return nil, err
	}
	result := make([]*domain.RepairTicket, 0, len(tickets))
	for _, t := range tickets {
		if repair, ok := domain.AsRepair(t); ok {
			result = append(result, repair)
		}
	}
	return result, nil
}

func (r *ticketRepository) ListBookingEvents(ctx context.Context, resourceID string) ([]domain.BookingEvent, error) {
	const query = `
        SELECT id::text, number, resource_id::text, start_at, end_at, status, created_at
        FROM tickets WHERE type='booking' AND resource_id=$1::uuid
        ORDER BY start_at ASC, created_at ASC, number ASC`
	if !isUUID(resourceID) {
		return []domain.BookingEvent{}, nil
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BookingEvent
	for rows.Next() {
		var ev domain.BookingEvent
		if err := rows.Scan(
			&ev.TicketID,
			&ev.TicketNumber,
			&ev.ResourceID,
			&ev.Start,
			&ev.End,
			&ev.Status,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		ev.Start, ev.End, ev.CreatedAt = ev.Start.UTC(), ev.End.UTC(), ev.CreatedAt.UTC()
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (r *ticketRepository) query(ctx context.Context, db DBTX, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var row ticketRow
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		ticket, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// hydrate loads timelines and attachments for the given tickets.
func (r *ticketRepository) hydrate(ctx context.Context, db DBTX, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.Base().ID
	}
	timelines, err := r.timeline.listBySubjects(ctx, db, subjectTicket, ids)
	if err != nil {
		return err
	}
	attachments, err := r.attachments.listByTickets(ctx, db, ids)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		base := t.Base()
		base.Timeline = timelines[base.ID]
		base.Attachments = attachments[base.ID]
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
