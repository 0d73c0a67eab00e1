package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// attachmentStore keeps the attachment references of a ticket. Files live in
// the external attachment store; only their metadata is persisted here.
type attachmentStore struct{}

func (attachmentStore) replace(ctx context.Context, db DBTX, ticketID string, attachments []domain.Attachment) error {
	if _, err := db.Exec(ctx, `DELETE FROM ticket_attachments WHERE ticket_id=$1`, ticketID); err != nil {
		return err
	}
	const query = `
        INSERT INTO ticket_attachments (id, ticket_id, position, url, file_name, mime_type)
        VALUES ($1,$2,$3,$4,$5,$6)`
	for i, a := range attachments {
		if _, err := db.Exec(ctx, query, a.ID, ticketID, i, a.URL, a.FileName, a.MimeType); err != nil {
			return err
		}
	}
	return nil
}

func (attachmentStore) listByTickets(ctx context.Context, db DBTX, ticketIDs []string) (map[string][]domain.Attachment, error) {
	result := make(map[string][]domain.Attachment, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT ticket_id::text, id, url, file_name, mime_type
        FROM ticket_attachments WHERE ticket_id = ANY($1::uuid[])
        ORDER BY ticket_id, position ASC`
	rows, err := db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticketID string
			a        domain.Attachment
		)
		if err := rows.Scan(&ticketID, &a.ID, &a.URL, &a.FileName, &a.MimeType); err != nil {
			return nil, err
		}
		result[ticketID] = append(result[ticketID], a)
	}
	return result, rows.Err()
}
