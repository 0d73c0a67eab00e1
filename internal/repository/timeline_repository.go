package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

const (
	subjectTicket    = "ticket"
	subjectWorkOrder = "work_order"
)

// timelineStore persists the append-only audit trail of tickets and work orders.
// Existing rows are never updated; only entries beyond the stored count are inserted.
type timelineStore struct{}

func (timelineStore) appendNew(ctx context.Context, db DBTX, subjectType, subjectID string, entries []domain.TimelineEntry) error {
	var stored int
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM timeline_entries WHERE subject_type=$1 AND subject_id=$2`,
		subjectType, subjectID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("count timeline: %w", err)
	}
	if stored > len(entries) {
		return fmt.Errorf("timeline of %s %s shrank from %d to %d entries", subjectType, subjectID, stored, len(entries))
	}

	const query = `
        INSERT INTO timeline_entries (subject_type, subject_id, seq, at, actor_id, actor_name, action, from_status, to_status, details)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	for seq := stored; seq < len(entries); seq++ {
		e := entries[seq]
		if _, err := db.Exec(ctx, query,
			subjectType,
			subjectID,
			seq,
			e.At,
			e.ActorID,
			e.ActorName,
			e.Action,
			e.From,
			e.To,
			e.Details,
		); err != nil {
			return fmt.Errorf("insert timeline entry: %w", err)
		}
	}
	return nil
}

// listBySubjects loads the timelines of several subjects keyed by subject id.
func (timelineStore) listBySubjects(ctx context.Context, db DBTX, subjectType string, ids []string) (map[string][]domain.TimelineEntry, error) {
	result := make(map[string][]domain.TimelineEntry, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	const query = `
        SELECT subject_id::text, at, actor_id, actor_name, action, from_status, to_status, details
        FROM timeline_entries WHERE subject_type=$1 AND subject_id = ANY($2::uuid[])
        ORDER BY subject_id, seq ASC`
	rows, err := db.Query(ctx, query, subjectType, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			subjectID string
			entry     domain.TimelineEntry
		)
		if err := rows.Scan(
			&subjectID,
			&entry.At,
			&entry.ActorID,
			&entry.ActorName,
			&entry.Action,
			&entry.From,
			&entry.To,
			&entry.Details,
		); err != nil {
			return nil, err
		}
		entry.At = entry.At.UTC()
		result[subjectID] = append(result[subjectID], entry)
	}
	return result, rows.Err()
}
