package domain

import "sort"

// ConflictKind classifies the outcome of an availability check.
type ConflictKind string

const (
	ConflictClear ConflictKind = "clear"
	ConflictSoft  ConflictKind = "soft"
	ConflictHard  ConflictKind = "hard"
)

// Statuses that never block a new booking.
var terminalBookingStatuses = map[string]struct{}{
	string(BookingStatusRejected):  {},
	string(BookingStatusCancelled): {},
	"closed_unrepairable":          {},
}

// Statuses that block a new booking outright.
var hardBlockStatuses = map[string]struct{}{
	string(BookingStatusApproved): {},
	"assigned":                    {},
	"in_progress":                 {},
	"completed":                   {},
	"resolved":                    {},
	"closed":                      {},
}

// IsTerminalBookingStatus reports whether a booking in this status is ignored by conflict checks.
func IsTerminalBookingStatus(status string) bool {
	_, ok := terminalBookingStatuses[status]
	return ok
}

// IsHardBlockStatus reports whether an overlapping booking in this status rejects a new request.
func IsHardBlockStatus(status string) bool {
	_, ok := hardBlockStatuses[status]
	return ok
}

// Conflict is the result of ClassifyConflict. Event is nil when Kind is ConflictClear.
type Conflict struct {
	Kind        ConflictKind  `json:"kind"`
	Event       *BookingEvent `json:"event,omitempty"`
	Overlapping int           `json:"overlapping"`
}

// ClassifyConflict checks candidate against existing events on one resource.
// The first hard conflict wins; otherwise the first soft conflict, both in
// order of existing start time, then creation time, then ticket number.
// Events for excludeTicketID are ignored.
func ClassifyConflict(events []BookingEvent, candidate Interval, excludeTicketID string) Conflict {
	overlapping := make([]BookingEvent, 0, len(events))
	for _, event := range events {
		if excludeTicketID != "" && event.TicketID == excludeTicketID {
			continue
		}
		if IsTerminalBookingStatus(event.Status) {
			continue
		}
		if !candidate.Overlaps(event.Interval()) {
			continue
		}
		overlapping = append(overlapping, event)
	}
	if len(overlapping) == 0 {
		return Conflict{Kind: ConflictClear}
	}
	SortEvents(overlapping)

	for i := range overlapping {
		if IsHardBlockStatus(overlapping[i].Status) {
			event := overlapping[i]
			return Conflict{Kind: ConflictHard, Event: &event, Overlapping: len(overlapping)}
		}
	}
	event := overlapping[0]
	return Conflict{Kind: ConflictSoft, Event: &event, Overlapping: len(overlapping)}
}

// SortEvents orders events chronologically with a deterministic tie-break.
func SortEvents(events []BookingEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.TicketNumber < b.TicketNumber
	})
}

// ApprovalBlocker returns the reason t cannot be approved given the other
// bookings on its resource, or an empty string.
func ApprovalBlocker(t *BookingTicket, events []BookingEvent) string {
	conflict := ClassifyConflict(events, t.Interval(), t.ID)
	if conflict.Kind != ConflictHard {
		return ""
	}
	return "overlaps " + conflict.Event.Status + " booking " + conflict.Event.TicketNumber
}
