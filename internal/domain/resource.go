package domain

import "time"

// Resource is a bookable unit such as a room, vehicle or piece of equipment.
type Resource struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether Start is strictly before End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether the two half-open intervals intersect.
// Adjacent intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// BookingEvent is the read view of a booking ticket on a resource.
type BookingEvent struct {
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	ResourceID   string    `json:"resource_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Interval returns the event's half-open interval.
func (e BookingEvent) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}
