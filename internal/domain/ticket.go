package domain

import "time"

// TicketType discriminates the Ticket sum type.
type TicketType string

const (
	TicketTypeRepair  TicketType = "repair"
	TicketTypeBooking TicketType = "booking"
)

// RepairStatus enumerates lifecycle states for repair tickets.
type RepairStatus string

const (
	RepairStatusSubmitted           RepairStatus = "submitted"
	RepairStatusAssigned            RepairStatus = "assigned"
	RepairStatusInProgress          RepairStatus = "in_progress"
	RepairStatusOnHold              RepairStatus = "on_hold"
	RepairStatusWaitingForSubmitter RepairStatus = "waiting_for_submitter"
	RepairStatusClosed              RepairStatus = "closed"
	RepairStatusApproved            RepairStatus = "approved"
	RepairStatusRejected            RepairStatus = "rejected"
)

// BookingStatus enumerates lifecycle states for booking tickets.
type BookingStatus string

const (
	BookingStatusPendingReview BookingStatus = "pending_review"
	BookingStatusApproved      BookingStatus = "approved"
	BookingStatusRejected      BookingStatus = "rejected"
	BookingStatusCancelled     BookingStatus = "cancelled"
)

// Severity describes the urgency of a repair request.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AssetRef identifies the physical asset a repair ticket is about.
type AssetRef struct {
	Code            string `json:"code"`
	InventoryNumber string `json:"inventory_number"`
	Location        string `json:"location"`
}

// TicketBase holds the fields shared by every ticket variant.
type TicketBase struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	RequesterID   string          `json:"requester_id"`
	RequesterName string          `json:"requester_name"`
	AssigneeID    *string         `json:"assignee_id,omitempty"`
	AssigneeName  *string         `json:"assignee_name,omitempty"`
	Timeline      []TimelineEntry `json:"timeline"`
	Attachments   []Attachment    `json:"attachments"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Ticket is either a *RepairTicket or a *BookingTicket.
type Ticket interface {
	Base() *TicketBase
	Type() TicketType
	CurrentStatus() string
	Clone() Ticket
	sealed()
}

// RepairTicket is the repair variant.
type RepairTicket struct {
	TicketBase
	Status          RepairStatus `json:"status"`
	Severity        Severity     `json:"severity"`
	Asset           AssetRef     `json:"asset"`
	Diagnosis       *Diagnosis   `json:"diagnosis,omitempty"`
	WorkOrdersReady bool         `json:"work_orders_ready"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
}

// BookingTicket is the booking variant.
type BookingTicket struct {
	TicketBase
	Status             BookingStatus       `json:"status"`
	ResourceID         string              `json:"resource_id"`
	Start              time.Time           `json:"start"`
	End                time.Time           `json:"end"`
	Participants       int                 `json:"participants"`
	BreakoutRooms      int                 `json:"breakout_rooms"`
	CoHosts            []string            `json:"co_hosts"`
	Credentials        *BookingCredentials `json:"credentials,omitempty"`
	RejectionReason    string              `json:"rejection_reason,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
}

// BookingCredentials are assigned when a booking is approved.
// HostKeyHash is a bcrypt hash; the plaintext is only handed out once.
type BookingCredentials struct {
	MeetingLink string `json:"meeting_link"`
	MeetingID   string `json:"meeting_id"`
	Passcode    string `json:"passcode"`
	HostKeyHash string `json:"-"`
}

func (t *RepairTicket) Base() *TicketBase { return &t.TicketBase }
func (t *RepairTicket) Type() TicketType { return TicketTypeRepair }
func (t *RepairTicket) CurrentStatus() string { return string(t.Status) }
func (t *RepairTicket) sealed() {}

func (t *BookingTicket) Base() *TicketBase { return &t.TicketBase }
func (t *BookingTicket) Type() TicketType { return TicketTypeBooking }
func (t *BookingTicket) CurrentStatus() string { return string(t.Status) }
func (t *BookingTicket) sealed() {}

// Interval returns the booked half-open interval.
func (t *BookingTicket) Interval() Interval {
	return Interval{Start: t.Start, End: t.End}
}

// Clone returns a deep copy.
func (t *RepairTicket) Clone() Ticket {
	c := *t
	c.TicketBase = t.TicketBase.clone()
	if t.Diagnosis != nil {
		d := *t.Diagnosis
		c.Diagnosis = &d
	}
	if t.ClosedAt != nil {
		at := *t.ClosedAt
		c.ClosedAt = &at
	}
	return &c
}

// Clone returns a deep copy.
func (t *BookingTicket) Clone() Ticket {
	c := *t
	c.TicketBase = t.TicketBase.clone()
	if t.CoHosts != nil {
		c.CoHosts = append([]string(nil), t.CoHosts...)
	}
	if t.Credentials != nil {
		creds := *t.Credentials
		c.Credentials = &creds
	}
	return &c
}

func (b TicketBase) clone() TicketBase {
	c := b
	if b.AssigneeID != nil {
		id := *b.AssigneeID
		c.AssigneeID = &id
	}
	if b.AssigneeName != nil {
		name := *b.AssigneeName
		c.AssigneeName = &name
	}
	c.Timeline = cloneTimeline(b.Timeline)
	if b.Attachments != nil {
		c.Attachments = append([]Attachment(nil), b.Attachments...)
	}
	return c
}

// IsAssignedTo reports whether the ticket is assigned to the given principal id.
func (b *TicketBase) IsAssignedTo(id string) bool {
	return b.AssigneeID != nil && *b.AssigneeID == id
}

// Append adds a timeline entry and bumps UpdatedAt.
func (b *TicketBase) Append(entry TimelineEntry) {
	b.Timeline = append(b.Timeline, entry)
	b.UpdatedAt = entry.At
}

// AsRepair narrows a Ticket to its repair variant.
func AsRepair(t Ticket) (*RepairTicket, bool) {
	r, ok := t.(*RepairTicket)
	return r, ok
}

// AsBooking narrows a Ticket to its booking variant.
func AsBooking(t Ticket) (*BookingTicket, bool) {
	b, ok := t.(*BookingTicket)
	return b, ok
}

// BookingEvent projects a booking ticket for calendar and conflict checks.
func (t *BookingTicket) Event() BookingEvent {
	return BookingEvent{
		TicketID:     t.ID,
		TicketNumber: t.Number,
		ResourceID:   t.ResourceID,
		Start:        t.Start,
		End:          t.End,
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
	}
}
