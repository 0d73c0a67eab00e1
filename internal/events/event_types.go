package events

import (
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketTransitioned    EventType = "ticket_transitioned"
	EventWorkOrderCreated      EventType = "work_order_created"
	EventWorkOrderTransitioned EventType = "work_order_transitioned"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID           string           `json:"id"`
	Type         EventType        `json:"type"`
	TicketID     string           `json:"ticket_id"`
	TicketNumber string           `json:"ticket_number"`
	Actor        domain.Principal `json:"actor"`
	Timestamp    time.Time        `json:"timestamp"`
	Payload      interface{}      `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketType  domain.TicketType `json:"ticket_type"`
	Title       string            `json:"title"`
	Status      string            `json:"status"`
	RequesterID string            `json:"requester_id"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	TicketType  domain.TicketType `json:"ticket_type"`
	Action      domain.Action     `json:"action"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	RequesterID string            `json:"requester_id"`
	AssigneeID  *string           `json:"assignee_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

// WorkOrderCreatedPayload payload.
type WorkOrderCreatedPayload struct {
	WorkOrderID string               `json:"work_order_id"`
	OrderType   domain.WorkOrderType `json:"order_type"`
	AssigneeID  *string              `json:"assignee_id,omitempty"`
}

// WorkOrderTransitionedPayload payload. AllResolved is set when this
// transition resolved the last open work order of the ticket.
type WorkOrderTransitionedPayload struct {
	WorkOrderID string                 `json:"work_order_id"`
	OrderType   domain.WorkOrderType   `json:"order_type"`
	From        domain.WorkOrderStatus `json:"from"`
	To          domain.WorkOrderStatus `json:"to"`
	AssigneeID  *string                `json:"assignee_id,omitempty"`
	AllResolved bool                   `json:"all_resolved"`
}
