package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/notify"
)

// Enqueuer accepts notifications for asynchronous delivery.
type Enqueuer interface {
	Enqueue(n notify.Notification) bool
}

// NotificationService turns domain events into user notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      Enqueuer
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue Enqueuer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketTransitioned, n.handleTicketTransitioned)
	n.dispatcher.Subscribe(events.EventWorkOrderCreated, n.handleWorkOrderCreated)
	n.dispatcher.Subscribe(events.EventWorkOrderTransitioned, n.handleWorkOrderTransitioned)
}

func (n *NotificationService) handleTicketTransitioned(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketTransitionedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	ref := event.TicketNumber
	switch {
	case payload.Action == domain.ActionAssign:
		n.send(event, deref(payload.AssigneeID), "Ticket assigned",
			fmt.Sprintf("%s has been assigned to you", ref), notify.SeverityInfo)
	case payload.Action == domain.ActionReopen:
		n.send(event, deref(payload.AssigneeID), "Ticket reopened",
			fmt.Sprintf("%s was reopened by the requester%s", ref, suffix(payload.Reason)), notify.SeverityWarning)
	case payload.TicketType == domain.TicketTypeBooking && payload.Action == domain.ActionApprove:
		n.send(event, payload.RequesterID, "Booking approved",
			fmt.Sprintf("%s was approved; meeting credentials are available", ref), notify.SeveritySuccess)
	case payload.To == string(domain.RepairStatusRejected):
		n.send(event, payload.RequesterID, "Request rejected",
			fmt.Sprintf("%s was rejected%s", ref, suffix(payload.Reason)), notify.SeverityError)
	case payload.To == string(domain.RepairStatusWaitingForSubmitter):
		n.send(event, payload.RequesterID, "Please confirm the repair",
			fmt.Sprintf("%s is ready for your confirmation", ref), notify.SeverityInfo)
	case payload.To == string(domain.RepairStatusClosed):
		n.send(event, payload.RequesterID, "Ticket closed",
			fmt.Sprintf("%s is closed", ref), notify.SeveritySuccess)
	}
	return nil
}

func (n *NotificationService) handleWorkOrderCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.WorkOrderCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.send(event, deref(payload.AssigneeID), "Work order created",
		fmt.Sprintf("a %s work order was opened on %s", payload.OrderType, event.TicketNumber), notify.SeverityInfo)
	return nil
}

func (n *NotificationService) handleWorkOrderTransitioned(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.WorkOrderTransitionedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	assignee := deref(payload.AssigneeID)
	severity := notify.SeverityInfo
	if payload.To == domain.WorkOrderStatusUnsuccessful {
		severity = notify.SeverityWarning
	}
	n.send(event, assignee, "Work order updated",
		fmt.Sprintf("%s work order on %s moved to %s", payload.OrderType, event.TicketNumber, payload.To), severity)
	if payload.AllResolved && payload.To.Resolved() {
		// Sent even when the assignee resolved it themselves: it is the cue to resume work.
		n.enqueue(event, assignee, "All work orders resolved",
			fmt.Sprintf("every work order on %s is resolved; the ticket can be marked ready", event.TicketNumber),
			notify.SeveritySuccess)
	}
	return nil
}

// send notifies userID unless they caused the event.
func (n *NotificationService) send(event events.Event, userID, title, message string, severity notify.Severity) {
	if userID == event.Actor.ID {
		return
	}
	n.enqueue(event, userID, title, message, severity)
}

func (n *NotificationService) enqueue(event events.Event, userID, title, message string, severity notify.Severity) {
	if userID == "" || n.queue == nil {
		return
	}
	accepted := n.queue.Enqueue(notify.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Severity:  severity,
		TicketID:  event.TicketID,
		CreatedAt: event.Timestamp,
	})
	if !accepted {
		n.logger.Warn("notification dropped",
			zap.String("user_id", userID),
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func suffix(reason string) string {
	if reason == "" {
		return ""
	}
	return ": " + reason
}
