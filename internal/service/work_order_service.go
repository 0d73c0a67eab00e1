package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// WorkOrderService manages procurement sub-tasks of repair tickets.
type WorkOrderService struct {
	workflow
}

// WorkOrderInput describes a new work order.
type WorkOrderInput struct {
	Type    domain.WorkOrderType
	Payload domain.WorkOrderPayload
}

// AssetConditionInput is an optional condition override recorded on completion.
type AssetConditionInput struct {
	Condition string
	Note      string
}

// WorkOrderTransitionInput moves a work order to Status.
type WorkOrderTransitionInput struct {
	Status               domain.WorkOrderStatus
	FailureReason        string
	CompletionNotes      string
	AssetConditionChange *AssetConditionInput
}

// WorkOrderCreated is the result of Create. Ticket reflects any automatic
// status change the creation caused.
type WorkOrderCreated struct {
	WorkOrder domain.WorkOrder
	Ticket    *domain.RepairTicket
}

// NewWorkOrderService constructs the service.
func NewWorkOrderService(deps Dependencies) *WorkOrderService {
	return &WorkOrderService{workflow: newWorkflow(deps)}
}

// Create adds a work order to a repair ticket. The ticket's ready flag is
// cleared. The first work order of an in_progress ticket puts it on hold.
func (s *WorkOrderService) Create(ctx context.Context, actor domain.Principal, ticketID string, input WorkOrderInput) (*WorkOrderCreated, error) {
	result := &WorkOrderCreated{}
	err := s.serialize(ctx, func(ctx context.Context, out *[]events.Event) error {
		ticket, err := s.repairTicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if reason := domain.Authorize(actor, ticket, domain.ActionCreateWorkOrder); reason != "" {
			return apperrors.NewForbidden(reason)
		}
		if !input.Type.Valid() {
			return apperrors.NewFieldError(ticketID, "type", "unknown work order type")
		}
		if reason := domain.WorkOrderCreationBlocker(ticket, input.Type); reason != "" {
			return apperrors.NewPreconditionFailed(ticketID, string(domain.ActionCreateWorkOrder), reason)
		}
		if problem := input.Payload.Validate(input.Type); problem != nil {
			return apperrors.NewFieldError(ticketID, problem.Field, problem.Reason)
		}

		existing, err := s.orders.ListByTicket(ctx, ticketID)
		if err != nil {
			return err
		}

		now := s.now()
		order := domain.WorkOrder{
			ID:        uuid.NewString(),
			TicketID:  ticketID,
			Type:      input.Type,
			Status:    domain.WorkOrderStatusRequested,
			Payload:   input.Payload,
			CreatedBy: actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		order.Append(domain.NewTimelineEntry(now, actor, "create", "", string(order.Status), map[string]string{
			"type": string(order.Type),
		}))
		if err := s.orders.Create(ctx, &order); err != nil {
			return err
		}

		from := ticket.Status
		ticket.WorkOrdersReady = false
		if ticket.Status == domain.RepairStatusInProgress && len(existing) == 0 {
			ticket.Status = domain.RepairStatusOnHold
			ticket.Append(domain.NewTimelineEntry(now, actor, string(domain.ActionRequestProcurement),
				string(from), string(ticket.Status), map[string]string{
					"trigger":       "work_order_created",
					"work_order_id": order.ID,
				}))
		} else {
			ticket.Append(domain.NewTimelineEntry(now, actor, string(domain.ActionCreateWorkOrder),
				string(from), string(ticket.Status), map[string]string{
					"work_order_id": order.ID,
					"type":          string(order.Type),
				}))
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}

		*out = append(*out, workOrderCreatedEvent(actor, ticket, order, now))
		if from != ticket.Status {
			*out = append(*out, ticketTransitionedEvent(actor, ticket, domain.ActionRequestProcurement, string(from), "", now))
		}
		result.WorkOrder = order
		result.Ticket = ticket
		return nil
	}, lock.TicketKey(ticketID))
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order created",
		zap.String("ticket_id", ticketID),
		zap.String("work_order_id", result.WorkOrder.ID),
		zap.String("type", string(result.WorkOrder.Type)),
		zap.String("ticket_status", string(result.Ticket.Status)))
	return result, nil
}

// Transition moves a work order along requested → in_procurement →
// completed | unsuccessful. A failure reason is required exactly when the
// target is unsuccessful. Errors are reported in the same order as ticket
// transitions: invalid transition, forbidden, precondition, validation.
func (s *WorkOrderService) Transition(ctx context.Context, actor domain.Principal, workOrderID string, input WorkOrderTransitionInput) (*domain.WorkOrder, error) {
	current, err := s.orders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, notFound(err, "work order", workOrderID)
	}
	ticketID := current.TicketID

	var updated domain.WorkOrder
	err = s.serialize(ctx, func(ctx context.Context, out *[]events.Event) error {
		ticket, err := s.repairTicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		order, err := s.orders.GetByID(ctx, workOrderID)
		if err != nil {
			return notFound(err, "work order", workOrderID)
		}
		if !domain.CanTransitionWorkOrder(order.Status, input.Status) {
			return apperrors.NewInvalidTransition(order.ID, string(input.Status), string(order.Status))
		}
		if !actor.IsAdmin() && !(actor.IsTechnician() && ticket.IsAssignedTo(actor.ID)) {
			return apperrors.NewForbidden("only the assigned technician may update work orders")
		}
		if ticket.Status != domain.RepairStatusInProgress && ticket.Status != domain.RepairStatusOnHold {
			return apperrors.NewPreconditionFailed(order.ID, "transitionWorkOrder",
				"work orders can only change while the ticket is in_progress or on_hold")
		}
		if err := applyWorkOrderInput(actor, order, input, s.now()); err != nil {
			return err
		}

		from := order.Status
		order.Status = input.Status
		details := map[string]string{}
		if order.FailureReason != "" && input.Status == domain.WorkOrderStatusUnsuccessful {
			details["failure_reason"] = order.FailureReason
		}
		if order.CompletionNotes != "" && input.Status == domain.WorkOrderStatusCompleted {
			details["completion_notes"] = order.CompletionNotes
		}
		now := s.now()
		order.Append(domain.NewTimelineEntry(now, actor, "transition", string(from), string(order.Status), details))
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}

		siblings, err := s.orders.ListByTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		*out = append(*out, workOrderTransitionedEvent(actor, ticket, *order, from, domain.AggregateReadiness(siblings), now))
		updated = *order
		return nil
	}, lock.TicketKey(ticketID))
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order transitioned",
		zap.String("work_order_id", workOrderID),
		zap.String("ticket_id", ticketID),
		zap.String("to", string(updated.Status)))
	return &updated, nil
}

// AggregateReadiness reports whether every work order of the ticket is
// resolved. A ticket without work orders is ready.
func (s *WorkOrderService) AggregateReadiness(ctx context.Context, actor domain.Principal, ticketID string) (bool, error) {
	orders, err := s.ListByTicket(ctx, actor, ticketID)
	if err != nil {
		return false, err
	}
	return domain.AggregateReadiness(orders), nil
}

// ListByTicket returns the ticket's work orders oldest first.
func (s *WorkOrderService) ListByTicket(ctx context.Context, actor domain.Principal, ticketID string) ([]domain.WorkOrder, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	if !domain.CanView(actor, ticket) {
		return nil, apperrors.NewForbidden("ticket belongs to another requester")
	}
	orders, err := s.orders.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.WorkOrder{}
	}
	return orders, nil
}

func (s *WorkOrderService) repairTicketForUpdate(ctx context.Context, ticketID string) (*domain.RepairTicket, error) {
	ticket, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	repair, ok := domain.AsRepair(ticket)
	if !ok {
		return nil, apperrors.NewPreconditionFailed(ticketID, string(domain.ActionCreateWorkOrder), "work orders only exist on repair tickets")
	}
	return repair, nil
}

func applyWorkOrderInput(actor domain.Principal, order *domain.WorkOrder, input WorkOrderTransitionInput, now time.Time) error {
	reason := strings.TrimSpace(input.FailureReason)
	switch {
	case input.Status == domain.WorkOrderStatusUnsuccessful && reason == "":
		return apperrors.NewFieldError(order.ID, "failure_reason", "required when unsuccessful")
	case input.Status != domain.WorkOrderStatusUnsuccessful && reason != "":
		return apperrors.NewFieldError(order.ID, "failure_reason", "only allowed when unsuccessful")
	}
	order.FailureReason = reason

	if change := input.AssetConditionChange; change != nil {
		if input.Status != domain.WorkOrderStatusCompleted {
			return apperrors.NewFieldError(order.ID, "asset_condition_change", "only allowed on completion")
		}
		if order.Type == domain.WorkOrderTypeLicense {
			return apperrors.NewFieldError(order.ID, "asset_condition_change", "not applicable to license work orders")
		}
		if strings.TrimSpace(change.Condition) == "" {
			return apperrors.NewFieldError(order.ID, "asset_condition_change.condition", "required")
		}
		order.AssetConditionChange = &domain.AssetConditionChange{
			Condition: strings.TrimSpace(change.Condition),
			Note:      strings.TrimSpace(change.Note),
			ChangedBy: actor.Name,
			ChangedAt: now,
		}
	}

	if input.Status == domain.WorkOrderStatusCompleted {
		order.CompletionNotes = strings.TrimSpace(input.CompletionNotes)
		if order.Payload.Vendor != nil && order.CompletionNotes != "" {
			order.Payload.Vendor.CompletionNotes = order.CompletionNotes
		}
	}
	return nil
}

func workOrderCreatedEvent(actor domain.Principal, t *domain.RepairTicket, order domain.WorkOrder, at time.Time) events.Event {
	return events.Event{
		Type:         events.EventWorkOrderCreated,
		TicketID:     t.ID,
		TicketNumber: t.Number,
		Actor:        actor,
		Timestamp:    at,
		Payload: events.WorkOrderCreatedPayload{
			WorkOrderID: order.ID,
			OrderType:   order.Type,
			AssigneeID:  t.AssigneeID,
		},
	}
}

func workOrderTransitionedEvent(actor domain.Principal, t *domain.RepairTicket, order domain.WorkOrder, from domain.WorkOrderStatus, allResolved bool, at time.Time) events.Event {
	return events.Event{
		Type:         events.EventWorkOrderTransitioned,
		TicketID:     t.ID,
		TicketNumber: t.Number,
		Actor:        actor,
		Timestamp:    at,
		Payload: events.WorkOrderTransitionedPayload{
			WorkOrderID: order.ID,
			OrderType:   order.Type,
			From:        from,
			To:          order.Status,
			AssigneeID:  t.AssigneeID,
			AllResolved: allResolved,
		},
	}
}
