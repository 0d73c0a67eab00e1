package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// TicketsHandler exposes ticket creation, lookup and transitions.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateRepair POST /tickets/repair.
func (h *TicketsHandler) CreateRepair(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateRepairTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateRepairTicket(c.UserContext(), principal, req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CreateBooking POST /tickets/booking. An un-overridden soft conflict is
// answered with 409 SCHEDULE_WARNING and nothing is stored.
func (h *TicketsHandler) CreateBooking(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateBookingTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	outcome, err := h.service.CreateBookingTicket(c.UserContext(), principal, req.Input())
	if err != nil {
		return err
	}
	if outcome.Ticket == nil {
		return service.ScheduleWarningError(req.ResourceID, *outcome.Warning)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.BookingCreatedResponse{
		Ticket:  dto.NewTicketResponse(outcome.Ticket),
		Warning: outcome.Warning,
	}})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), principal, parseTicketQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	view, err := h.service.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	orders := view.WorkOrders
	if orders == nil {
		orders = []domain.WorkOrder{}
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		Ticket:        dto.NewTicketResponse(view.Ticket),
		WorkOrders:    orders,
		Actionability: view.Actionability,
	}})
}

// Actions GET /tickets/:id/actions.
func (h *TicketsHandler) Actions(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	actions, err := h.service.Actionability(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": actions})
}

// Transition POST /tickets/:id/transitions.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	result, err := h.service.Transition(c.UserContext(), principal, c.Params("id"), req.Action, req.TransitionPayload())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionResponse{
		Ticket:  dto.NewTicketResponse(result.Ticket),
		HostKey: result.HostKey,
	}})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("type"); raw != "" {
		typ := domain.TicketType(raw)
		filter.Type = &typ
	}
	if raw := c.Query("status"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}
	optional := func(key string) *string {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return &v
		}
		return nil
	}
	filter.RequesterID = optional("requester_id")
	filter.AssigneeID = optional("assignee_id")
	filter.AssetCode = optional("asset_code")
	filter.ResourceID = optional("resource_id")
	return filter
}
