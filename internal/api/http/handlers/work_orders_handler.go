package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// WorkOrdersHandler exposes work order endpoints.
type WorkOrdersHandler struct {
	service *service.WorkOrderService
}

// NewWorkOrdersHandler constructs handler.
func NewWorkOrdersHandler(workOrders *service.WorkOrderService) *WorkOrdersHandler {
	return &WorkOrdersHandler{service: workOrders}
}

// List GET /tickets/:id/work-orders.
func (h *WorkOrdersHandler) List(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	orders, err := h.service.ListByTicket(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orders})
}

// Create POST /tickets/:id/work-orders.
func (h *WorkOrdersHandler) Create(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateWorkOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	created, err := h.service.Create(c.UserContext(), principal, c.Params("id"), req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.WorkOrderCreatedResponse{
		WorkOrder:    created.WorkOrder,
		TicketStatus: created.Ticket.Status,
	}})
}

// Readiness GET /tickets/:id/work-orders/readiness.
func (h *WorkOrdersHandler) Readiness(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	ready, err := h.service.AggregateReadiness(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ready": ready}})
}

// Transition POST /work-orders/:id/transitions.
func (h *WorkOrdersHandler) Transition(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.WorkOrderTransitionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	order, err := h.service.Transition(c.UserContext(), principal, c.Params("id"), req.Input())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": order})
}
