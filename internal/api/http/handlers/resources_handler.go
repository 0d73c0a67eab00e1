package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// ResourcesHandler exposes the resource registry and its calendar.
type ResourcesHandler struct {
	resources    *service.ResourceService
	availability *service.AvailabilityService
}

// NewResourcesHandler constructs handler.
func NewResourcesHandler(resources *service.ResourceService, availability *service.AvailabilityService) *ResourcesHandler {
	return &ResourcesHandler{resources: resources, availability: availability}
}

// Create POST /resources.
func (h *ResourcesHandler) Create(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.CreateResourceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resource, err := h.resources.Create(c.UserContext(), principal, req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": resource})
}

// Update PATCH /resources/:id.
func (h *ResourcesHandler) Update(c *fiber.Ctx) error {
	principal, err := actor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateResourceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resource, err := h.resources.Update(c.UserContext(), principal, c.Params("id"), req.Update())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resource})
}

// List GET /resources?active=true.
func (h *ResourcesHandler) List(c *fiber.Ctx) error {
	resources, err := h.resources.List(c.UserContext(), c.QueryBool("active", false))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resources})
}

// Get GET /resources/:id.
func (h *ResourcesHandler) Get(c *fiber.Ctx) error {
	resource, err := h.resources.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resource})
}

// Events GET /resources/:id/events.
func (h *ResourcesHandler) Events(c *fiber.Ctx) error {
	events, err := h.availability.ListEvents(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": events})
}

// CheckConflict POST /resources/:id/conflicts.
func (h *ResourcesHandler) CheckConflict(c *fiber.Ctx) error {
	var req dto.ConflictCheckRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	conflict, err := h.availability.CheckConflict(c.UserContext(), c.Params("id"), req.Interval(), req.ExcludeTicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": conflict})
}
