package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// CreateResourceRequest payload.
type CreateResourceRequest struct {
	Category string `json:"category" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=200"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
}

// Input converts the request to the service input.
func (r CreateResourceRequest) Input() service.ResourceInput {
	return service.ResourceInput{Category: r.Category, Name: r.Name, Capacity: r.Capacity}
}

// UpdateResourceRequest payload; omitted fields are left unchanged.
type UpdateResourceRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1"`
	Active   *bool   `json:"active"`
}

// Update converts the request to the service update.
func (r UpdateResourceRequest) Update() service.ResourceUpdate {
	return service.ResourceUpdate{Name: r.Name, Capacity: r.Capacity, Active: r.Active}
}

// ConflictCheckRequest payload for the advisory conflict check.
type ConflictCheckRequest struct {
	Start           time.Time `json:"start" validate:"required"`
	End             time.Time `json:"end" validate:"required,gtfield=Start"`
	ExcludeTicketID string    `json:"exclude_ticket_id"`
}

// Interval returns the requested interval.
func (r ConflictCheckRequest) Interval() domain.Interval {
	return domain.Interval{Start: r.Start.UTC(), End: r.End.UTC()}
}

// DevTokenRequest mints a token for local development.
type DevTokenRequest struct {
	ID   string      `json:"id" validate:"required"`
	Name string      `json:"name" validate:"required"`
	Role domain.Role `json:"role" validate:"required,oneof=requester technician admin"`
}

// DevTokenResponse carries the minted token.
type DevTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
