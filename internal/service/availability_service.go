package service

import (
	"context"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// AvailabilityService answers calendar and conflict queries for resources.
// Its checks are advisory; CreateBookingTicket repeats them under the
// resource lock.
type AvailabilityService struct {
	tickets   repository.TicketRepository
	resources repository.ResourceRepository
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(deps Dependencies) *AvailabilityService {
	return &AvailabilityService{tickets: deps.Tickets, resources: deps.Resources}
}

// ListEvents returns every booking on the resource in chronological order,
// including terminal ones so calendars can show them struck through.
func (s *AvailabilityService) ListEvents(ctx context.Context, resourceID string) ([]domain.BookingEvent, error) {
	if _, err := s.resources.GetByID(ctx, resourceID); err != nil {
		return nil, notFound(err, "resource", resourceID)
	}
	events, err := s.tickets.ListBookingEvents(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.BookingEvent{}
	}
	domain.SortEvents(events)
	return events, nil
}

// CheckConflict classifies interval against the resource's bookings.
// excludeTicketID lets a booking be checked against everything but itself.
func (s *AvailabilityService) CheckConflict(ctx context.Context, resourceID string, interval domain.Interval, excludeTicketID string) (domain.Conflict, error) {
	if !interval.Valid() {
		return domain.Conflict{}, apperrors.NewFieldError(resourceID, "end", "must be after start")
	}
	events, err := s.ListEvents(ctx, resourceID)
	if err != nil {
		return domain.Conflict{}, err
	}
	return domain.ClassifyConflict(events, interval, excludeTicketID), nil
}
