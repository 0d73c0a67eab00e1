package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// ResourceService maintains the registry of bookable resources.
type ResourceService struct {
	workflow
}

// ResourceInput describes a new resource.
type ResourceInput struct {
	Category string
	Name     string
	Capacity int
}

// ResourceUpdate changes the given fields only.
type ResourceUpdate struct {
	Name     *string
	Capacity *int
	Active   *bool
}

// NewResourceService constructs the service.
func NewResourceService(deps Dependencies) *ResourceService {
	return &ResourceService{workflow: newWorkflow(deps)}
}

// Create registers an active resource. Admin only.
func (s *ResourceService) Create(ctx context.Context, actor domain.Principal, input ResourceInput) (*domain.Resource, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only an admin may manage resources")
	}
	if err := required("", "category", input.Category); err != nil {
		return nil, err
	}
	if err := required("", "name", input.Name); err != nil {
		return nil, err
	}
	if input.Capacity < 1 {
		return nil, apperrors.NewFieldError("", "capacity", "must be at least 1")
	}

	now := s.now()
	resource := &domain.Resource{
		ID:        uuid.NewString(),
		Category:  strings.TrimSpace(input.Category),
		Name:      strings.TrimSpace(input.Name),
		Capacity:  input.Capacity,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.serialize(ctx, func(ctx context.Context, _ *[]events.Event) error {
		return s.resources.Create(ctx, resource)
	}, lock.ResourceKey(resource.ID))
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource created", zap.String("resource_id", resource.ID), zap.String("name", resource.Name))
	return resource, nil
}

// Update renames, resizes or (de)activates a resource under its lock so it
// cannot change underneath a booking being created.
func (s *ResourceService) Update(ctx context.Context, actor domain.Principal, resourceID string, update ResourceUpdate) (*domain.Resource, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only an admin may manage resources")
	}
	var updated *domain.Resource
	err := s.serialize(ctx, func(ctx context.Context, _ *[]events.Event) error {
		resource, err := s.resources.GetByIDForUpdate(ctx, resourceID)
		if err != nil {
			return notFound(err, "resource", resourceID)
		}
		if update.Name != nil {
			if err := required(resourceID, "name", *update.Name); err != nil {
				return err
			}
			resource.Name = strings.TrimSpace(*update.Name)
		}
		if update.Capacity != nil {
			if *update.Capacity < 1 {
				return apperrors.NewFieldError(resourceID, "capacity", "must be at least 1")
			}
			resource.Capacity = *update.Capacity
		}
		if update.Active != nil {
			resource.Active = *update.Active
		}
		resource.UpdatedAt = s.now()
		if err := s.resources.Update(ctx, resource); err != nil {
			return err
		}
		updated = resource
		return nil
	}, lock.ResourceKey(resourceID))
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource updated", zap.String("resource_id", resourceID), zap.Bool("active", updated.Active))
	return updated, nil
}

// Get returns one resource.
func (s *ResourceService) Get(ctx context.Context, resourceID string) (*domain.Resource, error) {
	resource, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, notFound(err, "resource", resourceID)
	}
	return resource, nil
}

// List returns resources ordered by category and name.
func (s *ResourceService) List(ctx context.Context, activeOnly bool) ([]domain.Resource, error) {
	resources, err := s.resources.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if resources == nil {
		resources = []domain.Resource{}
	}
	return resources, nil
}
