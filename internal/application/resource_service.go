package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/resource-booking/internal/availability"
	"github.com/example/resource-booking/internal/persistence"
)

// ResourceRepository captures the persistence operations needed by the
// resource service.
type ResourceRepository interface {
	CreateResource(ctx context.Context, resource Resource) (Resource, error)
	GetResource(ctx context.Context, id string) (Resource, error)
	UpdateResource(ctx context.Context, resource Resource) (Resource, error)
	DeleteResource(ctx context.Context, id string) error
	ListResources(ctx context.Context, resourceType availability.ResourceType) ([]Resource, error)
}

// ResourceService orchestrates validation, authorization, and persistence for
// the bookable catalog.
type ResourceService struct {
	resources   ResourceRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewResourceService constructs a resource service with the provided dependencies.
func NewResourceService(resources ResourceRepository, idGenerator func() string, now func() time.Time) *ResourceService {
	return NewResourceServiceWithLogger(resources, idGenerator, now, nil)
}

// NewResourceServiceWithLogger constructs a resource service with a specified logger.
func NewResourceServiceWithLogger(resources ResourceRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ResourceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ResourceService{resources: resources, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *ResourceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ResourceService", operation, attrs...)
}

// CreateResource validates input and persists a new catalog entry for administrators.
func (s *ResourceService) CreateResource(ctx context.Context, params CreateResourceParams) (resource Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateResource",
		"actor_id", params.Actor.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create resource", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("resource_id", resource.ID).InfoContext(ctx, "resource created")
	}()

	if !params.Actor.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := validateResourceInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	resource = Resource{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(params.Input.Name),
		Type:      params.Input.Type,
		Status:    resourceStatusOrDefault(params.Input.Status),
		Quantity:  resourceQuantity(params.Input),
		CreatedAt: s.now(),
	}
	resource.UpdatedAt = resource.CreatedAt

	if s.resources == nil {
		return
	}

	var persisted Resource
	persisted, err = s.resources.CreateResource(ctx, resource)
	if err != nil {
		err = mapResourceRepoError(err)
		return
	}

	resource = persisted
	return
}

// UpdateResource validates input and updates an existing catalog entry for administrators.
func (s *ResourceService) UpdateResource(ctx context.Context, params UpdateResourceParams) (resource Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}
	if !params.Actor.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.resources == nil {
		err = fmt.Errorf("resource repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateResource",
		"actor_id", params.Actor.UserID,
		"resource_id", params.ResourceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update resource", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("resource_id", resource.ID).InfoContext(ctx, "resource updated")
	}()

	var existing Resource
	existing, err = s.resources.GetResource(ctx, params.ResourceID)
	if err != nil {
		err = mapResourceRepoError(err)
		return
	}

	vErr := validateResourceInput(params.Input)
	if params.Input.Type != existing.Type {
		vErr.add("type", "resource type cannot change after creation")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Status = resourceStatusOrDefault(params.Input.Status)
	updated.Quantity = resourceQuantity(params.Input)
	updated.UpdatedAt = s.now()

	resource, err = s.resources.UpdateResource(ctx, updated)
	if err != nil {
		err = mapResourceRepoError(err)
		return
	}

	return
}

// DeleteResource removes an existing catalog entry when requested by an administrator.
func (s *ResourceService) DeleteResource(ctx context.Context, actor Actor, resourceID string) error {
	if s == nil {
		return fmt.Errorf("ResourceService is nil")
	}
	if !actor.IsAdmin {
		return ErrUnauthorized
	}
	if s.resources == nil {
		return fmt.Errorf("resource repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteResource",
		"actor_id", actor.UserID,
		"resource_id", resourceID,
	)

	if err := s.resources.DeleteResource(ctx, resourceID); err != nil {
		err = mapResourceRepoError(err)
		logger.ErrorContext(ctx, "failed to delete resource", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "resource deleted")
	return nil
}

// GetResource returns one catalog entry for any authenticated user.
func (s *ResourceService) GetResource(ctx context.Context, actor Actor, resourceID string) (Resource, error) {
	if s == nil {
		return Resource{}, fmt.Errorf("ResourceService is nil")
	}
	if !actor.Authenticated() {
		return Resource{}, ErrUnauthenticated
	}
	if s.resources == nil {
		return Resource{}, ErrNotFound
	}

	resource, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return Resource{}, mapResourceRepoError(err)
	}
	return resource, nil
}

// ListResources returns the catalog for any authenticated user, optionally
// narrowed to one resource type.
func (s *ResourceService) ListResources(ctx context.Context, actor Actor, resourceType availability.ResourceType) (resources []Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}
	if !actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}
	if s.resources == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListResources",
		"actor_id", actor.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list resources", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(resources)).InfoContext(ctx, "resources listed")
	}()

	var raw []Resource
	raw, err = s.resources.ListResources(ctx, resourceType)
	if err != nil {
		err = mapResourceRepoError(err)
		return
	}

	resources = make([]Resource, len(raw))
	copy(resources, raw)

	sort.Slice(resources, func(i, j int) bool {
		if strings.EqualFold(resources[i].Name, resources[j].Name) {
			return resources[i].ID < resources[j].ID
		}
		return strings.ToLower(resources[i].Name) < strings.ToLower(resources[j].Name)
	})

	return
}

func validateResourceInput(input ResourceInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}

	switch input.Type {
	case availability.ResourceRoom:
		if input.Quantity > 1 {
			vErr.add("quantity", "rooms always carry exactly one unit")
		}
	case availability.ResourceDevice:
		// Zero is a valid pool size: the device exists but has no unit to
		// offer. Only negative counts are nonsense.
		if input.Quantity < 0 {
			vErr.add("quantity", "device quantity cannot be negative")
		}
	default:
		vErr.add("type", "type must be room or device")
	}

	switch input.Status {
	case "", ResourceAvailable, ResourceBooked, ResourceMaintenance:
	default:
		vErr.add("status", "status must be available, booked, or maintenance")
	}

	return vErr
}

func resourceStatusOrDefault(status ResourceStatus) ResourceStatus {
	if status == "" {
		return ResourceAvailable
	}
	return status
}

func resourceQuantity(input ResourceInput) int {
	if input.Type == availability.ResourceRoom {
		return 1
	}
	return input.Quantity
}

func mapResourceRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("quantity", "device quantity cannot be negative")
		return vErr
	}
	return err
}
