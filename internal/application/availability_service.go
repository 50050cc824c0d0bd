package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/resource-booking/internal/availability"
)

// AvailabilityService answers the read-side questions the booking UI renders:
// which slots are free, who holds them, and how heavily each resource class
// is used.
type AvailabilityService struct {
	reservations ReservationRepository
	resources    ResourceCatalog
	periods      []availability.Period
	cache        *usageCache
	now          func() time.Time
	logger       *slog.Logger
}

// NewAvailabilityService constructs an availability service over the given
// period catalog. A nil or empty periods slice falls back to the default
// daily grid.
func NewAvailabilityService(reservations ReservationRepository, resources ResourceCatalog, periods []availability.Period, now func() time.Time) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(reservations, resources, periods, now, nil)
}

// NewAvailabilityServiceWithLogger constructs an availability service with a specified logger.
func NewAvailabilityServiceWithLogger(reservations ReservationRepository, resources ResourceCatalog, periods []availability.Period, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if len(periods) == 0 {
		periods = availability.DefaultPeriods()
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		reservations: reservations,
		resources:    resources,
		periods:      periods,
		cache:        newUsageCache(0, 0, now),
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// Periods returns the fixed daily period catalog.
func (s *AvailabilityService) Periods() []availability.Period {
	if s == nil {
		return nil
	}
	out := make([]availability.Period, len(s.periods))
	copy(out, s.periods)
	return out
}

// InvalidateCache drops cached usage summaries. Wired to reservation events
// so overviews never serve stale numbers after a commit.
func (s *AvailabilityService) InvalidateCache() {
	if s == nil {
		return
	}
	s.cache.Invalidate()
}

// SlotDetail describes one (resource, period, date) slot: its overlapping
// reservations, committed and remaining units, and past classification.
func (s *AvailabilityService) SlotDetail(ctx context.Context, actor Actor, resourceID string, period availability.Period, date time.Time) (detail SlotAvailability, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}
	if s.reservations == nil || s.resources == nil {
		err = fmt.Errorf("availability repositories not configured")
		return
	}
	if !actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	resource, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	stored, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		ResourceID:   resource.ID,
		ResourceType: resource.Type,
	})
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	detail, err = s.slotDetail(resource, period, date, stored)
	return
}

// ResourceDay describes every period of one date for one resource, in period
// order.
func (s *AvailabilityService) ResourceDay(ctx context.Context, actor Actor, resourceID string, date time.Time) (details []SlotAvailability, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}
	if s.reservations == nil || s.resources == nil {
		err = fmt.Errorf("availability repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "ResourceDay",
		"actor_id", actor.UserID,
		"resource_id", resourceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute resource day", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("slot_count", len(details)).InfoContext(ctx, "resource day computed")
	}()

	if !actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	resource, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	stored, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		ResourceID:   resource.ID,
		ResourceType: resource.Type,
	})
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	details = make([]SlotAvailability, 0, len(s.periods))
	for _, period := range s.periods {
		var detail SlotAvailability
		detail, err = s.slotDetail(resource, period, date, stored)
		if err != nil {
			details = nil
			return
		}
		details = append(details, detail)
	}
	return
}

func (s *AvailabilityService) slotDetail(resource Resource, period availability.Period, date time.Time, stored []Reservation) (SlotAvailability, error) {
	snapshot := toAvailabilityReservations(stored)

	overlapping, err := availability.Overlapping(resource.toAvailability(), period, date, snapshot)
	if err != nil {
		return SlotAvailability{}, invalidPeriodError(err)
	}

	capacity, err := availability.ComputeCapacity(resource.toAvailability(), period, date, snapshot, "")
	if err != nil {
		return SlotAvailability{}, invalidPeriodError(err)
	}

	past, err := availability.SlotInPast(period, date, s.now())
	if err != nil {
		return SlotAvailability{}, invalidPeriodError(err)
	}

	byID := make(map[string]Reservation, len(stored))
	for _, reservation := range stored {
		byID[reservation.ID] = reservation
	}
	full := make([]Reservation, 0, len(overlapping))
	for _, reservation := range overlapping {
		if match, ok := byID[reservation.ID]; ok {
			full = append(full, match)
		}
	}

	return SlotAvailability{
		Resource:    resource,
		Period:      period,
		Date:        date,
		Overlapping: full,
		Committed:   capacity.Committed,
		Remaining:   capacity.Remaining,
		Past:        past,
	}, nil
}

// RoomsOverview summarizes room occupancy for one slot across the whole room
// catalog.
func (s *AvailabilityService) RoomsOverview(ctx context.Context, actor Actor, period availability.Period, date time.Time) (usage availability.RoomUsage, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}
	if !actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	key := buildUsageCacheKey(availability.ResourceRoom, period, date)
	if snapshot, ok := s.cache.Get(key); ok {
		usage = snapshot.rooms
		return
	}

	resources, reservations, err := s.classSnapshot(ctx, availability.ResourceRoom)
	if err != nil {
		return
	}

	usage, err = availability.RoomsUsage(resources, period, date, reservations)
	if err != nil {
		err = invalidPeriodError(err)
		return
	}

	s.cache.Store(key, usageSnapshot{rooms: usage})
	return
}

// DevicesOverview summarizes device unit usage for one slot across the whole
// device catalog.
func (s *AvailabilityService) DevicesOverview(ctx context.Context, actor Actor, period availability.Period, date time.Time) (usage availability.DeviceUsage, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}
	if !actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	key := buildUsageCacheKey(availability.ResourceDevice, period, date)
	if snapshot, ok := s.cache.Get(key); ok {
		usage = snapshot.devices
		return
	}

	resources, reservations, err := s.classSnapshot(ctx, availability.ResourceDevice)
	if err != nil {
		return
	}

	usage, err = availability.DevicesUsage(resources, period, date, reservations)
	if err != nil {
		err = invalidPeriodError(err)
		return
	}

	s.cache.Store(key, usageSnapshot{devices: usage})
	return
}

func (s *AvailabilityService) classSnapshot(ctx context.Context, resourceType availability.ResourceType) ([]availability.Resource, []availability.Reservation, error) {
	if s.reservations == nil || s.resources == nil {
		return nil, nil, fmt.Errorf("availability repositories not configured")
	}

	catalog, err := s.resources.ListResources(ctx, resourceType)
	if err != nil {
		return nil, nil, mapReservationRepoError(err)
	}

	stored, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{ResourceType: resourceType})
	if err != nil {
		return nil, nil, mapReservationRepoError(err)
	}

	resources := make([]availability.Resource, 0, len(catalog))
	for _, resource := range catalog {
		resources = append(resources, resource.toAvailability())
	}
	return resources, toAvailabilityReservations(stored), nil
}

// PublisherFunc adapts a function to the EventPublisher interface.
type PublisherFunc func(ctx context.Context, event ReservationEvent) error

// PublishReservationEvent implements EventPublisher.
func (f PublisherFunc) PublishReservationEvent(ctx context.Context, event ReservationEvent) error {
	return f(ctx, event)
}

// MultiPublisher fans each reservation event out to every publisher in order.
// Nil members are skipped; the first error is returned after all publishers
// have been attempted.
type MultiPublisher []EventPublisher

// PublishReservationEvent implements EventPublisher.
func (m MultiPublisher) PublishReservationEvent(ctx context.Context, event ReservationEvent) error {
	var firstErr error
	for _, publisher := range m {
		if publisher == nil {
			continue
		}
		if err := publisher.PublishReservationEvent(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
