package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/resource-booking/internal/availability"
	"github.com/example/resource-booking/internal/persistence"
)

// ReservationRepository captures the persistence interactions needed by the
// booking service.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]Reservation, error)
}

// ReservationRepositoryFilter narrows queries issued to the reservation
// repository.
type ReservationRepositoryFilter struct {
	ResourceID   string
	ResourceType availability.ResourceType
	UserID       string
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// ResourceCatalog exposes read-only resource lookups. The catalog is owned by
// the resource service; the booking engine treats entries as input.
type ResourceCatalog interface {
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context, resourceType availability.ResourceType) ([]Resource, error)
}

// ReservationEventType labels lifecycle events emitted after commits.
type ReservationEventType string

const (
	EventReservationCreated   ReservationEventType = "reservation.created"
	EventReservationUpdated   ReservationEventType = "reservation.updated"
	EventReservationDeleted   ReservationEventType = "reservation.deleted"
	EventReservationApproved  ReservationEventType = "reservation.approved"
	EventReservationRejected  ReservationEventType = "reservation.rejected"
	EventReservationCancelled ReservationEventType = "reservation.cancelled"
)

// ReservationEvent describes a committed reservation mutation.
type ReservationEvent struct {
	Type        ReservationEventType
	Reservation Reservation
	ActorID     string
	At          time.Time
}

// EventPublisher forwards reservation events to interested consumers.
// Publishing is best-effort; failures never fail the originating operation.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, event ReservationEvent) error
}

// BookingService orchestrates validation and persistence for the slot and
// batch booking protocols and the reservation lifecycle.
type BookingService struct {
	reservations ReservationRepository
	resources    ResourceCatalog
	events       EventPublisher
	autoApprove  bool
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewBookingService wires dependencies for booking operations. When
// autoApprove is true, self-service bookings commit directly in approved
// status; otherwise they await admin review in pending.
func NewBookingService(reservations ReservationRepository, resources ResourceCatalog, events EventPublisher, autoApprove bool, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(reservations, resources, events, autoApprove, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(reservations ReservationRepository, resources ResourceCatalog, events EventPublisher, autoApprove bool, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		reservations: reservations,
		resources:    resources,
		events:       events,
		autoApprove:  autoApprove,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Book validates a single slot booking against the current reservation
// snapshot and commits it. Validation failures surface before any store call.
func (s *BookingService) Book(ctx context.Context, params BookParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.reservations == nil || s.resources == nil {
		err = fmt.Errorf("booking repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "Book",
		"actor_id", params.Actor.UserID,
		"resource_id", params.ResourceID,
		"period", params.Period.Name,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to book slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "slot booked")
	}()

	if !params.Actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	// The slot's window is checked before anything touches the catalog, so a
	// past slot reports as past even when the resource does not exist.
	past, err := availability.SlotInPast(params.Period, params.Date, s.now())
	if err != nil {
		err = invalidPeriodError(err)
		return
	}
	if past {
		err = ErrSlotInPast
		return
	}

	resource, err := s.lookupResource(ctx, params.ResourceID)
	if err != nil {
		return
	}

	snapshot, err := s.snapshotFor(ctx, resource)
	if err != nil {
		return
	}

	reservation, err = s.bookAgainstSnapshot(ctx, params.Actor, resource, Slot{Period: params.Period, Date: params.Date}, params.Details, snapshot)
	return
}

// BookMany applies the slot booking protocol across the given slots in
// caller order, against a snapshot fixed at batch start. A requested quantity
// exceeding the minimum remaining capacity over all slots rejects the entire
// batch before any commit; other per-slot failures degrade independently.
func (s *BookingService) BookMany(ctx context.Context, params BookManyParams) (result BatchResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.reservations == nil || s.resources == nil {
		err = fmt.Errorf("booking repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "BookMany",
		"actor_id", params.Actor.UserID,
		"resource_id", params.ResourceID,
		"slot_count", len(params.Slots),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to book batch", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"succeeded", len(result.Succeeded),
			"failed", len(result.Failed),
		).InfoContext(ctx, "batch booking finished")
	}()

	if !params.Actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	if len(params.Slots) == 0 {
		vErr := &ValidationError{}
		vErr.add("slots", "at least one slot is required")
		err = vErr
		return
	}

	resource, err := s.lookupResource(ctx, params.ResourceID)
	if err != nil {
		return
	}

	snapshot, err := s.snapshotFor(ctx, resource)
	if err != nil {
		return
	}

	quantity := normalizeQuantity(params.Details.Quantity)

	// Cross-slot pre-check: the quantity must fit the tightest slot, so a
	// quantity-driven failure never leaves a partially booked batch.
	badWindows := make(map[int]error, 0)
	minRemaining := 0
	haveRemaining := false
	for i, slot := range params.Slots {
		capacity, capErr := availability.ComputeCapacity(resource.toAvailability(), slot.Period, slot.Date, snapshot, "")
		if capErr != nil {
			badWindows[i] = invalidPeriodError(capErr)
			continue
		}
		if !haveRemaining || capacity.Remaining < minRemaining {
			minRemaining = capacity.Remaining
			haveRemaining = true
		}
	}
	if haveRemaining && quantity > minRemaining {
		err = ErrInsufficientCapacity
		return
	}

	for i, slot := range params.Slots {
		if windowErr, ok := badWindows[i]; ok {
			result.Failed = append(result.Failed, SlotFailure{Slot: slot, Err: windowErr})
			continue
		}
		reservation, slotErr := s.bookAgainstSnapshot(ctx, params.Actor, resource, slot, params.Details, snapshot)
		if slotErr != nil {
			result.Failed = append(result.Failed, SlotFailure{Slot: slot, Err: slotErr})
			continue
		}
		result.Succeeded = append(result.Succeeded, reservation)
	}

	return
}

// bookAgainstSnapshot runs validation and commit for one slot using the
// supplied reservation snapshot. The snapshot is not refreshed here so batch
// callers keep a fixed view across slots.
func (s *BookingService) bookAgainstSnapshot(ctx context.Context, actor Actor, resource Resource, slot Slot, details BookingDetails, snapshot []availability.Reservation) (Reservation, error) {
	past, err := availability.SlotInPast(slot.Period, slot.Date, s.now())
	if err != nil {
		return Reservation{}, invalidPeriodError(err)
	}
	if past {
		return Reservation{}, ErrSlotInPast
	}

	if !resource.Offerable() {
		vErr := &ValidationError{}
		vErr.add("resource", "resource is not available for booking")
		return Reservation{}, vErr
	}

	quantity := normalizeQuantity(details.Quantity)

	capacity, err := availability.ComputeCapacity(resource.toAvailability(), slot.Period, slot.Date, snapshot, "")
	if err != nil {
		return Reservation{}, invalidPeriodError(err)
	}
	if quantity > capacity.Remaining {
		return Reservation{}, ErrInsufficientCapacity
	}

	if vErr := validateDetails(resource, details); vErr.HasErrors() {
		return Reservation{}, vErr
	}

	window, err := slot.Period.Window(slot.Date)
	if err != nil {
		return Reservation{}, invalidPeriodError(err)
	}

	status := availability.StatusPending
	if s.autoApprove {
		status = availability.StatusApproved
	}

	createdAt := s.now()
	reservation := Reservation{
		ID:             s.idGenerator(),
		UserID:         actor.UserID,
		BookedBy:       bookedByName(actor),
		ResourceID:     resource.ID,
		ResourceType:   resource.Type,
		Start:          window.Start,
		End:            window.End,
		Status:         status,
		Quantity:       quantity,
		Purpose:        strings.TrimSpace(details.Purpose),
		DevicePurposes: uniqueStrings(details.DevicePurposes),
		Notes:          strings.TrimSpace(details.Notes),
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}

	persisted, err := s.reservations.CreateReservation(ctx, reservation)
	if err != nil {
		return Reservation{}, mapReservationRepoError(err)
	}

	s.publishEvent(ctx, EventReservationCreated, persisted, actor)
	return persisted, nil
}

// Update applies a patch to the mutable reservation fields. A quantity
// increase is re-validated against capacity with the reservation's own
// commitment excluded.
func (s *BookingService) Update(ctx context.Context, params UpdateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Update",
		"actor_id", params.Actor.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	if !params.Actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	existing, err := s.getOwned(ctx, params.Actor, params.ReservationID)
	if err != nil {
		return
	}

	if existing.Start.Before(s.now()) {
		err = ErrSlotInPast
		return
	}

	updated := existing
	patch := params.Patch
	if patch.Purpose != nil {
		updated.Purpose = strings.TrimSpace(*patch.Purpose)
	}
	if patch.DevicePurposes != nil {
		updated.DevicePurposes = uniqueStrings(*patch.DevicePurposes)
	}
	if patch.Notes != nil {
		updated.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.Quantity != nil {
		vErr := &ValidationError{}
		if *patch.Quantity < 1 {
			vErr.add("quantity", "quantity must be a positive integer")
		}
		if existing.ResourceType == availability.ResourceRoom && *patch.Quantity != 1 {
			vErr.add("quantity", "room reservations always book exactly one unit")
		}
		if vErr.HasErrors() {
			err = vErr
			return
		}
		updated.Quantity = *patch.Quantity
	}

	if updated.Quantity > existing.Quantity {
		if err = s.recheckCapacity(ctx, updated); err != nil {
			return
		}
	}

	updated.UpdatedAt = s.now()

	reservation, err = s.reservations.UpdateReservation(ctx, updated)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.publishEvent(ctx, EventReservationUpdated, reservation, params.Actor)
	return
}

// Delete removes a reservation. Deletion only frees capacity, so no capacity
// re-check is performed.
func (s *BookingService) Delete(ctx context.Context, actor Actor, reservationID string) error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.reservations == nil {
		return fmt.Errorf("reservation repository not configured")
	}

	logger := s.loggerWith(ctx, "Delete",
		"actor_id", actor.UserID,
		"reservation_id", reservationID,
	)

	if !actor.Authenticated() {
		return ErrUnauthenticated
	}

	existing, err := s.getOwned(ctx, actor, reservationID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.reservations.DeleteReservation(ctx, reservationID); err != nil {
		err = mapReservationRepoError(err)
		logger.ErrorContext(ctx, "failed to delete reservation", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.publishEvent(ctx, EventReservationDeleted, existing, actor)
	logger.InfoContext(ctx, "reservation deleted")
	return nil
}

// Approve transitions a pending reservation to approved. Admin only.
func (s *BookingService) Approve(ctx context.Context, actor Actor, reservationID string) (Reservation, error) {
	return s.review(ctx, actor, reservationID, availability.StatusApproved, EventReservationApproved)
}

// Reject transitions a pending reservation to rejected. Admin only.
func (s *BookingService) Reject(ctx context.Context, actor Actor, reservationID string) (Reservation, error) {
	return s.review(ctx, actor, reservationID, availability.StatusRejected, EventReservationRejected)
}

func (s *BookingService) review(ctx context.Context, actor Actor, reservationID string, target availability.ReservationStatus, eventType ReservationEventType) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Review",
		"actor_id", actor.UserID,
		"reservation_id", reservationID,
		"target_status", string(target),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to review reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation reviewed")
	}()

	if !actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}
	if !actor.IsAdmin {
		err = ErrUnauthorized
		return
	}

	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	if existing.Status != availability.StatusPending {
		err = ErrInvalidState
		return
	}

	existing.Status = target
	existing.UpdatedAt = s.now()

	reservation, err = s.reservations.UpdateReservation(ctx, existing)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.publishEvent(ctx, eventType, reservation, actor)
	return
}

// Cancel transitions a pending, approved, or active reservation to
// cancelled. Cancelling an already cancelled reservation is a no-op.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Cancel",
		"actor_id", actor.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation cancelled")
	}()

	if !actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	existing, err := s.getOwned(ctx, actor, reservationID)
	if err != nil {
		return
	}

	switch existing.Status {
	case availability.StatusCancelled:
		reservation = existing
		return
	case availability.StatusPending, availability.StatusApproved, availability.StatusActive:
		// cancellable
	default:
		err = ErrInvalidState
		return
	}

	existing.Status = availability.StatusCancelled
	existing.UpdatedAt = s.now()

	reservation, err = s.reservations.UpdateReservation(ctx, existing)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.publishEvent(ctx, EventReservationCancelled, reservation, actor)
	return
}

// ListReservations returns reservations visible to the actor. Regular users
// see only their own bookings; admins may scope by user, resource, or type.
func (s *BookingService) ListReservations(ctx context.Context, params ListReservationsParams) (reservations []Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListReservations",
		"actor_id", params.Actor.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(reservations)).InfoContext(ctx, "reservations listed")
	}()

	if !params.Actor.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	filter := ReservationRepositoryFilter{
		ResourceID:   params.ResourceID,
		ResourceType: params.ResourceType,
		UserID:       params.UserID,
	}
	if !params.Actor.IsAdmin {
		filter.UserID = params.Actor.UserID
	}

	reservations, err = s.reservations.ListReservations(ctx, filter)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}
	return
}

func (s *BookingService) lookupResource(ctx context.Context, resourceID string) (Resource, error) {
	if strings.TrimSpace(resourceID) == "" {
		return Resource{}, ErrNotFound
	}
	resource, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return Resource{}, mapReservationRepoError(err)
	}
	return resource, nil
}

func (s *BookingService) snapshotFor(ctx context.Context, resource Resource) ([]availability.Reservation, error) {
	reservations, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		ResourceID:   resource.ID,
		ResourceType: resource.Type,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, mapReservationRepoError(err)
	}
	return toAvailabilityReservations(reservations), nil
}

func (s *BookingService) getOwned(ctx context.Context, actor Actor, reservationID string) (Reservation, error) {
	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, mapReservationRepoError(err)
	}
	if existing.UserID != actor.UserID && !actor.IsAdmin {
		return Reservation{}, ErrUnauthorized
	}
	return existing, nil
}

func (s *BookingService) recheckCapacity(ctx context.Context, updated Reservation) error {
	if s.resources == nil {
		return nil
	}
	resource, err := s.resources.GetResource(ctx, updated.ResourceID)
	if err != nil {
		return mapReservationRepoError(err)
	}
	snapshot, err := s.snapshotFor(ctx, resource)
	if err != nil {
		return err
	}

	committed := 0
	for _, other := range snapshot {
		if other.ID == updated.ID {
			continue
		}
		if !other.Status.CountsTowardCapacity() {
			continue
		}
		if other.Start.Before(updated.End) && other.End.After(updated.Start) {
			quantity := other.Quantity
			if quantity < 1 {
				quantity = 1
			}
			committed += quantity
		}
	}

	if updated.Quantity > resource.CapacityUnits()-committed {
		return ErrInsufficientCapacity
	}
	return nil
}

func (s *BookingService) publishEvent(ctx context.Context, eventType ReservationEventType, reservation Reservation, actor Actor) {
	if s.events == nil {
		return
	}
	event := ReservationEvent{
		Type:        eventType,
		Reservation: reservation,
		ActorID:     actor.UserID,
		At:          s.now(),
	}
	if err := s.events.PublishReservationEvent(ctx, event); err != nil {
		s.loggerWith(ctx, "publishEvent").WarnContext(ctx, "failed to publish reservation event",
			"error", err,
			"event_type", string(eventType),
			"reservation_id", reservation.ID,
		)
	}
}

func validateDetails(resource Resource, details BookingDetails) *ValidationError {
	vErr := &ValidationError{}

	switch resource.Type {
	case availability.ResourceRoom:
		if strings.TrimSpace(details.Purpose) == "" {
			vErr.add("purpose", "purpose is required for room bookings")
		}
		if details.Quantity > 1 {
			vErr.add("quantity", "room reservations always book exactly one unit")
		}
	case availability.ResourceDevice:
		if len(uniqueStrings(details.DevicePurposes)) == 0 {
			vErr.add("device_purposes", "at least one purpose is required for device bookings")
		}
		if details.Quantity < 0 {
			vErr.add("quantity", "quantity must be a positive integer")
		}
	}

	return vErr
}

func normalizeQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}

func bookedByName(actor Actor) string {
	if strings.TrimSpace(actor.DisplayName) != "" {
		return strings.TrimSpace(actor.DisplayName)
	}
	return actor.UserID
}

func invalidPeriodError(err error) error {
	vErr := &ValidationError{}
	vErr.add("period", err.Error())
	return vErr
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func toAvailabilityReservations(reservations []Reservation) []availability.Reservation {
	if len(reservations) == 0 {
		return nil
	}
	out := make([]availability.Reservation, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, reservation.toAvailability())
	}
	return out
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) || errors.Is(err, persistence.ErrConstraintViolation) || errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("reservation", "reservation conflicts with stored constraints")
		return vErr
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
