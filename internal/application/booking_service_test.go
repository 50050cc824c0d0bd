package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/resource-booking/internal/availability"
)

type reservationRepoStub struct {
	store     map[string]Reservation
	order     []string
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
}

func newReservationRepoStub(seed ...Reservation) *reservationRepoStub {
	stub := &reservationRepoStub{store: make(map[string]Reservation)}
	for _, reservation := range seed {
		stub.store[reservation.ID] = reservation
		stub.order = append(stub.order, reservation.ID)
	}
	return stub
}

func (s *reservationRepoStub) CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	if s.createErr != nil {
		return Reservation{}, s.createErr
	}
	s.store[reservation.ID] = reservation
	s.order = append(s.order, reservation.ID)
	return reservation, nil
}

func (s *reservationRepoStub) GetReservation(ctx context.Context, id string) (Reservation, error) {
	if s.getErr != nil {
		return Reservation{}, s.getErr
	}
	reservation, ok := s.store[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return reservation, nil
}

func (s *reservationRepoStub) UpdateReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	if s.updateErr != nil {
		return Reservation{}, s.updateErr
	}
	if _, ok := s.store[reservation.ID]; !ok {
		return Reservation{}, ErrNotFound
	}
	s.store[reservation.ID] = reservation
	return reservation, nil
}

func (s *reservationRepoStub) DeleteReservation(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.store[id]; !ok {
		return ErrNotFound
	}
	delete(s.store, id)
	return nil
}

func (s *reservationRepoStub) ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]Reservation, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Reservation, 0, len(s.order))
	for _, id := range s.order {
		reservation, ok := s.store[id]
		if !ok {
			continue
		}
		if filter.ResourceID != "" && reservation.ResourceID != filter.ResourceID {
			continue
		}
		if filter.ResourceType != "" && reservation.ResourceType != filter.ResourceType {
			continue
		}
		if filter.UserID != "" && reservation.UserID != filter.UserID {
			continue
		}
		out = append(out, reservation)
	}
	return out, nil
}

type resourceCatalogStub struct {
	resources map[string]Resource
	err       error
}

func newResourceCatalogStub(resources ...Resource) *resourceCatalogStub {
	stub := &resourceCatalogStub{resources: make(map[string]Resource)}
	for _, resource := range resources {
		stub.resources[resource.ID] = resource
	}
	return stub
}

func (s *resourceCatalogStub) GetResource(ctx context.Context, id string) (Resource, error) {
	if s.err != nil {
		return Resource{}, s.err
	}
	resource, ok := s.resources[id]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return resource, nil
}

func (s *resourceCatalogStub) ListResources(ctx context.Context, resourceType availability.ResourceType) ([]Resource, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		if resourceType != "" && resource.Type != resourceType {
			continue
		}
		out = append(out, resource)
	}
	return out, nil
}

type eventSinkStub struct {
	events []ReservationEvent
	err    error
}

func (s *eventSinkStub) PublishReservationEvent(ctx context.Context, event ReservationEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

var bookingPeriod = availability.Period{Name: "period_2", Label: "2nd Period", Start: "09:00", End: "09:45"}

func bookingDate() time.Time {
	return time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
}

func morningClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	}
}

func sequentialIDs(prefix string) func() string {
	counter := 0
	return func() string {
		counter++
		return fmt.Sprintf("%s-%d", prefix, counter)
	}
}

func testRoom() Resource {
	return Resource{ID: "room-1", Name: "Meeting Room A", Type: availability.ResourceRoom, Status: ResourceAvailable, Quantity: 1}
}

func testDevicePool(units int) Resource {
	return Resource{ID: "dev-1", Name: "Projector Pool", Type: availability.ResourceDevice, Status: ResourceAvailable, Quantity: units}
}

func approvedRoomReservation(id string) Reservation {
	return Reservation{
		ID:           id,
		UserID:       "someone-else",
		ResourceID:   "room-1",
		ResourceType: availability.ResourceRoom,
		Start:        time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC),
		Status:       availability.StatusApproved,
		Quantity:     1,
		Purpose:      "standup",
	}
}

func newTestBookingService(repo *reservationRepoStub, catalog *resourceCatalogStub, autoApprove bool) *BookingService {
	return NewBookingService(repo, catalog, nil, autoApprove, sequentialIDs("res"), morningClock())
}

func TestBookingService_Book_RequiresAuthenticatedActor(t *testing.T) {
	t.Parallel()

	svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), true)

	_, err := svc.Book(context.Background(), BookParams{
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestBookingService_Book_RejectsPastSlot(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	svc := NewBookingService(repo, newResourceCatalogStub(testRoom()), nil, true, sequentialIDs("res"), func() time.Time {
		return time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	})

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	})
	if !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("expected ErrSlotInPast, got %v", err)
	}
	if len(repo.store) != 0 {
		t.Fatal("no reservation may be created for a past slot")
	}
}

func TestBookingService_Book_ReportsPastSlotBeforeResourceLookup(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	svc := NewBookingService(repo, newResourceCatalogStub(), nil, true, sequentialIDs("res"), func() time.Time {
		return time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	})

	// Past classification comes first, so an unknown resource id does not
	// change the answer for a slot that already started.
	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "no-such-resource",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	})
	if !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("expected ErrSlotInPast, got %v", err)
	}
}

func TestBookingService_Book_AllowsSlotStartingExactlyNow(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	svc := NewBookingService(repo, newResourceCatalogStub(testRoom()), nil, true, sequentialIDs("res"), func() time.Time {
		return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	})

	if _, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	}); err != nil {
		t.Fatalf("slot starting exactly now must be bookable, got %v", err)
	}
}

func TestBookingService_Book_UnknownResource(t *testing.T) {
	t.Parallel()

	svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(), true)

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "missing",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookingService_Book_RejectsResourceUnderMaintenance(t *testing.T) {
	t.Parallel()

	room := testRoom()
	room.Status = ResourceMaintenance
	svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(room), true)

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: room.ID,
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["resource"]; !ok {
		t.Fatalf("expected resource validation error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_Book_RoomDoubleBookingBlocked(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(approvedRoomReservation("existing"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "review"},
	})
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}
}

func TestBookingService_Book_AdjacentPeriodDoesNotConflict(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(approvedRoomReservation("existing"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	next := availability.Period{Name: "period_3", Label: "3rd Period", Start: "09:45", End: "10:30"}
	reservation, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     next,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "review"},
	})
	if err != nil {
		t.Fatalf("adjacent period must not conflict, got %v", err)
	}
	if reservation.Status != availability.StatusApproved {
		t.Fatalf("expected approved status, got %s", reservation.Status)
	}
}

func TestBookingService_Book_CancelledReservationFreesCapacity(t *testing.T) {
	t.Parallel()

	cancelled := approvedRoomReservation("existing")
	cancelled.Status = availability.StatusCancelled
	repo := newReservationRepoStub(cancelled)
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	if _, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "review"},
	}); err != nil {
		t.Fatalf("cancelled reservations must not block the slot, got %v", err)
	}
}

func TestBookingService_Book_DevicePartialQuantities(t *testing.T) {
	t.Parallel()

	existing := Reservation{
		ID:             "existing",
		UserID:         "someone-else",
		ResourceID:     "dev-1",
		ResourceType:   availability.ResourceDevice,
		Start:          time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC),
		Status:         availability.StatusApproved,
		Quantity:       3,
		DevicePurposes: []string{"presentation"},
	}
	repo := newReservationRepoStub(existing)
	svc := newTestBookingService(repo, newResourceCatalogStub(testDevicePool(5)), true)

	reservation, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "dev-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Quantity: 2, DevicePurposes: []string{"training"}},
	})
	if err != nil {
		t.Fatalf("two remaining units must satisfy quantity 2, got %v", err)
	}
	if reservation.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", reservation.Quantity)
	}

	_, err = svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-2"},
		ResourceID: "dev-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Quantity: 1, DevicePurposes: []string{"demo"}},
	})
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity once pool is exhausted, got %v", err)
	}
}

func TestBookingService_Book_DefaultsQuantityToOne(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	svc := newTestBookingService(repo, newResourceCatalogStub(testDevicePool(5)), true)

	reservation, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "dev-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{DevicePurposes: []string{"training"}},
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if reservation.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", reservation.Quantity)
	}
}

func TestBookingService_Book_RequiresRoomPurpose(t *testing.T) {
	t.Parallel()

	svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), true)

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "   "},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["purpose"]; !ok {
		t.Fatalf("expected purpose validation error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_Book_RejectsRoomQuantityAboveOne(t *testing.T) {
	t.Parallel()

	svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), true)

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup", Quantity: 2},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["quantity"]; !ok {
		t.Fatalf("expected quantity validation error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_Book_RequiresDevicePurposes(t *testing.T) {
	t.Parallel()

	svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(testDevicePool(5)), true)

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "dev-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Quantity: 1},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["device_purposes"]; !ok {
		t.Fatalf("expected device_purposes validation error, got %v", vErr.FieldErrors)
	}
}

func TestBookingService_Book_ApprovalPolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		autoApprove bool
		want        availability.ReservationStatus
	}{
		{"auto approve commits approved", true, availability.StatusApproved},
		{"manual review commits pending", false, availability.StatusPending},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), tc.autoApprove)

			reservation, err := svc.Book(context.Background(), BookParams{
				Actor:      Actor{UserID: "user-1"},
				ResourceID: "room-1",
				Period:     bookingPeriod,
				Date:       bookingDate(),
				Details:    BookingDetails{Purpose: "standup"},
			})
			if err != nil {
				t.Fatalf("Book failed: %v", err)
			}
			if reservation.Status != tc.want {
				t.Fatalf("expected status %s, got %s", tc.want, reservation.Status)
			}
		})
	}
}

func TestBookingService_Book_WrapsStoreFailures(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	repo.createErr = errors.New("disk full")
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	_, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	})
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
}

func TestBookingService_Book_PublishesCreatedEvent(t *testing.T) {
	t.Parallel()

	sink := &eventSinkStub{}
	svc := NewBookingService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), sink, true, sequentialIDs("res"), morningClock())

	reservation, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one event, got %d", len(sink.events))
	}
	event := sink.events[0]
	if event.Type != EventReservationCreated || event.Reservation.ID != reservation.ID || event.ActorID != "user-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestBookingService_Book_EventFailureDoesNotFailBooking(t *testing.T) {
	t.Parallel()

	sink := &eventSinkStub{err: errors.New("broker unavailable")}
	svc := NewBookingService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), sink, true, sequentialIDs("res"), morningClock())

	if _, err := svc.Book(context.Background(), BookParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Period:     bookingPeriod,
		Date:       bookingDate(),
		Details:    BookingDetails{Purpose: "standup"},
	}); err != nil {
		t.Fatalf("publish failures must not fail the booking, got %v", err)
	}
}

func batchSlots(periods ...availability.Period) []Slot {
	slots := make([]Slot, 0, len(periods))
	for _, period := range periods {
		slots = append(slots, Slot{Period: period, Date: bookingDate()})
	}
	return slots
}

func TestBookingService_BookMany_CommitsAllFreeSlots(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	third := availability.Period{Name: "period_3", Label: "3rd Period", Start: "09:45", End: "10:30"}
	result, err := svc.BookMany(context.Background(), BookManyParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Slots:      batchSlots(bookingPeriod, third),
		Details:    BookingDetails{Purpose: "workshop"},
	})
	if err != nil {
		t.Fatalf("BookMany failed: %v", err)
	}
	if len(result.Succeeded) != 2 || len(result.Failed) != 0 {
		t.Fatalf("expected 2 successes, got %+v", result)
	}
	if len(repo.store) != 2 {
		t.Fatalf("expected 2 persisted reservations, got %d", len(repo.store))
	}
}

func TestBookingService_BookMany_QuantityPrecheckRejectsWholeBatch(t *testing.T) {
	t.Parallel()

	// Slot two already has 4 of 5 units committed, so quantity 2 cannot fit
	// every requested slot and nothing may commit.
	existing := Reservation{
		ID:             "existing",
		UserID:         "someone-else",
		ResourceID:     "dev-1",
		ResourceType:   availability.ResourceDevice,
		Start:          time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC),
		End:            time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC),
		Status:         availability.StatusApproved,
		Quantity:       4,
		DevicePurposes: []string{"presentation"},
	}
	repo := newReservationRepoStub(existing)
	svc := newTestBookingService(repo, newResourceCatalogStub(testDevicePool(5)), true)

	third := availability.Period{Name: "period_3", Label: "3rd Period", Start: "09:45", End: "10:30"}
	_, err := svc.BookMany(context.Background(), BookManyParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "dev-1",
		Slots:      batchSlots(bookingPeriod, third),
		Details:    BookingDetails{Quantity: 2, DevicePurposes: []string{"training"}},
	})
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}
	if len(repo.store) != 1 {
		t.Fatalf("pre-check failure must not commit any slot, store has %d reservations", len(repo.store))
	}
}

func TestBookingService_BookMany_PastSlotFailsIndependently(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	svc := NewBookingService(repo, newResourceCatalogStub(testRoom()), nil, true, sequentialIDs("res"), func() time.Time {
		return time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	})

	third := availability.Period{Name: "period_3", Label: "3rd Period", Start: "09:45", End: "10:30"}
	result, err := svc.BookMany(context.Background(), BookManyParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Slots:      batchSlots(bookingPeriod, third),
		Details:    BookingDetails{Purpose: "workshop"},
	})
	if err != nil {
		t.Fatalf("BookMany failed: %v", err)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0].Start.Hour() != 9 || result.Succeeded[0].Start.Minute() != 45 {
		t.Fatalf("expected only the future slot to commit, got %+v", result.Succeeded)
	}
	if len(result.Failed) != 1 || !errors.Is(result.Failed[0].Err, ErrSlotInPast) {
		t.Fatalf("expected one past-slot failure, got %+v", result.Failed)
	}
}

func TestBookingService_BookMany_SnapshotFixedAtBatchStart(t *testing.T) {
	t.Parallel()

	// The same period twice: the second commit is validated against the
	// snapshot taken at batch start, so it does not see the first commit.
	repo := newReservationRepoStub()
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	result, err := svc.BookMany(context.Background(), BookManyParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Slots:      batchSlots(bookingPeriod, bookingPeriod),
		Details:    BookingDetails{Purpose: "workshop"},
	})
	if err != nil {
		t.Fatalf("BookMany failed: %v", err)
	}
	if len(result.Succeeded) != 2 {
		t.Fatalf("snapshot semantics admit both commits, got %+v", result)
	}
}

func TestBookingService_BookMany_RequiresSlots(t *testing.T) {
	t.Parallel()

	svc := newTestBookingService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), true)

	_, err := svc.BookMany(context.Background(), BookManyParams{
		Actor:      Actor{UserID: "user-1"},
		ResourceID: "room-1",
		Details:    BookingDetails{Purpose: "workshop"},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["slots"]; !ok {
		t.Fatalf("expected slots validation error, got %v", vErr.FieldErrors)
	}
}

func ownedReservation(id, userID string) Reservation {
	return Reservation{
		ID:           id,
		UserID:       userID,
		ResourceID:   "room-1",
		ResourceType: availability.ResourceRoom,
		Start:        time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC),
		Status:       availability.StatusApproved,
		Quantity:     1,
		Purpose:      "standup",
	}
}

func TestBookingService_Update_RejectsNonOwner(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(ownedReservation("res-1", "owner"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	purpose := "hijacked"
	_, err := svc.Update(context.Background(), UpdateReservationParams{
		Actor:         Actor{UserID: "intruder"},
		ReservationID: "res-1",
		Patch:         ReservationPatch{Purpose: &purpose},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestBookingService_Update_AdminMayEditAnyReservation(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(ownedReservation("res-1", "owner"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	purpose := "retro"
	updated, err := svc.Update(context.Background(), UpdateReservationParams{
		Actor:         Actor{UserID: "admin", IsAdmin: true},
		ReservationID: "res-1",
		Patch:         ReservationPatch{Purpose: &purpose},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Purpose != "retro" {
		t.Fatalf("expected purpose updated, got %q", updated.Purpose)
	}
}

func TestBookingService_Update_RejectsPastReservation(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(ownedReservation("res-1", "owner"))
	svc := NewBookingService(repo, newResourceCatalogStub(testRoom()), nil, true, sequentialIDs("res"), func() time.Time {
		return time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	})

	purpose := "late edit"
	_, err := svc.Update(context.Background(), UpdateReservationParams{
		Actor:         Actor{UserID: "owner"},
		ReservationID: "res-1",
		Patch:         ReservationPatch{Purpose: &purpose},
	})
	if !errors.Is(err, ErrSlotInPast) {
		t.Fatalf("expected ErrSlotInPast, got %v", err)
	}
}

func TestBookingService_Update_QuantityIncreaseExcludesOwnCommitment(t *testing.T) {
	t.Parallel()

	mine := Reservation{
		ID:             "res-1",
		UserID:         "owner",
		ResourceID:     "dev-1",
		ResourceType:   availability.ResourceDevice,
		Start:          time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC),
		Status:         availability.StatusApproved,
		Quantity:       2,
		DevicePurposes: []string{"training"},
	}
	repo := newReservationRepoStub(mine)
	svc := newTestBookingService(repo, newResourceCatalogStub(testDevicePool(5)), true)

	quantity := 5
	updated, err := svc.Update(context.Background(), UpdateReservationParams{
		Actor:         Actor{UserID: "owner"},
		ReservationID: "res-1",
		Patch:         ReservationPatch{Quantity: &quantity},
	})
	if err != nil {
		t.Fatalf("growing into own freed units must succeed, got %v", err)
	}
	if updated.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", updated.Quantity)
	}
}

func TestBookingService_Update_QuantityIncreaseBeyondCapacity(t *testing.T) {
	t.Parallel()

	mine := Reservation{
		ID:             "res-1",
		UserID:         "owner",
		ResourceID:     "dev-1",
		ResourceType:   availability.ResourceDevice,
		Start:          time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC),
		Status:         availability.StatusApproved,
		Quantity:       1,
		DevicePurposes: []string{"training"},
	}
	other := Reservation{
		ID:             "res-2",
		UserID:         "neighbor",
		ResourceID:     "dev-1",
		ResourceType:   availability.ResourceDevice,
		Start:          time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 6, 10, 9, 45, 0, 0, time.UTC),
		Status:         availability.StatusApproved,
		Quantity:       3,
		DevicePurposes: []string{"demo"},
	}
	repo := newReservationRepoStub(mine, other)
	svc := newTestBookingService(repo, newResourceCatalogStub(testDevicePool(5)), true)

	quantity := 3
	_, err := svc.Update(context.Background(), UpdateReservationParams{
		Actor:         Actor{UserID: "owner"},
		ReservationID: "res-1",
		Patch:         ReservationPatch{Quantity: &quantity},
	})
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}
}

func TestBookingService_Delete_OwnerMayDelete(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(ownedReservation("res-1", "owner"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	if err := svc.Delete(context.Background(), Actor{UserID: "owner"}, "res-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(repo.store) != 0 {
		t.Fatal("expected reservation removed")
	}
}

func TestBookingService_Delete_RejectsNonOwner(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(ownedReservation("res-1", "owner"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	if err := svc.Delete(context.Background(), Actor{UserID: "intruder"}, "res-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestBookingService_Approve_RequiresAdmin(t *testing.T) {
	t.Parallel()

	pending := ownedReservation("res-1", "owner")
	pending.Status = availability.StatusPending
	repo := newReservationRepoStub(pending)
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), false)

	if _, err := svc.Approve(context.Background(), Actor{UserID: "owner"}, "res-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	approved, err := svc.Approve(context.Background(), Actor{UserID: "admin", IsAdmin: true}, "res-1")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != availability.StatusApproved {
		t.Fatalf("expected approved status, got %s", approved.Status)
	}
}

func TestBookingService_Reject_OnlyFromPending(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(ownedReservation("res-1", "owner"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), false)

	if _, err := svc.Reject(context.Background(), Actor{UserID: "admin", IsAdmin: true}, "res-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for non-pending reservation, got %v", err)
	}
}

func TestBookingService_Cancel_Transitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  availability.ReservationStatus
		want    availability.ReservationStatus
		wantErr error
	}{
		{"pending cancels", availability.StatusPending, availability.StatusCancelled, nil},
		{"approved cancels", availability.StatusApproved, availability.StatusCancelled, nil},
		{"active cancels", availability.StatusActive, availability.StatusCancelled, nil},
		{"cancelled is a no-op", availability.StatusCancelled, availability.StatusCancelled, nil},
		{"rejected is terminal", availability.StatusRejected, "", ErrInvalidState},
		{"completed is terminal", availability.StatusCompleted, "", ErrInvalidState},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reservation := ownedReservation("res-1", "owner")
			reservation.Status = tc.status
			repo := newReservationRepoStub(reservation)
			svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

			cancelled, err := svc.Cancel(context.Background(), Actor{UserID: "owner"}, "res-1")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel failed: %v", err)
			}
			if cancelled.Status != tc.want {
				t.Fatalf("expected status %s, got %s", tc.want, cancelled.Status)
			}
		})
	}
}

func TestBookingService_ListReservations_ScopesRegularUsersToOwnBookings(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(
		ownedReservation("res-1", "owner"),
		ownedReservation("res-2", "neighbor"),
	)
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	mine, err := svc.ListReservations(context.Background(), ListReservationsParams{
		Actor:  Actor{UserID: "owner"},
		UserID: "neighbor",
	})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "res-1" {
		t.Fatalf("regular users must only see their own bookings, got %+v", mine)
	}

	all, err := svc.ListReservations(context.Background(), ListReservationsParams{
		Actor: Actor{UserID: "admin", IsAdmin: true},
	})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admins see every booking, got %+v", all)
	}
}

func TestBookingService_Cancel_RejectsNonOwner(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub(ownedReservation("res-1", "owner"))
	svc := newTestBookingService(repo, newResourceCatalogStub(testRoom()), true)

	if _, err := svc.Cancel(context.Background(), Actor{UserID: "intruder"}, "res-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
