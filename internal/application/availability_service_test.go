package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/resource-booking/internal/availability"
)

func TestAvailabilityService_SlotDetail(t *testing.T) {
	t.Parallel()

	existing := approvedRoomReservation("existing")
	repo := newReservationRepoStub(existing)
	svc := NewAvailabilityService(repo, newResourceCatalogStub(testRoom()), nil, morningClock())

	detail, err := svc.SlotDetail(context.Background(), Actor{UserID: "user-1"}, "room-1", bookingPeriod, bookingDate())
	if err != nil {
		t.Fatalf("SlotDetail failed: %v", err)
	}
	if len(detail.Overlapping) != 1 || detail.Overlapping[0].ID != "existing" {
		t.Fatalf("expected the existing reservation, got %+v", detail.Overlapping)
	}
	if detail.Committed != 1 || detail.Remaining != 0 {
		t.Fatalf("expected committed=1 remaining=0, got %+v", detail)
	}
	if detail.Past {
		t.Fatal("morning query must not mark a 09:00 slot past")
	}
	if detail.Overlapping[0].Purpose != "standup" {
		t.Fatalf("expected full booking metadata, got %+v", detail.Overlapping[0])
	}
}

func TestAvailabilityService_SlotDetail_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	svc := NewAvailabilityService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), nil, morningClock())

	if _, err := svc.SlotDetail(context.Background(), Actor{}, "room-1", bookingPeriod, bookingDate()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAvailabilityService_ResourceDay_CoversAllPeriods(t *testing.T) {
	t.Parallel()

	svc := NewAvailabilityService(newReservationRepoStub(), newResourceCatalogStub(testRoom()), nil, morningClock())

	details, err := svc.ResourceDay(context.Background(), Actor{UserID: "user-1"}, "room-1", bookingDate())
	if err != nil {
		t.Fatalf("ResourceDay failed: %v", err)
	}
	if len(details) != len(availability.DefaultPeriods()) {
		t.Fatalf("expected one detail per period, got %d", len(details))
	}
	for i, detail := range details {
		if detail.Period.Name != availability.DefaultPeriods()[i].Name {
			t.Fatalf("expected period order preserved, got %+v at %d", detail.Period, i)
		}
	}
}

func TestAvailabilityService_RoomsOverview(t *testing.T) {
	t.Parallel()

	second := testRoom()
	second.ID = "room-2"
	second.Name = "Meeting Room B"
	repo := newReservationRepoStub(approvedRoomReservation("existing"))
	svc := NewAvailabilityService(repo, newResourceCatalogStub(testRoom(), second), nil, morningClock())

	usage, err := svc.RoomsOverview(context.Background(), Actor{UserID: "user-1"}, bookingPeriod, bookingDate())
	if err != nil {
		t.Fatalf("RoomsOverview failed: %v", err)
	}
	if usage.TotalRooms != 2 || usage.BookedRooms != 1 {
		t.Fatalf("expected 1 of 2 rooms booked, got %+v", usage)
	}
}

func TestAvailabilityService_RoomsOverview_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	repo := newReservationRepoStub()
	svc := NewAvailabilityService(repo, newResourceCatalogStub(testRoom()), nil, morningClock())

	if _, err := svc.RoomsOverview(context.Background(), Actor{UserID: "user-1"}, bookingPeriod, bookingDate()); err != nil {
		t.Fatalf("RoomsOverview failed: %v", err)
	}

	// A new reservation behind the cache's back is not visible until the
	// cache is dropped.
	if _, err := repo.CreateReservation(context.Background(), approvedRoomReservation("late")); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	usage, err := svc.RoomsOverview(context.Background(), Actor{UserID: "user-1"}, bookingPeriod, bookingDate())
	if err != nil {
		t.Fatalf("RoomsOverview failed: %v", err)
	}
	if usage.BookedRooms != 0 {
		t.Fatalf("expected cached summary, got %+v", usage)
	}

	svc.InvalidateCache()

	usage, err = svc.RoomsOverview(context.Background(), Actor{UserID: "user-1"}, bookingPeriod, bookingDate())
	if err != nil {
		t.Fatalf("RoomsOverview failed: %v", err)
	}
	if usage.BookedRooms != 1 {
		t.Fatalf("expected fresh summary after invalidation, got %+v", usage)
	}
}

func TestAvailabilityService_DevicesOverview(t *testing.T) {
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
	svc := NewAvailabilityService(repo, newResourceCatalogStub(testDevicePool(5)), nil, morningClock())

	usage, err := svc.DevicesOverview(context.Background(), Actor{UserID: "user-1"}, bookingPeriod, bookingDate())
	if err != nil {
		t.Fatalf("DevicesOverview failed: %v", err)
	}
	if usage.TotalUnits != 5 || usage.BookedUnits != 3 || usage.AvailableUnits != 2 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestMultiPublisher_FansOutAndSkipsNil(t *testing.T) {
	t.Parallel()

	first := &eventSinkStub{}
	second := &eventSinkStub{err: errors.New("broker down")}
	third := &eventSinkStub{}
	fanout := MultiPublisher{first, nil, second, third}

	event := ReservationEvent{Type: EventReservationCreated, ActorID: "user-1"}
	err := fanout.PublishReservationEvent(context.Background(), event)
	if err == nil || err.Error() != "broker down" {
		t.Fatalf("expected first error surfaced, got %v", err)
	}
	if len(first.events) != 1 || len(third.events) != 1 {
		t.Fatal("expected every non-nil publisher attempted")
	}
}

func TestPublisherFunc_Adapts(t *testing.T) {
	t.Parallel()

	var seen ReservationEvent
	publisher := PublisherFunc(func(ctx context.Context, event ReservationEvent) error {
		seen = event
		return nil
	})

	if err := publisher.PublishReservationEvent(context.Background(), ReservationEvent{Type: EventReservationCancelled}); err != nil {
		t.Fatalf("PublishReservationEvent failed: %v", err)
	}
	if seen.Type != EventReservationCancelled {
		t.Fatalf("expected event forwarded, got %+v", seen)
	}
}
