package availability

import "time"

// ResourceType distinguishes the two bookable resource shapes.
type ResourceType string

const (
	// ResourceRoom is an indivisible resource booked as a whole.
	ResourceRoom ResourceType = "room"
	// ResourceDevice is an inventory of interchangeable units.
	ResourceDevice ResourceType = "device"
)

// ReservationStatus enumerates the reservation lifecycle states.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusRejected  ReservationStatus = "rejected"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
	StatusActive    ReservationStatus = "active"
)

// CountsTowardCapacity reports whether a reservation in this status consumes
// units. Cancelled and rejected reservations never do.
func (s ReservationStatus) CountsTowardCapacity() bool {
	return s != StatusCancelled && s != StatusRejected
}

// Resource is the calculator's view of a bookable catalog entry.
type Resource struct {
	ID    string
	Type  ResourceType
	Units int
}

// CapacityUnits returns the total bookable units: always 1 for rooms, the
// unit inventory for devices.
func (r Resource) CapacityUnits() int {
	if r.Type == ResourceRoom {
		return 1
	}
	return r.Units
}

// Reservation is the calculator's view of a committed booking.
type Reservation struct {
	ID         string
	ResourceID string
	Type       ResourceType
	Status     ReservationStatus
	Start      time.Time
	End        time.Time
	Quantity   int
}

func (r Reservation) units() int {
	if r.Quantity < 1 {
		return 1
	}
	return r.Quantity
}

// Overlapping returns every reservation on the resource whose half-open
// interval intersects the period window on the given date and whose status
// still counts toward capacity.
func Overlapping(resource Resource, period Period, date time.Time, reservations []Reservation) ([]Reservation, error) {
	window, err := period.Window(date)
	if err != nil {
		return nil, err
	}

	var matched []Reservation
	for _, reservation := range reservations {
		if reservation.ResourceID != resource.ID || reservation.Type != resource.Type {
			continue
		}
		if !reservation.Status.CountsTowardCapacity() {
			continue
		}
		if !window.Overlaps(reservation.Start, reservation.End) {
			continue
		}
		matched = append(matched, reservation)
	}

	return matched, nil
}

// Capacity reports committed and remaining units for one slot. Remaining is
// returned raw and may be negative; callers clamp for display.
type Capacity struct {
	Committed int
	Remaining int
}

// ComputeCapacity sums committed units over overlapping reservations and
// derives the remaining capacity. excludeID removes one reservation from the
// sum, so an edit does not count its own prior commitment against itself.
func ComputeCapacity(resource Resource, period Period, date time.Time, reservations []Reservation, excludeID string) (Capacity, error) {
	overlapping, err := Overlapping(resource, period, date, reservations)
	if err != nil {
		return Capacity{}, err
	}

	committed := 0
	for _, reservation := range overlapping {
		if excludeID != "" && reservation.ID == excludeID {
			continue
		}
		committed += reservation.units()
	}

	return Capacity{
		Committed: committed,
		Remaining: resource.CapacityUnits() - committed,
	}, nil
}

// SlotInPast reports whether the slot's window start is strictly before now.
// Today's not-yet-started periods are never past.
func SlotInPast(period Period, date time.Time, now time.Time) (bool, error) {
	window, err := period.Window(date)
	if err != nil {
		return false, err
	}
	return window.Start.Before(now), nil
}

// RoomUsage aggregates one slot across every room in the catalog.
type RoomUsage struct {
	BookedRooms int
	TotalRooms  int
}

// RoomsUsage counts rooms with at least one overlapping active reservation
// against the total room count.
func RoomsUsage(resources []Resource, period Period, date time.Time, reservations []Reservation) (RoomUsage, error) {
	usage := RoomUsage{}
	for _, resource := range resources {
		if resource.Type != ResourceRoom {
			continue
		}
		usage.TotalRooms++
		overlapping, err := Overlapping(resource, period, date, reservations)
		if err != nil {
			return RoomUsage{}, err
		}
		if len(overlapping) > 0 {
			usage.BookedRooms++
		}
	}
	return usage, nil
}

// DeviceUsage aggregates one slot across every device in the catalog.
type DeviceUsage struct {
	TotalUnits     int
	BookedUnits    int
	AvailableUnits int
}

// DevicesUsage sums potential units and committed units across all devices
// for the slot.
func DevicesUsage(resources []Resource, period Period, date time.Time, reservations []Reservation) (DeviceUsage, error) {
	usage := DeviceUsage{}
	for _, resource := range resources {
		if resource.Type != ResourceDevice {
			continue
		}
		usage.TotalUnits += resource.CapacityUnits()
		capacity, err := ComputeCapacity(resource, period, date, reservations, "")
		if err != nil {
			return DeviceUsage{}, err
		}
		usage.BookedUnits += capacity.Committed
	}
	usage.AvailableUnits = usage.TotalUnits - usage.BookedUnits
	return usage, nil
}
