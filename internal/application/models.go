package application

import (
	"time"

	"github.com/example/resource-booking/internal/availability"
)

// Actor represents the authenticated user invoking a service method.
type Actor struct {
	UserID      string
	DisplayName string
	IsAdmin     bool
}

// Authenticated reports whether the actor carries a resolved identity.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

// ResourceStatus enumerates catalog availability states.
type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceBooked      ResourceStatus = "booked"
	ResourceMaintenance ResourceStatus = "maintenance"
)

// Resource is a bookable catalog entry: a room or a multi-unit device.
type Resource struct {
	ID        string
	Name      string
	Type      availability.ResourceType
	Status    ResourceStatus
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CapacityUnits returns the total bookable units for the resource.
func (r Resource) CapacityUnits() int {
	return r.toAvailability().CapacityUnits()
}

// Offerable reports whether the resource can currently accept bookings.
func (r Resource) Offerable() bool {
	if r.Status != ResourceAvailable {
		return false
	}
	if r.Type == availability.ResourceDevice && r.Quantity <= 0 {
		return false
	}
	return true
}

func (r Resource) toAvailability() availability.Resource {
	return availability.Resource{ID: r.ID, Type: r.Type, Units: r.Quantity}
}

// ResourceInput captures caller provided resource fields.
type ResourceInput struct {
	Name     string
	Type     availability.ResourceType
	Status   ResourceStatus
	Quantity int
}

// CreateResourceParams wraps the data required to create a resource.
type CreateResourceParams struct {
	Actor Actor
	Input ResourceInput
}

// UpdateResourceParams wraps the data required to update a resource.
type UpdateResourceParams struct {
	Actor      Actor
	ResourceID string
	Input      ResourceInput
}

// Reservation represents a persisted booking of one resource for one window.
type Reservation struct {
	ID             string
	UserID         string
	BookedBy       string
	ResourceID     string
	ResourceType   availability.ResourceType
	Start          time.Time
	End            time.Time
	Status         availability.ReservationStatus
	Quantity       int
	Purpose        string
	DevicePurposes []string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r Reservation) toAvailability() availability.Reservation {
	return availability.Reservation{
		ID:         r.ID,
		ResourceID: r.ResourceID,
		Type:       r.ResourceType,
		Status:     r.Status,
		Start:      r.Start,
		End:        r.End,
		Quantity:   r.Quantity,
	}
}

// BookingDetails carries the caller supplied metadata for a booking.
type BookingDetails struct {
	Quantity       int
	Purpose        string
	DevicePurposes []string
	Notes          string
}

// BookParams wraps the data required to book a single slot.
type BookParams struct {
	Actor      Actor
	ResourceID string
	Period     availability.Period
	Date       time.Time
	Details    BookingDetails
}

// Slot identifies one bookable (period, date) window.
type Slot struct {
	Period availability.Period
	Date   time.Time
}

// BookManyParams wraps the data required to book several slots of one
// resource in a single user action.
type BookManyParams struct {
	Actor      Actor
	ResourceID string
	Slots      []Slot
	Details    BookingDetails
}

// SlotFailure records a per-slot booking failure inside a batch.
type SlotFailure struct {
	Slot Slot
	Err  error
}

// BatchResult partitions a batch booking into successes and failures.
type BatchResult struct {
	Succeeded []Reservation
	Failed    []SlotFailure
}

// ReservationPatch captures the mutable reservation fields. Time, resource
// identity, and attribution never change after creation.
type ReservationPatch struct {
	Purpose        *string
	DevicePurposes *[]string
	Notes          *string
	Quantity       *int
}

// UpdateReservationParams wraps the data required to edit a reservation.
type UpdateReservationParams struct {
	Actor         Actor
	ReservationID string
	Patch         ReservationPatch
}

// ListReservationsParams narrows reservation listings. UserID is honored for
// admins only.
type ListReservationsParams struct {
	Actor        Actor
	ResourceID   string
	ResourceType availability.ResourceType
	UserID       string
}

// SlotAvailability describes one slot for rendering: the overlapping active
// reservations, the committed/remaining units, and past classification.
type SlotAvailability struct {
	Resource    Resource
	Period      availability.Period
	Date        time.Time
	Overlapping []Reservation
	Committed   int
	Remaining   int
	Past        bool
}

// User represents an account known to the booking service.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication.
type AuthenticateResult struct {
	User    User
	Session Session
}
