package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/resource-booking/internal/application"
	"github.com/example/resource-booking/internal/availability"
	"github.com/example/resource-booking/internal/persistence"
)

var (
	userCounter        uint64
	resourceCounter    uint64
	reservationCounter uint64
	sessionCounter     uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// WithUserDisabled sets the disabled flag on the generated fixture.
func WithUserDisabled(disabled bool) UserOption {
	return func(f *UserFixture) {
		f.Disabled = disabled
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
	}
}

// Actor returns an application.Actor derived from the fixture.
func (f UserFixture) Actor() application.Actor {
	return application.Actor{UserID: f.ID, DisplayName: f.DisplayName, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		IsAdmin:      f.IsAdmin,
		PasswordHash: f.PasswordHash,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// --------------------------- Resource fixtures ---------------------------

// ResourceFixture represents a deterministic catalog entry.
type ResourceFixture struct {
	ID        string
	Name      string
	Type      availability.ResourceType
	Status    application.ResourceStatus
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResourceOption configures the generated resource fixture.
type ResourceOption func(*ResourceFixture)

// NewResourceFixture returns a deterministic room fixture with optional
// overrides. Use WithResourceType to produce a device pool instead.
func NewResourceFixture(opts ...ResourceOption) ResourceFixture {
	idx := atomic.AddUint64(&resourceCounter, 1)
	id := fmt.Sprintf("resource-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := ResourceFixture{
		ID:        id,
		Name:      fmt.Sprintf("Resource %03d", idx),
		Type:      availability.ResourceRoom,
		Status:    application.ResourceAvailable,
		Quantity:  1,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithResourceID overrides the generated resource ID.
func WithResourceID(id string) ResourceOption {
	return func(f *ResourceFixture) {
		f.ID = id
	}
}

// WithResourceName overrides the generated resource name.
func WithResourceName(name string) ResourceOption {
	return func(f *ResourceFixture) {
		f.Name = name
	}
}

// WithResourceType overrides the generated resource type.
func WithResourceType(resourceType availability.ResourceType) ResourceOption {
	return func(f *ResourceFixture) {
		f.Type = resourceType
	}
}

// WithResourceStatus overrides the generated status.
func WithResourceStatus(status application.ResourceStatus) ResourceOption {
	return func(f *ResourceFixture) {
		f.Status = status
	}
}

// WithResourceQuantity overrides the generated unit count.
func WithResourceQuantity(quantity int) ResourceOption {
	return func(f *ResourceFixture) {
		f.Quantity = quantity
	}
}

// WithResourceTimestamps sets both timestamps on the fixture.
func WithResourceTimestamps(created, updated time.Time) ResourceOption {
	return func(f *ResourceFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Resource value.
func (f ResourceFixture) Application() application.Resource {
	return application.Resource{
		ID:        f.ID,
		Name:      f.Name,
		Type:      f.Type,
		Status:    f.Status,
		Quantity:  f.Quantity,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Resource value.
func (f ResourceFixture) Persistence() persistence.Resource {
	return persistence.Resource{
		ID:        f.ID,
		Name:      f.Name,
		Type:      string(f.Type),
		Status:    string(f.Status),
		Quantity:  f.Quantity,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Input returns the fixture as an application.ResourceInput.
func (f ResourceFixture) Input() application.ResourceInput {
	return application.ResourceInput{
		Name:     f.Name,
		Type:     f.Type,
		Status:   f.Status,
		Quantity: f.Quantity,
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic reservation record.
type ReservationFixture struct {
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

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic reservation fixture with
// optional overrides. By default it books a room for the second daily period
// on the day after the reference time.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	day := referenceTime.AddDate(0, 0, 1).Truncate(24 * time.Hour)
	start := day.Add(9 * time.Hour)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	fixture := ReservationFixture{
		ID:           fmt.Sprintf("reservation-%03d", idx),
		UserID:       "user-001",
		BookedBy:     "User 001",
		ResourceID:   "resource-001",
		ResourceType: availability.ResourceRoom,
		Start:        start,
		End:          start.Add(45 * time.Minute),
		Status:       availability.StatusApproved,
		Quantity:     1,
		Purpose:      "Team sync",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationUser sets the owning user and display attribution.
func WithReservationUser(userID, bookedBy string) ReservationOption {
	return func(f *ReservationFixture) {
		f.UserID = userID
		f.BookedBy = bookedBy
	}
}

// WithReservationResource sets the booked resource identity.
func WithReservationResource(resourceID string, resourceType availability.ResourceType) ReservationOption {
	return func(f *ReservationFixture) {
		f.ResourceID = resourceID
		f.ResourceType = resourceType
	}
}

// WithReservationWindow sets the booked time window.
func WithReservationWindow(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
		f.End = end
	}
}

// WithReservationStatus overrides the lifecycle status.
func WithReservationStatus(status availability.ReservationStatus) ReservationOption {
	return func(f *ReservationFixture) {
		f.Status = status
	}
}

// WithReservationQuantity overrides the booked unit count.
func WithReservationQuantity(quantity int) ReservationOption {
	return func(f *ReservationFixture) {
		f.Quantity = quantity
	}
}

// WithReservationPurpose sets the booking purpose.
func WithReservationPurpose(purpose string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Purpose = purpose
	}
}

// WithReservationDevicePurposes sets the per-device purposes.
func WithReservationDevicePurposes(purposes ...string) ReservationOption {
	return func(f *ReservationFixture) {
		f.DevicePurposes = purposes
	}
}

// Application returns the fixture as an application.Reservation value.
func (f ReservationFixture) Application() application.Reservation {
	return application.Reservation{
		ID:             f.ID,
		UserID:         f.UserID,
		BookedBy:       f.BookedBy,
		ResourceID:     f.ResourceID,
		ResourceType:   f.ResourceType,
		Start:          f.Start,
		End:            f.End,
		Status:         f.Status,
		Quantity:       f.Quantity,
		Purpose:        f.Purpose,
		DevicePurposes: f.DevicePurposes,
		Notes:          f.Notes,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Reservation value.
func (f ReservationFixture) Persistence() persistence.Reservation {
	record := persistence.Reservation{
		ID:             f.ID,
		UserID:         f.UserID,
		BookedBy:       f.BookedBy,
		ResourceID:     f.ResourceID,
		ResourceType:   string(f.ResourceType),
		Start:          f.Start,
		End:            f.End,
		Status:         string(f.Status),
		Quantity:       f.Quantity,
		DevicePurposes: f.DevicePurposes,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	if f.Purpose != "" {
		purpose := f.Purpose
		record.Purpose = &purpose
	}
	if f.Notes != "" {
		notes := f.Notes
		record.Notes = &notes
	}
	return record
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional
// overrides. Sessions expire one day after the reference time by default.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    "user-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: created.Add(24 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID overrides the owning user.
func WithSessionUserID(userID string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = userID
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt overrides the expiry instant.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt marks the session revoked at the given instant.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.RevokedAt = &t
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: f.RevokedAt,
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: f.RevokedAt,
	}
}
