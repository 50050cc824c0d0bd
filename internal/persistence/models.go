package persistence

import "time"

// User represents an account in the booking domain.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	IsAdmin      bool
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Resource represents a bookable catalog entry, either a single room or a
// device pool with multiple identical units.
type Resource struct {
	ID        string
	Name      string
	Type      string
	Status    string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reservation represents a committed booking of one resource for one
// period window on one date.
type Reservation struct {
	ID             string
	UserID         string
	BookedBy       string
	ResourceID     string
	ResourceType   string
	Start          time.Time
	End            time.Time
	Status         string
	Quantity       int
	Purpose        *string
	DevicePurposes []string
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
