package application

import "errors"

var (
	// ErrUnauthenticated is returned when no authenticated actor is present.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrUnauthorized is returned when the actor lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource or reservation does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrSlotInPast is returned when the target slot's window has already started.
	ErrSlotInPast = errors.New("application: slot is in the past")
	// ErrInsufficientCapacity is returned when a booking would exceed remaining units.
	ErrInsufficientCapacity = errors.New("application: insufficient capacity")
	// ErrInvalidState is returned when a lifecycle transition is not legal from the current status.
	ErrInvalidState = errors.New("application: invalid reservation state")
	// ErrStoreFailure wraps storage errors whose outcome is unknown to the caller.
	ErrStoreFailure = errors.New("application: store failure")
	// ErrAlreadyExists is returned when a create collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")

	// ErrInvalidCredentials is returned when authentication inputs do not match a user.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when the matched account cannot sign in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a presented session token is past its TTL.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a presented session token was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ValidationError captures field level validation issues that callers can
// surface to users. Missing required booking fields are reported this way.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
