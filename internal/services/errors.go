package services

import (
	"errors"
	"fmt"
)

// Error kinds returned by services. Callers match them with errors.Is; the
// message after the colon is safe to show to users.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrCSRFMismatch       = errors.New("invalid CSRF token")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrCapacityExceeded   = errors.New("room is full")
	ErrAlreadyMember      = errors.New("already a member of this room")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrUserNotRegistered  = errors.New("user not registered")
	ErrPersistence        = errors.New("storage failure")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// persistenceError keeps both the kind and the driver error in the chain.
func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
