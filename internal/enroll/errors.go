package enroll

import "errors"

// Sentinel errors returned by the enrollment core. Callers match them with
// errors.Is; the HTTP layer maps them to status codes.
var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateRegistration = errors.New("user already has a live registration for this event")
	ErrEventInPast           = errors.New("event has already started")
	ErrEventNotYetEnded      = errors.New("event has not ended yet")
	ErrUnauthorized          = errors.New("actor is not allowed to perform this action")
	ErrCapacityExceeded      = errors.New("event is at capacity")
	ErrInvalidTransition     = errors.New("invalid registration status transition")
	ErrDuplicateEmail        = errors.New("email is already taken")
	ErrValidation            = errors.New("validation failed")
)
