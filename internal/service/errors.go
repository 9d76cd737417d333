package service

import (
	"errors"

	"wordrecords/internal/repository"
)

var (
	ErrNotSignedIn        = errors.New("not signed in")
	ErrMissingEventType   = errors.New("missing event_type")
	ErrUnknownEventType   = errors.New("unknown event_type")
	ErrMissingSessionID   = errors.New("missing session_id")
	ErrMissingWord        = errors.New("missing word")
	ErrEmptyBatch         = errors.New("no valid attempts in batch")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrStudentNotFound    = errors.New("student not found")

	// ErrSessionNotOwned is returned when an event names a session recorded for another student
	ErrSessionNotOwned = repository.ErrSessionOwner
)

// IsBadRequest reports whether err was caused by a malformed event
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrMissingEventType) ||
		errors.Is(err, ErrUnknownEventType) ||
		errors.Is(err, ErrMissingSessionID) ||
		errors.Is(err, ErrMissingWord) ||
		errors.Is(err, ErrEmptyBatch)
}
