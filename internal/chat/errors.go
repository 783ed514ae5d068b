package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation classifies malformed login or send payloads.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateName is returned when the display name is already active in the room.
	ErrDuplicateName = errors.New("name already taken")
	// ErrNotJoined is returned when a message is sent before a successful login.
	ErrNotJoined = errors.New("join a room first")
	// ErrAlreadyJoined is returned for a second login on a joined session.
	ErrAlreadyJoined = fmt.Errorf("%w: already joined", ErrValidation)
	// ErrNotAMember is returned by Room.Post for an unknown member id.
	ErrNotAMember = errors.New("not a member of the room")
	// ErrTransport marks a network level failure of a connection.
	ErrTransport = errors.New("transport failure")
	// ErrBackpressure marks a connection whose outbound queue overflowed.
	ErrBackpressure = errors.New("outbound queue overflow")

	errRoomClosed = errors.New("room closed")
)

// ValidationError describes which field of a request was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

// Is reports ErrValidation so callers can classify without a type assertion.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
