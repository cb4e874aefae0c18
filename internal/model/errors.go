package model

import (
	"context"
	"errors"
)

// Error kinds. Every specific error below wraps exactly one of these so callers
// can branch with errors.Is(err, model.ErrNotFound) and friends.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrStorage        = errors.New("storage failure")
	ErrPresenceUpdate = errors.New("presence update failed")
)

// Error is a specific error belonging to one of the kinds above
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// Unwrap exposes the kind
func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the error kind this error belongs to
func (e *Error) Kind() error {
	return e.kind
}

// Common errors used across the application
var (
	// Auth errors
	ErrNotAuthenticated   = newError(ErrUnauthorized, "you must be logged in")
	ErrNotParticipant     = newError(ErrUnauthorized, "you are not a player in this game")
	ErrInvalidToken       = newError(ErrUnauthorized, "invalid or expired token")
	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid username or password")

	// User errors
	ErrUserNotFound    = newError(ErrNotFound, "user not found")
	ErrUsernameTaken   = newError(ErrConflict, "username already exists")
	ErrInvalidUsername = newError(ErrValidation, "username must be 3-32 letters, digits, '_' or '-'")
	ErrInvalidPassword = newError(ErrValidation, "password must be at least 6 characters")

	// Queue errors
	ErrInvalidPreferences = newError(ErrValidation, "invalid game preferences")
	ErrInvalidBoardSize   = newError(ErrValidation, "board size must be 9, 13 or 19")
	ErrAlreadyInGame      = newError(ErrConflict, "you already have an active game")

	// Game errors
	ErrGameNotFound      = newError(ErrNotFound, "game not found")
	ErrGameNotWaiting    = newError(ErrConflict, "game can only be cancelled while waiting")
	ErrGameNotActive     = newError(ErrConflict, "game is not in progress")
	ErrNotYourTurn       = newError(ErrConflict, "it is not your turn")
	ErrInvalidMove       = newError(ErrValidation, "invalid move")
	ErrInvalidPosition   = newError(ErrValidation, "position is outside the board")
	ErrCellOccupied      = newError(ErrValidation, "intersection is already occupied")
	ErrInvalidTransition = newError(ErrConflict, "invalid game status transition")

	// Chat errors
	ErrEmptyMessage   = newError(ErrValidation, "message cannot be empty")
	ErrMessageTooLong = newError(ErrValidation, "message is too long")

	// Storage errors
	ErrStorageTimeout     = newError(ErrStorage, "storage operation timed out, please retry")
	ErrStorageUnavailable = newError(ErrStorage, "storage is temporarily unavailable, please retry")

	// Transport errors
	ErrUnknownEvent = newError(ErrValidation, "unknown event")
	ErrBadArguments = newError(ErrValidation, "malformed event arguments")
)

// IsRetryable reports whether the operation that produced err may succeed if repeated
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrPresenceUpdate) ||
		errors.Is(err, context.DeadlineExceeded)
}

// UserMessage converts an error into a message that is safe to show to a client.
// Internal details of storage and unexpected errors are never exposed.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrPresenceUpdate):
		return "could not update online status, please retry"
	case errors.Is(err, ErrStorageTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrStorageTimeout.msg
	case errors.Is(err, ErrStorage):
		return ErrStorageUnavailable.msg
	}

	var me *Error
	if errors.As(err, &me) {
		return me.msg
	}
	return "an unexpected error occurred"
}
