package models

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable failure reported to a client.
type ErrorCode string

const (
	CodeRoomNotFound    ErrorCode = "ROOM_NOT_FOUND"
	CodeRoomFull        ErrorCode = "ROOM_FULL"
	CodeInvalidRoomCode ErrorCode = "INVALID_ROOM_CODE"
	CodePlayerNotFound  ErrorCode = "PLAYER_NOT_FOUND"
	CodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	CodeGameInProgress  ErrorCode = "GAME_IN_PROGRESS"
	CodeValidation      ErrorCode = "VALIDATION_ERROR"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// Error is a domain failure. It is delivered only to the requesting connection.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrRoomNotFound(code string) *Error {
	return NewError(CodeRoomNotFound, "room %s not found", code)
}

func ErrRoomFull(code string) *Error {
	return NewError(CodeRoomFull, "room %s is full", code)
}

func ErrInvalidRoomCode(code string) *Error {
	return NewError(CodeInvalidRoomCode, "invalid room code %q", code)
}

func ErrPlayerNotFound(id string) *Error {
	return NewError(CodePlayerNotFound, "player %s not found", id)
}

func ErrGameInProgress(code string) *Error {
	return NewError(CodeGameInProgress, "game already in progress in room %s", code)
}

func ErrValidation(format string, args ...any) *Error {
	return NewError(CodeValidation, format, args...)
}

// AsError extracts the domain error from err. Anything that is not a domain
// error is reported as INTERNAL_ERROR with fallback as the message.
func AsError(err error, fallback string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: fallback}
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
