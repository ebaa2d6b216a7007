package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to clients over
// the event protocol or plain HTTP.
type AppError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
	StatusCode   int    `json:"-"`
	Internal     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a more specific message.
// The stable code is preserved so clients can still switch on it.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Stable error catalogue returned to clients. Codes never change between
// releases; clients render messages keyed on them.
var (
	ErrInvalidSession = &AppError{
		Code:       "INVALID_SESSION",
		Message:    "Session code is unknown or no longer live",
		StatusCode: http.StatusNotFound,
	}

	ErrSessionFull = &AppError{
		Code:       "SESSION_FULL",
		Message:    "Session has reached its participant limit",
		StatusCode: http.StatusConflict,
	}

	ErrNotHost = &AppError{
		Code:       "NOT_HOST",
		Message:    "Only the session host may perform this action",
		StatusCode: http.StatusForbidden,
	}

	ErrNotParticipant = &AppError{
		Code:       "NOT_PARTICIPANT",
		Message:    "Join the session before submitting input",
		StatusCode: http.StatusForbidden,
	}

	ErrRoomNotFound = &AppError{
		Code:       "ROOM_NOT_FOUND",
		Message:    "No such activity in this session",
		StatusCode: http.StatusNotFound,
	}

	ErrRoomFull = &AppError{
		Code:       "ROOM_FULL",
		Message:    "Activity has reached its submission limit",
		StatusCode: http.StatusConflict,
	}

	ErrWidgetPaused = &AppError{
		Code:       "WIDGET_PAUSED",
		Message:    "Activity is paused by the host",
		StatusCode: http.StatusConflict,
	}

	ErrMaxRoomsReached = &AppError{
		Code:       "MAX_ROOMS_REACHED",
		Message:    "Session has reached its activity limit",
		StatusCode: http.StatusConflict,
	}

	ErrInvalidInput = &AppError{
		Code:       "INVALID_INPUT",
		Message:    "Request payload failed validation",
		StatusCode: http.StatusBadRequest,
	}

	ErrMissingRequiredField = &AppError{
		Code:       "MISSING_REQUIRED_FIELD",
		Message:    "A required field is missing",
		StatusCode: http.StatusBadRequest,
	}

	ErrAlreadyVoted = &AppError{
		Code:       "ALREADY_VOTED",
		Message:    "You have already voted in this poll",
		StatusCode: http.StatusConflict,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// RateLimited builds the throttling error carrying the client back-off hint.
func RateLimited(retryAfterMs int64) *AppError {
	if retryAfterMs < 0 {
		retryAfterMs = 0
	}
	return &AppError{
		Code:         "RATE_LIMITED",
		Message:      "Too many events, slow down",
		RetryAfterMs: retryAfterMs,
		StatusCode:   http.StatusTooManyRequests,
	}
}

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an internal error while keeping the original for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       ErrInternal.Code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternal.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternal.WithInternal(err)
}

// NewInvalidInput wraps a validation failure with a field-specific message.
func NewInvalidInput(message string) *AppError {
	return ErrInvalidInput.WithMessage(message)
}
