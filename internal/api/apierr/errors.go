package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/auth"
	"github.com/mcoot/capitalduel/internal/services/session"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidUsername        = "INVALID_USERNAME"
	CodeInvalidSettings        = "INVALID_SETTINGS"
	CodeInvalidQuestion        = "INVALID_QUESTION"
	CodeTooManyQuestions       = "TOO_MANY_QUESTIONS"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeNotParticipant         = "NOT_PARTICIPANT"
	CodeSelfInvite             = "SELF_INVITE"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeRoomNotFound           = "NOT_FOUND"
	CodeParticipantUnavailable = "PARTICIPANT_UNAVAILABLE"
	CodeNoQuestionsAvailable   = "NO_QUESTIONS_AVAILABLE"
	CodeMatchInProgress        = "MATCH_IN_PROGRESS"
	CodeDefaultsNotLoaded      = "DEFAULTS_NOT_LOADED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodePasswordTooShort       = "PASSWORD_TOO_SHORT"
	CodeUnknownMessage         = "UNKNOWN_MESSAGE"
	CodeInternalError          = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Describe returns the client-facing form of err
func Describe(err error) APIError {
	return toHTTPError(err).apiError
}

// Event renders err as an error event for a websocket client
func Event(err error, now time.Time) model.Event {
	apiErr := Describe(err)
	return model.Event{
		Type:      model.EventError,
		Timestamp: now,
		Payload:   model.ErrorPayload{Code: apiErr.Code, Message: apiErr.Message},
	}
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Validation errors carry their detail in the message
	case errors.Is(err, model.ErrInvalidUsername):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidUsername, err.Error()}}
	case errors.Is(err, model.ErrInvalidSettings):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidSettings, err.Error()}}
	case errors.Is(err, model.ErrInvalidQuestion):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidQuestion, err.Error()}}
	case errors.Is(err, model.ErrTooManyQuestions):
		return &httpError{http.StatusBadRequest, APIError{CodeTooManyQuestions, err.Error()}}
	case errors.Is(err, model.ErrSelfInvite):
		return &httpError{http.StatusBadRequest, APIError{CodeSelfInvite, "Cannot invite yourself"}}
	case errors.Is(err, session.ErrUnknownMessage):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownMessage, err.Error()}}

	case errors.Is(err, model.ErrUnauthenticated):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
	case errors.Is(err, model.ErrNotParticipant):
		return &httpError{http.StatusForbidden, APIError{CodeNotParticipant, "Not a participant in this room"}}
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrRoomNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}}
	case errors.Is(err, model.ErrParticipantUnavailable):
		return &httpError{http.StatusConflict, APIError{CodeParticipantUnavailable, "Participant unavailable"}}
	case errors.Is(err, model.ErrNoQuestionsAvailable):
		return &httpError{http.StatusConflict, APIError{CodeNoQuestionsAvailable, "The initiator has no questions"}}
	case errors.Is(err, model.ErrMatchInProgress):
		return &httpError{http.StatusConflict, APIError{CodeMatchInProgress, "A match between these players is already in progress"}}
	case errors.Is(err, model.ErrDefaultsNotLoaded):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeDefaultsNotLoaded, "Default questions are not loaded"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, auth.ErrPasswordTooShort):
		return &httpError{http.StatusBadRequest, APIError{CodePasswordTooShort, err.Error()}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInternalErrorf creates an internal server error with a formatted message
func NewInternalErrorf(format string, args ...any) error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, fmt.Sprintf(format, args...)}}
}
