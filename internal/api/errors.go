package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"vidstitch/internal/services"
)

// APIError is a structured JSON error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error.
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewNotFoundError creates a 404 Not Found error.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error.
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error.
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromServiceError maps the service error taxonomy onto HTTP statuses.
func FromServiceError(err error) *APIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrRejectedInput):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "REJECTED_INPUT", Message: err.Error()}
	case errors.Is(err, services.ErrReorder):
		return &APIError{Status: http.StatusBadRequest, Code: "INVALID_ORDER", Message: err.Error()}
	case errors.Is(err, services.ErrInsufficientInput):
		return &APIError{Status: http.StatusBadRequest, Code: "INSUFFICIENT_INPUT", Message: err.Error()}
	case errors.Is(err, services.ErrMergeInFlight):
		return &APIError{Status: http.StatusConflict, Code: "MERGE_IN_FLIGHT", Message: err.Error()}
	case errors.Is(err, services.ErrUnreadableMedia):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "UNREADABLE_MEDIA", Message: err.Error()}
	default:
		return NewInternalError("operation failed", err)
	}
}

// ErrorHandler renders every error as a JSON APIError.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = FromServiceError(err)
	}

	_ = c.JSON(apiErr.Status, apiErr)
}
