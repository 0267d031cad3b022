package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured error code.
type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrImmutableField ErrorCode = "IMMUTABLE_FIELD"
	ErrTerminalState  ErrorCode = "TERMINAL_STATE"
	ErrStore          ErrorCode = "STORE_ERROR"
	ErrTransport      ErrorCode = "TRANSPORT_ERROR"
	ErrInternal       ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned to clients.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`

	cause error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewImmutableFieldError reports an edit to a field that is frozen once
// the task has left the queue.
func NewImmutableFieldError(id, field string, status StatusKind) *APIError {
	return &APIError{
		Code:    ErrImmutableField,
		Message: fmt.Sprintf("task '%s' is %s; field %s can no longer change", id, status, field),
		Details: []FieldError{{Field: field, Message: "immutable after start"}},
	}
}

// NewTerminalStateError reports an edit to a completed task.
func NewTerminalStateError(id string) *APIError {
	return &APIError{
		Code:    ErrTerminalState,
		Message: fmt.Sprintf("task '%s' is completed and cannot be modified", id),
	}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(op string, err error) *APIError {
	return &APIError{
		Code:    ErrStore,
		Message: fmt.Sprintf("%s: %v", op, err),
		cause:   err,
	}
}

// NewTransportError wraps a failed delivery to one observer.
func NewTransportError(observerID string, err error) *APIError {
	return &APIError{
		Code:    ErrTransport,
		Message: fmt.Sprintf("observer %s: %v", observerID, err),
		cause:   err,
	}
}

// NewInternalError creates an INTERNAL_ERROR APIError.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// CodeOf returns the ErrorCode carried by err, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternal
}

// AsAPIError converts any error into an APIError for the wire.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Code: ErrInternal, Message: err.Error(), cause: err}
}
