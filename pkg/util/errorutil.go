package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeScheduleConflict   = "SCHEDULE_CONFLICT"
	CodeScheduleWarning    = "SCHEDULE_WARNING"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code so callers can compare against the sentinel values below.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Sentinels usable with errors.Is.
var (
	ErrValidation         = &DomainError{Code: CodeValidation}
	ErrNotFound           = &DomainError{Code: CodeNotFound}
	ErrForbidden          = &DomainError{Code: CodeForbidden}
	ErrInvalidTransition  = &DomainError{Code: CodeInvalidTransition}
	ErrPreconditionFailed = &DomainError{Code: CodePreconditionFailed}
	ErrScheduleConflict   = &DomainError{Code: CodeScheduleConflict}
	ErrScheduleWarning    = &DomainError{Code: CodeScheduleWarning}
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewFieldError reports a single missing or malformed field.
func NewFieldError(entityID, field, reason string) error {
	details := map[string]any{"field": field, "reason": reason}
	if entityID != "" {
		details["entity_id"] = entityID
	}
	return NewDomainError(CodeValidation, fmt.Sprintf("%s: %s", field, reason), http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidTransition reports an action that is not defined for the current status.
func NewInvalidTransition(entityID, action, status string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("action %q is not allowed from status %q", action, status),
		http.StatusConflict,
		map[string]any{"entity_id": entityID, "action": action, "status": status})
}

// NewPreconditionFailed reports a structurally legal action blocked by a business rule.
func NewPreconditionFailed(entityID, action, reason string) error {
	return NewDomainError(CodePreconditionFailed, reason, http.StatusConflict,
		map[string]any{"entity_id": entityID, "action": action, "reason": reason})
}

// NewScheduleConflict reports a hard booking overlap.
func NewScheduleConflict(message string, details map[string]any) error {
	return NewDomainError(CodeScheduleConflict, message, http.StatusConflict, details)
}

// NewScheduleWarning reports a soft overlap that requires an explicit override.
func NewScheduleWarning(message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["requires_override"] = true
	return NewDomainError(CodeScheduleWarning, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
