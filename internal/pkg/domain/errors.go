package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies domain failures so the transport layer can map them without string matching.
type ErrorCode string

const (
	CodeValidation            ErrorCode = "VALIDATION_FAILED"
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeInvalidState          ErrorCode = "INVALID_STATE"
	CodeConflict              ErrorCode = "CONFLICT"
	CodeInvalidDistance       ErrorCode = "INVALID_DISTANCE"
	CodeRouteUnavailable      ErrorCode = "ROUTE_UNAVAILABLE"
	CodeNoValidWaypoints      ErrorCode = "NO_VALID_WAYPOINTS"
	CodeInvalidCostInput      ErrorCode = "INVALID_COST_INPUT"
	CodePlaceResolutionFailed ErrorCode = "PLACE_RESOLUTION_FAILED"
	CodeMapRenderFailed       ErrorCode = "MAP_RENDER_FAILED"
)

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrValidation            = &AppError{Code: CodeValidation}
	ErrNotFound              = &AppError{Code: CodeNotFound}
	ErrInvalidState          = &AppError{Code: CodeInvalidState}
	ErrConflict              = &AppError{Code: CodeConflict}
	ErrInvalidDistance       = &AppError{Code: CodeInvalidDistance}
	ErrRouteUnavailable      = &AppError{Code: CodeRouteUnavailable}
	ErrNoValidWaypoints      = &AppError{Code: CodeNoValidWaypoints}
	ErrInvalidCostInput      = &AppError{Code: CodeInvalidCostInput}
	ErrPlaceResolutionFailed = &AppError{Code: CodePlaceResolutionFailed}
	ErrMapRenderFailed       = &AppError{Code: CodeMapRenderFailed}
)

// AppError is the error type returned by domain and application code.
type AppError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	// Fields holds field-scoped messages for validation failures.
	Fields map[string]string
	Err    error
}

func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + e.Fields[k]
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// NewValidationError creates a validation error without field details.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewFieldValidationError creates a validation error scoped to the given fields.
func NewFieldValidationError(message string, fields map[string]string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Fields: fields}
}

// NewNotFoundError creates a not-found error for an entity.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewInvalidStateError reports a disallowed state transition.
func NewInvalidStateError(from, to string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewConflictError reports a concurrent modification.
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Retryable: true}
}

// NewInvalidDistanceError reports a non-positive normalized distance.
func NewInvalidDistanceError(value float64) *AppError {
	return &AppError{Code: CodeInvalidDistance, Message: fmt.Sprintf("distance must be positive, got %v", value)}
}

// NewRouteUnavailableError reports that no path could be computed. It is always retryable.
func NewRouteUnavailableError(message string, cause error) *AppError {
	return &AppError{Code: CodeRouteUnavailable, Message: message, Retryable: true, Err: cause}
}

// NewNoValidWaypointsError reports that no waypoint carried a resolved place identifier.
func NewNoValidWaypointsError() *AppError {
	return &AppError{Code: CodeNoValidWaypoints, Message: "no waypoint has a resolved place identifier"}
}

// NewInvalidCostInputError reports a non-positive cost input.
func NewInvalidCostInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidCostInput, Message: message}
}

// NewPlaceResolutionError reports a failed autocomplete or details lookup.
func NewPlaceResolutionError(message string, cause error) *AppError {
	return &AppError{Code: CodePlaceResolutionFailed, Message: message, Retryable: true, Err: cause}
}

// NewMapRenderError reports that every map provider tier failed.
func NewMapRenderError(message string, cause error) *AppError {
	return &AppError{Code: CodeMapRenderFailed, Message: message, Retryable: true, Err: cause}
}
