package response

import (
	"errors"
	"net/http"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/gin-gonic/gin"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent writes a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest writes a 400 response for malformed input.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Error: &ErrorBody{Code: "BAD_REQUEST", Message: message}})
}

// Error maps err to a status code. Errors that are not AppErrors become 500s without leaking details.
func Error(c *gin.Context, err error) {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, Envelope{Error: &ErrorBody{
			Code:    "INTERNAL",
			Message: "internal server error",
		}})
		return
	}

	c.JSON(StatusFor(appErr.Code), Envelope{Error: &ErrorBody{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Retryable: appErr.Retryable,
		Fields:    appErr.Fields,
	}})
}

// ErrorWithData maps err like Error but still returns data, for failures that carry a usable partial result.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		Error(c, err)
		return
	}
	c.JSON(StatusFor(appErr.Code), Envelope{Data: data, Error: &ErrorBody{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Retryable: appErr.Retryable,
		Fields:    appErr.Fields,
	}})
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation, domain.CodeInvalidCostInput, domain.CodeNoValidWaypoints:
		return http.StatusUnprocessableEntity
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidState, domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeRouteUnavailable, domain.CodeInvalidDistance:
		return http.StatusUnprocessableEntity
	case domain.CodePlaceResolutionFailed, domain.CodeMapRenderFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
