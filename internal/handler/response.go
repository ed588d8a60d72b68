package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/service"
)

// Machine readable error codes returned in ErrorResponse.Code.
const (
	CodeFailedValidate          = "FAILED_VALIDATE"
	CodeCannotFindPayment       = "CANNOT_FIND_PAYMENT"
	CodeInvalidTerminateTime    = "INVALID_TERMINATE_TIME"
	CodeAlreadyUsingKickboard   = "ALREADY_USING_KICKBOARD"
	CodePhotoUploadNotTerminate = "PHOTO_UPLOAD_NOT_TERMINATE"
	CodePhotoUploadTimeout      = "PHOTO_UPLOAD_TIMEOUT"
	CodeAlreadyPhotoUpload      = "ALREADY_PHOTO_UPLOAD"
	CodeAlreadyTerminatedRide   = "ALREADY_TERMINATED_RIDE"
	CodeCannotFindRide          = "CANNOT_FIND_RIDE"
	CodeKickboardTooFar         = "KICKBOARD_TOO_FAR"
	CodeRideInProgress          = "RIDE_IN_PROGRESS"
	CodeRequiredAccessKey       = "REQUIRED_ACCESS_KEY"
	CodeInternalError           = "INTERNAL_ERROR"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, CodeFailedValidate},
	{service.ErrPaymentNotFound, http.StatusNotFound, CodeCannotFindPayment},
	{service.ErrInvalidTerminateTime, http.StatusBadRequest, CodeInvalidTerminateTime},
	{service.ErrDeviceInUse, http.StatusBadRequest, CodeAlreadyUsingKickboard},
	{service.ErrPhotoUploadNotTerminated, http.StatusBadRequest, CodePhotoUploadNotTerminate},
	{service.ErrPhotoUploadTimeout, http.StatusBadRequest, CodePhotoUploadTimeout},
	{service.ErrPhotoAlreadyUploaded, http.StatusConflict, CodeAlreadyPhotoUpload},
	{service.ErrAlreadyTerminated, http.StatusConflict, CodeAlreadyTerminatedRide},
	{service.ErrRideNotFound, http.StatusNotFound, CodeCannotFindRide},
	{service.ErrDeviceTooFar, http.StatusBadRequest, CodeKickboardTooFar},
	{service.ErrRideBusy, http.StatusConflict, CodeRideInProgress},
	{service.ErrUnauthorized, http.StatusUnauthorized, CodeRequiredAccessKey},
	{service.ErrNotificationFailed, http.StatusBadGateway, CodeInternalError},
}

// respondError sends an error response with the appropriate HTTP status code.
// Server side failures are attached to the gin context so the New Relic
// middleware can report them.
func respondError(c *gin.Context, err error) {
	status, code := mapError(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapError maps service errors to an HTTP status code and error code.
func mapError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternalError
}

// invalidInput wraps a binding or parsing failure as a validation error.
func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
}

// formatTime renders t as RFC 3339, or an empty string for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
