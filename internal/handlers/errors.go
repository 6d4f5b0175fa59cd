package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/barberq/scheduling-core/pkg/apperr"
)

// statusFor maps a typed apperr.Code to an HTTP status per §6's table.
// This replaces the teacher's strings.Contains(err.Error(), "not found")
// pattern with a single typed path from engine to HTTP status.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidRequest, apperr.CodeUnknownService, apperr.CodeUnknownAddOn:
		return http.StatusBadRequest
	case apperr.CodeOutsideBookingWindow, apperr.CodeDayOff, apperr.CodeBarberOffline:
		return http.StatusUnprocessableEntity
	case apperr.CodeQueueFull, apperr.CodeLunchConflict, apperr.CodeWorkingHoursExceeded,
		apperr.CodeSlotNotAvailable, apperr.CodeInvalidTransition, apperr.CodeVersionConflict:
		return http.StatusConflict
	case apperr.CodeUnknownBarber, apperr.CodeUnknownAppointment, apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperr.CodeRepositoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error body with the correct status.
// A non-apperr error is treated as CodeInternal (infrastructure failure).
func writeError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": apperr.CodeInternal, "message": err.Error()},
		})
		return
	}

	body := gin.H{"code": appErr.Code, "message": appErr.Message}
	if appErr.Suggestions != nil {
		body["suggestions"] = appErr.Suggestions
	}
	c.JSON(statusFor(appErr.Code), gin.H{"error": body})
}
