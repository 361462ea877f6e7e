package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/response"
)

// toAppError maps a service error onto the HTTP error it should produce.
// Storage failures keep their cause for the log and show a generic message.
func toAppError(err error) *response.AppError {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, services.ErrValidation):
		return response.NewBadRequest(err.Error())
	case errors.Is(err, services.ErrUnauthenticated),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserNotRegistered):
		return response.NewUnauthorized(err.Error())
	case errors.Is(err, services.ErrCSRFMismatch),
		errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrUserDisabled):
		return response.NewForbidden(err.Error())
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrNotFound):
		return response.NewNotFound(err.Error())
	case errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrEmailTaken):
		return response.NewConflict(err.Error())
	default:
		return response.NewServerError("internal server error").WithCause(err)
	}
}

func respondError(c *gin.Context, err error) {
	response.Error(c, toAppError(err))
}

// flashMessage is the text shown to browser users after a failed action.
func flashMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrCapacityExceeded):
		return "Room is full"
	case errors.Is(err, services.ErrPersistence):
		return "An error occurred. Please try again."
	}
	return toAppError(err).Message
}

// wantsJSON is false for browsers and clients that send no Accept header;
// those get redirects instead of JSON bodies.
func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// bind parses a JSON or form body into req according to Content-Type.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBind(req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

const dashboardPath = "/dashboard"

func redirectToDashboard(c *gin.Context, status int) {
	c.Redirect(status, dashboardPath)
}

