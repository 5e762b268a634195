package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps service errors onto HTTP statuses. Reauthorization is
// checked first since fetch errors may wrap it.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrReauthorizationRequired):
		return http.StatusUnauthorized, "reconnect_required"
	case errors.Is(err, service.ErrIntegrationNotFound):
		return http.StatusUnauthorized, "integration_not_found"
	case errors.Is(err, service.ErrInvalidScope),
		errors.Is(err, service.ErrInvalidWindow),
		errors.Is(err, service.ErrMalformedRecord),
		errors.Is(err, service.ErrUnsupportedProvider):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrAttachmentUnavailable),
		errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrTaskAlreadyLinked):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrFetchFailed):
		return http.StatusBadGateway, "provider_error"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: message, Code: code})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: message, Code: "bad_request"})
}
