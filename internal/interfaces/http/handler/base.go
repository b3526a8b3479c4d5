package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleDomainError converts domain errors to HTTP responses
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sync.ErrTenantDisabled):
		h.ErrorWithCode(c, dto.ErrCodeTenantDisabled, "Sync is disabled for this tenant")
	case errors.Is(err, sync.ErrOutsideWindow):
		h.ErrorWithCode(c, dto.ErrCodeOutsideWindow, "Tenant is outside its business hours window")
	case errors.Is(err, sync.ErrInvalidTenantConfig), errors.Is(err, sync.ErrMissingCredentials):
		h.BadRequest(c, "Tenant sync configuration is missing or invalid")
	case errors.Is(err, sync.ErrNotFound), errors.Is(err, sync.ErrLogEntryNotFound), errors.Is(err, sync.ErrRawRecordNotFound):
		h.NotFound(c, "Resource not found")
	case errors.Is(err, sync.ErrTerminalState):
		h.ErrorWithCode(c, dto.ErrCodeInvalidState, "Run is already in a terminal state")
	case errors.Is(err, sync.ErrUpstreamRateLimited):
		h.ErrorWithCode(c, dto.ErrCodeRateLimited, "Upstream rate limit exceeded")
	case errors.Is(err, sync.ErrUpstreamUnavailable):
		h.ErrorWithCode(c, dto.ErrCodeUpstreamUnavailable, "Upstream API is unavailable")
	case errors.Is(err, sync.ErrUnauthorized):
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "Upstream rejected the tenant credentials")
	default:
		h.InternalError(c, "An internal error occurred")
	}
}
