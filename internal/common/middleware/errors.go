package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/common/logger"
)

// ErrorResponse is the failure shape of every endpoint.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// RequestID attaches an id to the request, generating one when the caller
// did not supply it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Recovery converts panics into a logged 500 with the uniform envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("panic", fmt.Sprintf("%v", recovered)).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		AbortWithError(c, apperrors.New(apperrors.ErrCodeInternal, "internal server error"))
	})
}

// AbortWithError writes the error envelope with a status derived from the
// error code.
func AbortWithError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	c.AbortWithStatusJSON(httpStatus(code), ErrorResponse{
		Success:   false,
		Error:     err.Error(),
		Code:      string(code),
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString("request_id"),
	})
}

func httpStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeSyncInProgress:
		return http.StatusConflict
	case apperrors.ErrCodeUnauthorized, apperrors.ErrCodeAuthDenied, apperrors.ErrCodeAuthTimeout:
		return http.StatusUnauthorized
	case apperrors.ErrCodeAuthLocked, apperrors.ErrCodeSecurityViolation:
		return http.StatusForbidden
	case apperrors.ErrCodeOffline, apperrors.ErrCodeNetwork, apperrors.ErrCodeRemoteAPI:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
