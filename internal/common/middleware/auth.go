package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/security"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "user_email"
)

// RequireSession validates the bearer session token and stores the claims
// on the request context.
func RequireSession(signer *security.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			AbortWithError(c, apperrors.New(apperrors.ErrCodeUnauthorized, "missing bearer token"))
			return
		}

		claims, err := signer.ValidateSessionToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}
