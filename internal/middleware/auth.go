package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/constants"
	apierrors "github.com/voicecheck/voicecheck/internal/errors"
	"github.com/voicecheck/voicecheck/internal/services"
)

// RequireAuth checks the Bearer access token and its backing session
func RequireAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		claims, err := authService.ValidateAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		// Store identity in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, claims.Subject)
		c.Set(constants.ContextKeyAccessJTI, claims.ID)
		if claims.OrganizationID != "" {
			c.Set(constants.ContextKeyOrgID, claims.OrganizationID)
		}
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

// GetOrgID retrieves the active organization ID from context. It is
// absent when the caller works in their personal workspace.
func GetOrgID(c *gin.Context) (string, bool) {
	value, exists := c.Get(constants.ContextKeyOrgID)
	if !exists {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

// GetAccessJTI retrieves the access token ID from context
func GetAccessJTI(c *gin.Context) (string, bool) {
	value, exists := c.Get(constants.ContextKeyAccessJTI)
	if !exists {
		return "", false
	}
	jti, ok := value.(string)
	return jti, ok && jti != ""
}
