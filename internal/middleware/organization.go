package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/constants"
	apierrors "github.com/voicecheck/voicecheck/internal/errors"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/services"
)

// RequireOrganizationAccess checks that the caller is an active member of
// the organization in the URL and stores the membership in context.
func RequireOrganizationAccess(orgService *services.OrganizationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("id")
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		if _, err := orgService.Get(orgID); err != nil {
			apierrors.NotFound(c, "Organization not found")
			c.Abort()
			return
		}

		member, err := orgService.GetMember(orgID, userID)
		if err != nil || !member.IsActive() {
			// 404 instead of 403 to avoid leaking organization existence
			apierrors.NotFound(c, "Organization not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyMembership, *member)
		c.Next()
	}
}

// RequireOrganizationPermission checks the caller's role in the
// organization against a required permission. Must run after
// RequireOrganizationAccess.
func RequireOrganizationPermission(perm access.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := GetMembership(c)
		if !ok {
			apierrors.Forbidden(c, "Organization access required")
			c.Abort()
			return
		}
		if !access.RoleAllows(member.Role, perm) {
			apierrors.Forbidden(c, "Insufficient role for this action")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireMemberManagement checks that the caller may manage members,
// invitations and departments. Must run after RequireOrganizationAccess.
func RequireMemberManagement() gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := GetMembership(c)
		if !ok || !access.CanManageMembers(member.Role) {
			apierrors.Forbidden(c, "Insufficient role for this action")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetMembership retrieves the caller's membership from context
func GetMembership(c *gin.Context) (models.Membership, bool) {
	value, exists := c.Get(constants.ContextKeyMembership)
	if !exists {
		return models.Membership{}, false
	}
	member, ok := value.(models.Membership)
	return member, ok
}
