package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/constants"
	apierrors "github.com/voicecheck/voicecheck/internal/errors"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/services"
)

// RequireDialogAccess checks that the caller may act on the dialog in the
// URL with the given permission. Personal dialogs are only visible to
// their owner; organization dialogs follow the member's role.
func RequireDialogAccess(dialogService *services.DialogService, orgService *services.OrganizationService, perm access.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		dialog, err := dialogService.Find(c.Param("id"))
		if err != nil {
			apierrors.NotFound(c, "Dialog not found")
			c.Abort()
			return
		}

		roleOf := func(orgID string) (access.Role, bool) {
			return orgService.RoleOf(userID, orgID)
		}

		// Callers who cannot even read the dialog get 404 so its
		// existence stays hidden.
		if !access.CanAccessDialog(userID, dialog.OwnerType, dialog.OwnerID, access.PermissionRead, roleOf) {
			apierrors.NotFound(c, "Dialog not found")
			c.Abort()
			return
		}
		if !access.CanAccessDialog(userID, dialog.OwnerType, dialog.OwnerID, perm, roleOf) {
			apierrors.Forbidden(c, "")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyDialog, *dialog)
		c.Next()
	}
}

// GetDialog retrieves the checked dialog from context
func GetDialog(c *gin.Context) (models.Dialog, bool) {
	value, exists := c.Get(constants.ContextKeyDialog)
	if !exists {
		return models.Dialog{}, false
	}
	dialog, ok := value.(models.Dialog)
	return dialog, ok
}
