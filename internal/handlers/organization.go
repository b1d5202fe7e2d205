package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/dto"
	apierrors "github.com/voicecheck/voicecheck/internal/errors"
	"github.com/voicecheck/voicecheck/internal/middleware"
	"github.com/voicecheck/voicecheck/internal/services"
)

// OrganizationHandler coordinates organization-related HTTP handlers.
type OrganizationHandler struct {
	orgService *services.OrganizationService
}

// NewOrganizationHandler creates a new OrganizationHandler.
func NewOrganizationHandler(orgService *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{
		orgService: orgService,
	}
}

// Create creates an organization owned by the caller.
func (h *OrganizationHandler) Create(c *gin.Context) {
	type CreateRequest struct {
		Name string `json:"name" binding:"required,max=255"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	org, err := h.orgService.Create(userID, req.Name)
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToOrganizationDTO(*org, true))
}

// ListMine lists the caller's organizations with their roles.
func (h *OrganizationHandler) ListMine(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	memberships, err := h.orgService.ListMine(userID)
	if err != nil {
		respondOrgError(c, err)
		return
	}

	orgs := make([]dto.OrganizationWithRoleDTO, len(memberships))
	for i, member := range memberships {
		orgs[i] = dto.ToOrganizationWithRoleDTO(member)
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// Get returns one organization. Managers also see the join code.
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.orgService.Get(c.Param("id"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	member, _ := middleware.GetMembership(c)
	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org, access.CanManageMembers(member.Role)))
}

// GetByAccessCode resolves a join code to its organization. Only the name
// is exposed, for the self-registration page.
func (h *OrganizationHandler) GetByAccessCode(c *gin.Context) {
	org, err := h.orgService.GetByAccessCode(c.Param("code"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   org.ID,
		"name": org.Name,
	})
}

// Update renames an organization.
func (h *OrganizationHandler) Update(c *gin.Context) {
	type UpdateRequest struct {
		Name *string `json:"name" binding:"omitempty,max=255"`
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, err := h.orgService.Update(c.Param("id"), req.Name)
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org, true))
}

// RotateAccessCode replaces the join code.
func (h *OrganizationHandler) RotateAccessCode(c *gin.Context) {
	org, err := h.orgService.RotateAccessCode(c.Param("id"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org, true))
}

// Delete deactivates an organization.
func (h *OrganizationHandler) Delete(c *gin.Context) {
	if err := h.orgService.Deactivate(c.Param("id")); err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Organization deleted"})
}

// Stats returns the organization activity summary.
func (h *OrganizationHandler) Stats(c *gin.Context) {
	stats, err := h.orgService.Stats(c.Param("id"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListMembers lists the organization's members.
func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	members, err := h.orgService.ListMembers(c.Param("id"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	memberDTOs := make([]dto.MemberDTO, len(members))
	for i, member := range members {
		memberDTOs[i] = dto.ToMemberDTO(member)
	}
	c.JSON(http.StatusOK, gin.H{"members": memberDTOs})
}

// CreateMember enrolls an existing account directly, without an
// invitation.
func (h *OrganizationHandler) CreateMember(c *gin.Context) {
	type CreateMemberRequest struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}

	var req CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.orgService.AddMemberByEmail(c.Param("id"), req.Email, access.Role(req.Role))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToMemberDTO(*member))
}

// ChangeMemberRole updates a member's role.
func (h *OrganizationHandler) ChangeMemberRole(c *gin.Context) {
	type ChangeRoleRequest struct {
		Role string `json:"role" binding:"required"`
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.orgService.ChangeMemberRole(c.Param("id"), c.Param("user_id"), access.Role(req.Role))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToMemberDTO(*member))
}

// RemoveMember removes a user from the organization. Members may remove
// themselves; removing others needs the manage permission.
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	targetID := c.Param("user_id")

	if targetID != userID {
		member, ok := middleware.GetMembership(c)
		if !ok || !access.CanManageMembers(member.Role) {
			apierrors.Forbidden(c, "Insufficient role for this action")
			return
		}
	}

	if err := h.orgService.RemoveMember(c.Param("id"), targetID); err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// AssignDepartment moves a member into a department.
func (h *OrganizationHandler) AssignDepartment(c *gin.Context) {
	type AssignRequest struct {
		DepartmentID *string `json:"department_id"`
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.orgService.AssignDepartment(c.Param("id"), c.Param("user_id"), req.DepartmentID)
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToMemberDTO(*member))
}

// Invite creates an invitation to the organization.
func (h *OrganizationHandler) Invite(c *gin.Context) {
	type InviteRequest struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	inv, err := h.orgService.Invite(c.Param("id"), userID, req.Email, access.Role(req.Role))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	// The token is shown once, to be delivered to the invitee.
	c.JSON(http.StatusCreated, dto.ToInvitationDTO(*inv, true))
}

// ListInvitations lists the organization's invitations.
func (h *OrganizationHandler) ListInvitations(c *gin.Context) {
	invs, err := h.orgService.ListInvitations(c.Param("id"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	invDTOs := make([]dto.InvitationDTO, len(invs))
	for i, inv := range invs {
		invDTOs[i] = dto.ToInvitationDTO(inv, false)
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invDTOs})
}

// PreviewInvitation shows an invitation to its recipient before they
// decide.
func (h *OrganizationHandler) PreviewInvitation(c *gin.Context) {
	inv, err := h.orgService.PreviewInvitation(c.Param("token"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationDTO(*inv, false))
}

// AcceptInvitation joins the caller to the inviting organization.
func (h *OrganizationHandler) AcceptInvitation(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	member, err := h.orgService.AcceptInvitation(c.Param("token"), userID)
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Invitation accepted",
		"organization_id": member.OrganizationID,
		"role":            member.Role,
	})
}

// DeclineInvitation declines an invitation.
func (h *OrganizationHandler) DeclineInvitation(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	if err := h.orgService.DeclineInvitation(c.Param("token"), userID); err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invitation declined"})
}

// CreateDepartment adds a department.
func (h *OrganizationHandler) CreateDepartment(c *gin.Context) {
	type CreateDepartmentRequest struct {
		Name       string  `json:"name" binding:"required,max=255"`
		HeadUserID *string `json:"head_user_id"`
	}

	var req CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dept, err := h.orgService.CreateDepartment(c.Param("id"), req.Name, req.HeadUserID)
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToDepartmentDTO(*dept))
}

// ListDepartments lists the organization's departments.
func (h *OrganizationHandler) ListDepartments(c *gin.Context) {
	depts, err := h.orgService.ListDepartments(c.Param("id"))
	if err != nil {
		respondOrgError(c, err)
		return
	}

	deptDTOs := make([]dto.DepartmentDTO, len(depts))
	for i, dept := range depts {
		deptDTOs[i] = dto.ToDepartmentDTO(dept)
	}
	c.JSON(http.StatusOK, gin.H{"departments": deptDTOs})
}

// UpdateDepartment renames a department or changes its head.
func (h *OrganizationHandler) UpdateDepartment(c *gin.Context) {
	type UpdateDepartmentRequest struct {
		Name       *string `json:"name" binding:"omitempty,max=255"`
		HeadUserID *string `json:"head_user_id"`
	}

	var req UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dept, err := h.orgService.UpdateDepartment(c.Param("id"), c.Param("dept_id"), req.Name, req.HeadUserID)
	if err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDepartmentDTO(*dept))
}

// DeleteDepartment removes a department.
func (h *OrganizationHandler) DeleteDepartment(c *gin.Context) {
	if err := h.orgService.DeleteDepartment(c.Param("id"), c.Param("dept_id")); err != nil {
		respondOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Department deleted"})
}

func respondOrgError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrInvitationNotFound),
		errors.Is(err, services.ErrDepartmentNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrInvitationPending),
		errors.Is(err, services.ErrInvitationResolved),
		errors.Is(err, services.ErrOrganizationFull):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrInvitationExpired):
		apierrors.RespondWithError(c, http.StatusGone, apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, err.Error()))
	case errors.Is(err, services.ErrInvitationEmail):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrLastOwner):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
