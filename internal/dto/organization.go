package dto

import (
	"time"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/models"
)

// OrganizationDTO represents an organization in API responses. The join
// code is only included for members who may manage the organization.
type OrganizationDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	AccessCode string    `json:"access_code,omitempty"`
	MaxMembers int       `json:"max_members"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrganizationWithRoleDTO represents an organization with the user's role
type OrganizationWithRoleDTO struct {
	OrganizationDTO
	Role   access.Role             `json:"role"`
	Status models.MembershipStatus `json:"status"`
}

// MemberDTO represents a member in an organization
type MemberDTO struct {
	User         UserDTO                 `json:"user"`
	Role         access.Role             `json:"role"`
	Status       models.MembershipStatus `json:"status"`
	DepartmentID *string                 `json:"department_id,omitempty"`
	JoinedAt     time.Time               `json:"joined_at"`
}

// InvitationDTO represents an invitation in API responses. The token is
// only included right after creation.
type InvitationDTO struct {
	ID               string                  `json:"id"`
	OrganizationID   string                  `json:"organization_id"`
	OrganizationName string                  `json:"organization_name,omitempty"`
	Email            string                  `json:"email"`
	Role             access.Role             `json:"role"`
	Status           models.InvitationStatus `json:"status"`
	Token            string                  `json:"token,omitempty"`
	ExpiresAt        time.Time               `json:"expires_at"`
	CreatedAt        time.Time               `json:"created_at"`
}

// DepartmentDTO represents a department in API responses
type DepartmentDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HeadUserID *string   `json:"head_user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization, includeAccessCode bool) OrganizationDTO {
	dto := OrganizationDTO{
		ID:         org.ID,
		Name:       org.Name,
		Slug:       org.Slug,
		MaxMembers: org.MaxMembers,
		CreatedAt:  org.CreatedAt,
	}
	if includeAccessCode {
		dto.AccessCode = org.AccessCode
	}
	return dto
}

// ToOrganizationWithRoleDTO converts a membership to a DTO with role
func ToOrganizationWithRoleDTO(member models.Membership) OrganizationWithRoleDTO {
	return OrganizationWithRoleDTO{
		OrganizationDTO: ToOrganizationDTO(member.Organization, access.CanManageMembers(member.Role)),
		Role:            member.Role,
		Status:          member.Status,
	}
}

// ToMemberDTO converts a membership to MemberDTO
func ToMemberDTO(member models.Membership) MemberDTO {
	return MemberDTO{
		User:         ToUserDTO(member.User),
		Role:         member.Role,
		Status:       member.Status,
		DepartmentID: member.DepartmentID,
		JoinedAt:     member.CreatedAt,
	}
}

// ToInvitationDTO converts an invitation to InvitationDTO
func ToInvitationDTO(inv models.Invitation, includeToken bool) InvitationDTO {
	dto := InvitationDTO{
		ID:               inv.ID,
		OrganizationID:   inv.OrganizationID,
		OrganizationName: inv.Organization.Name,
		Email:            inv.Email,
		Role:             inv.Role,
		Status:           inv.Status,
		ExpiresAt:        inv.ExpiresAt,
		CreatedAt:        inv.CreatedAt,
	}
	if includeToken {
		dto.Token = inv.Token
	}
	return dto
}

// ToDepartmentDTO converts a department to DepartmentDTO
func ToDepartmentDTO(dept models.Department) DepartmentDTO {
	return DepartmentDTO{
		ID:         dept.ID,
		Name:       dept.Name,
		HeadUserID: dept.HeadUserID,
		CreatedAt:  dept.CreatedAt,
	}
}
