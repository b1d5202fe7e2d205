package repository

import (
	"time"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/database"
	"github.com/voicecheck/voicecheck/internal/models"
	"gorm.io/gorm"
)

// GormOrganizationRepository is a GORM implementation of OrganizationRepository
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// Create creates a new organization
func (r *GormOrganizationRepository) Create(org *models.Organization) error {
	return r.db.Create(org).Error
}

// FindByID finds an active organization by ID
func (r *GormOrganizationRepository) FindByID(id string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.Scopes(database.ActiveOnly).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindByAccessCode finds an active organization by its join code
func (r *GormOrganizationRepository) FindByAccessCode(code string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.Scopes(database.ActiveOnly).Where("access_code = ?", code).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// Update updates an organization
func (r *GormOrganizationRepository) Update(org *models.Organization) error {
	return r.db.Save(org).Error
}

// Deactivate soft-deletes an organization
func (r *GormOrganizationRepository) Deactivate(id string) error {
	return r.db.Model(&models.Organization{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

// AddMember creates a membership row
func (r *GormOrganizationRepository) AddMember(member *models.Membership) error {
	return r.db.Create(member).Error
}

// UpdateMember updates a membership row
func (r *GormOrganizationRepository) UpdateMember(member *models.Membership) error {
	return r.db.Save(member).Error
}

// RemoveMember deletes the membership of a user in an organization
func (r *GormOrganizationRepository) RemoveMember(organizationID, userID string) error {
	return r.db.Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Delete(&models.Membership{}).Error
}

// FindMember finds the membership of a user in an organization
func (r *GormOrganizationRepository) FindMember(organizationID, userID string) (*models.Membership, error) {
	var member models.Membership
	if err := r.db.Where("organization_id = ? AND user_id = ?", organizationID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListMembers lists all memberships of an organization with users preloaded
func (r *GormOrganizationRepository) ListMembers(organizationID string) ([]models.Membership, error) {
	var members []models.Membership
	if err := r.db.Where("organization_id = ?", organizationID).
		Preload("User").
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListMembershipsByUserID lists a user's memberships with organizations preloaded
func (r *GormOrganizationRepository) ListMembershipsByUserID(userID string) ([]models.Membership, error) {
	var members []models.Membership
	if err := r.db.Where("user_id = ?", userID).
		Preload("Organization").
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// CountMembers counts active memberships of an organization
func (r *GormOrganizationRepository) CountMembers(organizationID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Membership{}).
		Where("organization_id = ? AND status = ?", organizationID, models.MembershipStatusActive).
		Count(&count).Error
	return count, err
}

// CountOwners counts active owners of an organization
func (r *GormOrganizationRepository) CountOwners(organizationID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Membership{}).
		Where("organization_id = ? AND role = ? AND status = ?",
			organizationID, access.RoleOwner, models.MembershipStatusActive).
		Count(&count).Error
	return count, err
}

// CreateInvitation creates an invitation
func (r *GormOrganizationRepository) CreateInvitation(inv *models.Invitation) error {
	return r.db.Create(inv).Error
}

// FindInvitationByToken finds an invitation by its token
func (r *GormOrganizationRepository) FindInvitationByToken(token string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.db.Where("token = ?", token).
		Preload("Organization").
		First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindPendingInvitation finds a pending invitation for an email in an organization
func (r *GormOrganizationRepository) FindPendingInvitation(organizationID, email string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.db.Where("organization_id = ? AND email = ? AND status = ?",
		organizationID, email, models.InvitationStatusPending).
		First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateInvitation updates an invitation
func (r *GormOrganizationRepository) UpdateInvitation(inv *models.Invitation) error {
	return r.db.Save(inv).Error
}

// ListInvitations lists invitations of an organization, newest first
func (r *GormOrganizationRepository) ListInvitations(organizationID string) ([]models.Invitation, error) {
	var invs []models.Invitation
	if err := r.db.Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

// ExpirePendingInvitations marks overdue pending invitations as expired
func (r *GormOrganizationRepository) ExpirePendingInvitations(now time.Time) (int64, error) {
	result := r.db.Model(&models.Invitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationStatusPending, now).
		Updates(map[string]interface{}{
			"status":      models.InvitationStatusExpired,
			"resolved_at": now,
		})
	return result.RowsAffected, result.Error
}

// PurgeResolvedInvitations deletes resolved invitations older than the cutoff
func (r *GormOrganizationRepository) PurgeResolvedInvitations(cutoff time.Time) (int64, error) {
	result := r.db.Where("status <> ? AND resolved_at IS NOT NULL AND resolved_at < ?",
		models.InvitationStatusPending, cutoff).
		Delete(&models.Invitation{})
	return result.RowsAffected, result.Error
}

// CreateDepartment creates a department
func (r *GormOrganizationRepository) CreateDepartment(dept *models.Department) error {
	return r.db.Create(dept).Error
}

// FindDepartment finds an active department by ID
func (r *GormOrganizationRepository) FindDepartment(id string) (*models.Department, error) {
	var dept models.Department
	if err := r.db.Scopes(database.ActiveOnly).Where("id = ?", id).First(&dept).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

// UpdateDepartment updates a department
func (r *GormOrganizationRepository) UpdateDepartment(dept *models.Department) error {
	return r.db.Save(dept).Error
}

// DeleteDepartment soft-deletes a department and unassigns its members
func (r *GormOrganizationRepository) DeleteDepartment(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Membership{}).
			Where("department_id = ?", id).
			Update("department_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&models.Department{}).
			Where("id = ?", id).
			Update("is_active", false).Error
	})
}

// ListDepartments lists active departments of an organization
func (r *GormOrganizationRepository) ListDepartments(organizationID string) ([]models.Department, error) {
	var depts []models.Department
	if err := r.db.Scopes(database.ActiveOnly).Where("organization_id = ?", organizationID).
		Order("name ASC").
		Find(&depts).Error; err != nil {
		return nil, err
	}
	return depts, nil
}
