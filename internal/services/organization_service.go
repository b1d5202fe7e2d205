package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/constants"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/utils"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationFull     = errors.New("organization member limit reached")
	ErrMemberNotFound       = errors.New("member not found")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationResolved   = errors.New("invitation already resolved")
	ErrInvitationExpired    = errors.New("invitation expired")
	ErrInvitationEmail      = errors.New("invitation addressed to another email")
	ErrInvitationPending    = errors.New("a pending invitation already exists")
	ErrInvalidRole          = errors.New("invalid role")
	ErrLastOwner            = errors.New("organization must keep at least one owner")
	ErrDepartmentNotFound   = errors.New("department not found")
)

// OrganizationService handles organizations, memberships, invitations
// and departments.
type OrganizationService struct {
	orgRepo    repository.OrganizationRepository
	userRepo   repository.UserRepository
	dialogRepo repository.DialogRepository
	maxMembers int
	log        *logrus.Logger
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	dialogRepo repository.DialogRepository,
	maxMembers int,
	log *logrus.Logger,
) *OrganizationService {
	return &OrganizationService{
		orgRepo:    orgRepo,
		userRepo:   userRepo,
		dialogRepo: dialogRepo,
		maxMembers: maxMembers,
		log:        log,
	}
}

// Create creates an organization with the caller as its owner.
func (s *OrganizationService) Create(userID, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	code, err := utils.GenerateAccessCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access code: %w", err)
	}
	slug, err := utils.Slugify(name)
	if err != nil {
		return nil, fmt.Errorf("failed to build slug: %w", err)
	}

	org := &models.Organization{
		Name:       name,
		Slug:       slug,
		AccessCode: code,
		MaxMembers: s.maxMembers,
		IsActive:   true,
	}
	if err := s.orgRepo.Create(org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	owner := &models.Membership{
		UserID:         userID,
		OrganizationID: org.ID,
		Role:           access.RoleOwner,
		Status:         models.MembershipStatusActive,
	}
	if err := s.orgRepo.AddMember(owner); err != nil {
		return nil, fmt.Errorf("failed to add owner: %w", err)
	}
	return org, nil
}

// Get returns an active organization by ID.
func (s *OrganizationService) Get(orgID string) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		return nil, ErrOrganizationNotFound
	}
	return org, nil
}

// GetByAccessCode returns an organization by its join code. Used by the
// signup page to show the organization before the user commits.
func (s *OrganizationService) GetByAccessCode(code string) (*models.Organization, error) {
	org, err := s.orgRepo.FindByAccessCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, ErrOrganizationNotFound
	}
	return org, nil
}

// Update renames an organization.
func (s *OrganizationService) Update(orgID string, name *string) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		return nil, ErrOrganizationNotFound
	}
	if name != nil && strings.TrimSpace(*name) != "" {
		org.Name = strings.TrimSpace(*name)
	}
	if err := s.orgRepo.Update(org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return org, nil
}

// RotateAccessCode replaces the organization join code, invalidating the
// old one.
func (s *OrganizationService) RotateAccessCode(orgID string) (*models.Organization, error) {
	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		return nil, ErrOrganizationNotFound
	}
	code, err := utils.GenerateAccessCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access code: %w", err)
	}
	org.AccessCode = code
	if err := s.orgRepo.Update(org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return org, nil
}

// Deactivate soft-deletes an organization.
func (s *OrganizationService) Deactivate(orgID string) error {
	if _, err := s.orgRepo.FindByID(orgID); err != nil {
		return ErrOrganizationNotFound
	}
	return s.orgRepo.Deactivate(orgID)
}

// ListMine lists the caller's memberships with organizations attached.
func (s *OrganizationService) ListMine(userID string) ([]models.Membership, error) {
	memberships, err := s.orgRepo.ListMembershipsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	// Hide memberships of deactivated organizations.
	active := memberships[:0]
	for _, m := range memberships {
		if m.Organization.IsActive {
			active = append(active, m)
		}
	}
	return active, nil
}

// ActiveOrganizationIDs returns the IDs of organizations where the user
// holds an active membership.
func (s *OrganizationService) ActiveOrganizationIDs(userID string) ([]string, error) {
	memberships, err := s.orgRepo.ListMembershipsByUserID(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.IsActive() && m.Organization.IsActive {
			ids = append(ids, m.OrganizationID)
		}
	}
	return ids, nil
}

// RoleOf reports the caller's active role in an organization.
func (s *OrganizationService) RoleOf(userID, orgID string) (access.Role, bool) {
	member, err := s.orgRepo.FindMember(orgID, userID)
	if err != nil || !member.IsActive() {
		return "", false
	}
	return member.Role, true
}

// GetMember returns a user's membership in an organization.
func (s *OrganizationService) GetMember(orgID, userID string) (*models.Membership, error) {
	member, err := s.orgRepo.FindMember(orgID, userID)
	if err != nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// ListMembers lists the memberships of an organization.
func (s *OrganizationService) ListMembers(orgID string) ([]models.Membership, error) {
	return s.orgRepo.ListMembers(orgID)
}

// Invite creates a pending invitation for an email address.
func (s *OrganizationService) Invite(orgID, inviterID, email string, role access.Role) (*models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !access.IsInvitableRole(role) {
		return nil, ErrInvalidRole
	}

	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		return nil, ErrOrganizationNotFound
	}

	count, err := s.orgRepo.CountMembers(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= int64(org.MaxMembers) {
		return nil, ErrOrganizationFull
	}

	// An existing member with this email cannot be invited again.
	if user, err := s.userRepo.FindByEmail(email); err == nil {
		if member, err := s.orgRepo.FindMember(orgID, user.ID); err == nil && member.IsActive() {
			return nil, ErrAlreadyMember
		}
	}

	if _, err := s.orgRepo.FindPendingInvitation(orgID, email); err == nil {
		return nil, ErrInvitationPending
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check invitations: %w", err)
	}

	token, err := utils.GenerateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	inv := &models.Invitation{
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          token,
		InvitedBy:      inviterID,
		Status:         models.InvitationStatusPending,
		ExpiresAt:      time.Now().Add(constants.InvitationTTL),
	}
	if err := s.orgRepo.CreateInvitation(inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	return inv, nil
}

// AddMemberByEmail directly enrolls an existing account as an active
// member, bypassing the invitation flow. A disabled or declined
// membership for the same user is reactivated with the new role.
func (s *OrganizationService) AddMemberByEmail(orgID, email string, role access.Role) (*models.Membership, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !access.IsInvitableRole(role) {
		return nil, ErrInvalidRole
	}

	org, err := s.orgRepo.FindByID(orgID)
	if err != nil {
		return nil, ErrOrganizationNotFound
	}
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if member, err := s.orgRepo.FindMember(orgID, user.ID); err == nil {
		if member.IsActive() {
			return nil, ErrAlreadyMember
		}
		member.Role = role
		member.Status = models.MembershipStatusActive
		if err := s.orgRepo.UpdateMember(member); err != nil {
			return nil, fmt.Errorf("failed to reactivate member: %w", err)
		}
		return member, nil
	}

	count, err := s.orgRepo.CountMembers(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= int64(org.MaxMembers) {
		return nil, ErrOrganizationFull
	}

	member := &models.Membership{
		UserID:         user.ID,
		OrganizationID: orgID,
		Role:           role,
		Status:         models.MembershipStatusActive,
	}
	if err := s.orgRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return member, nil
}

// ListInvitations lists an organization's invitations, newest first.
func (s *OrganizationService) ListInvitations(orgID string) ([]models.Invitation, error) {
	return s.orgRepo.ListInvitations(orgID)
}

// PreviewInvitation resolves a token to its invitation without touching it.
func (s *OrganizationService) PreviewInvitation(token string) (*models.Invitation, error) {
	inv, err := s.orgRepo.FindInvitationByToken(token)
	if err != nil {
		return nil, ErrInvitationNotFound
	}
	return inv, nil
}

// AcceptInvitation turns a pending invitation into an active membership.
// The accepting account's email must match the invited address.
func (s *OrganizationService) AcceptInvitation(token, userID string) (*models.Membership, error) {
	inv, err := s.resolveInvitation(token, userID)
	if err != nil {
		return nil, err
	}

	// A disabled or declined membership row is reactivated in place so
	// the unique (user, organization) pair is never duplicated.
	var member *models.Membership
	if existing, err := s.orgRepo.FindMember(inv.OrganizationID, userID); err == nil {
		if existing.IsActive() {
			return nil, ErrAlreadyMember
		}
		existing.Role = inv.Role
		existing.Status = models.MembershipStatusActive
		if err := s.orgRepo.UpdateMember(existing); err != nil {
			return nil, fmt.Errorf("failed to reactivate member: %w", err)
		}
		member = existing
	} else {
		org, err := s.orgRepo.FindByID(inv.OrganizationID)
		if err != nil {
			return nil, ErrOrganizationNotFound
		}
		count, err := s.orgRepo.CountMembers(org.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}
		if count >= int64(org.MaxMembers) {
			return nil, ErrOrganizationFull
		}

		member = &models.Membership{
			UserID:         userID,
			OrganizationID: inv.OrganizationID,
			Role:           inv.Role,
			Status:         models.MembershipStatusActive,
		}
		if err := s.orgRepo.AddMember(member); err != nil {
			return nil, fmt.Errorf("failed to add member: %w", err)
		}
	}

	now := time.Now()
	inv.Status = models.InvitationStatusAccepted
	inv.ResolvedAt = &now
	if err := s.orgRepo.UpdateInvitation(inv); err != nil {
		s.log.WithError(err).Warn("failed to mark invitation accepted")
	}
	return member, nil
}

// DeclineInvitation marks a pending invitation as declined.
func (s *OrganizationService) DeclineInvitation(token, userID string) error {
	inv, err := s.resolveInvitation(token, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	inv.Status = models.InvitationStatusDeclined
	inv.ResolvedAt = &now
	return s.orgRepo.UpdateInvitation(inv)
}

func (s *OrganizationService) resolveInvitation(token, userID string) (*models.Invitation, error) {
	inv, err := s.orgRepo.FindInvitationByToken(token)
	if err != nil {
		return nil, ErrInvitationNotFound
	}
	if inv.Status != models.InvitationStatusPending {
		return nil, ErrInvitationResolved
	}
	if inv.IsExpired(time.Now()) {
		now := time.Now()
		inv.Status = models.InvitationStatusExpired
		inv.ResolvedAt = &now
		if err := s.orgRepo.UpdateInvitation(inv); err != nil {
			s.log.WithError(err).Warn("failed to mark invitation expired")
		}
		return nil, ErrInvitationExpired
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.Email == nil || !strings.EqualFold(*user.Email, inv.Email) {
		return nil, ErrInvitationEmail
	}
	return inv, nil
}

// ChangeMemberRole updates a member's role. Demoting the only owner is
// rejected.
func (s *OrganizationService) ChangeMemberRole(orgID, targetUserID string, role access.Role) (*models.Membership, error) {
	if !access.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	member, err := s.orgRepo.FindMember(orgID, targetUserID)
	if err != nil {
		return nil, ErrMemberNotFound
	}

	if member.Role == access.RoleOwner && role != access.RoleOwner {
		owners, err := s.orgRepo.CountOwners(orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to count owners: %w", err)
		}
		if owners <= 1 {
			return nil, ErrLastOwner
		}
	}

	member.Role = role
	if err := s.orgRepo.UpdateMember(member); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	return member, nil
}

// RemoveMember removes a user from an organization. The only owner
// cannot be removed.
func (s *OrganizationService) RemoveMember(orgID, targetUserID string) error {
	member, err := s.orgRepo.FindMember(orgID, targetUserID)
	if err != nil {
		return ErrMemberNotFound
	}

	if member.Role == access.RoleOwner {
		owners, err := s.orgRepo.CountOwners(orgID)
		if err != nil {
			return fmt.Errorf("failed to count owners: %w", err)
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}
	return s.orgRepo.RemoveMember(orgID, targetUserID)
}

// CreateDepartment adds a department to an organization.
func (s *OrganizationService) CreateDepartment(orgID, name string, headUserID *string) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("department name is required")
	}
	if headUserID != nil {
		if member, err := s.orgRepo.FindMember(orgID, *headUserID); err != nil || !member.IsActive() {
			return nil, ErrMemberNotFound
		}
	}
	dept := &models.Department{
		OrganizationID: orgID,
		Name:           name,
		HeadUserID:     headUserID,
		IsActive:       true,
	}
	if err := s.orgRepo.CreateDepartment(dept); err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return dept, nil
}

// UpdateDepartment renames a department or changes its head.
func (s *OrganizationService) UpdateDepartment(orgID, deptID string, name *string, headUserID *string) (*models.Department, error) {
	dept, err := s.findOrgDepartment(orgID, deptID)
	if err != nil {
		return nil, err
	}
	if name != nil && strings.TrimSpace(*name) != "" {
		dept.Name = strings.TrimSpace(*name)
	}
	if headUserID != nil {
		if *headUserID == "" {
			dept.HeadUserID = nil
		} else {
			if member, err := s.orgRepo.FindMember(orgID, *headUserID); err != nil || !member.IsActive() {
				return nil, ErrMemberNotFound
			}
			dept.HeadUserID = headUserID
		}
	}
	if err := s.orgRepo.UpdateDepartment(dept); err != nil {
		return nil, fmt.Errorf("failed to update department: %w", err)
	}
	return dept, nil
}

// DeleteDepartment removes a department and unassigns its members.
func (s *OrganizationService) DeleteDepartment(orgID, deptID string) error {
	if _, err := s.findOrgDepartment(orgID, deptID); err != nil {
		return err
	}
	return s.orgRepo.DeleteDepartment(deptID)
}

// ListDepartments lists an organization's active departments.
func (s *OrganizationService) ListDepartments(orgID string) ([]models.Department, error) {
	return s.orgRepo.ListDepartments(orgID)
}

// AssignDepartment moves a member into a department, or out of any when
// deptID is nil.
func (s *OrganizationService) AssignDepartment(orgID, targetUserID string, deptID *string) (*models.Membership, error) {
	member, err := s.orgRepo.FindMember(orgID, targetUserID)
	if err != nil {
		return nil, ErrMemberNotFound
	}
	if deptID != nil {
		if _, err := s.findOrgDepartment(orgID, *deptID); err != nil {
			return nil, err
		}
	}
	member.DepartmentID = deptID
	if err := s.orgRepo.UpdateMember(member); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	return member, nil
}

func (s *OrganizationService) findOrgDepartment(orgID, deptID string) (*models.Department, error) {
	dept, err := s.orgRepo.FindDepartment(deptID)
	if err != nil || dept.OrganizationID != orgID {
		return nil, ErrDepartmentNotFound
	}
	return dept, nil
}

// OrganizationStats is a summary of an organization's activity.
type OrganizationStats struct {
	MemberCount     int64   `json:"member_count"`
	DepartmentCount int     `json:"department_count"`
	TotalDialogs    int64   `json:"total_dialogs"`
	AnalyzedDialogs int64   `json:"analyzed_dialogs"`
	AvgOverallScore float64 `json:"avg_overall_score"`
}

// Stats aggregates member and dialog counts for an organization.
func (s *OrganizationService) Stats(orgID string) (*OrganizationStats, error) {
	if _, err := s.orgRepo.FindByID(orgID); err != nil {
		return nil, ErrOrganizationNotFound
	}

	stats := &OrganizationStats{}

	var err error
	if stats.MemberCount, err = s.orgRepo.CountMembers(orgID); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	depts, err := s.orgRepo.ListDepartments(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	stats.DepartmentCount = len(depts)

	filter := repository.DialogFilter{OrganizationIDs: []string{orgID}}
	if stats.TotalDialogs, err = s.dialogRepo.CountByStatus(filter, nil); err != nil {
		return nil, fmt.Errorf("failed to count dialogs: %w", err)
	}

	rows, err := s.dialogRepo.ListAnalysisRows(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}
	stats.AnalyzedDialogs = int64(len(rows))
	if len(rows) > 0 {
		var sum float64
		for _, row := range rows {
			sum += row.Scores.Overall
		}
		stats.AvgOverallScore = sum / float64(len(rows))
	}
	return stats, nil
}

// SweepInvitations expires overdue invitations and purges resolved ones
// past the retention window.
func (s *OrganizationService) SweepInvitations(now time.Time) {
	expired, err := s.orgRepo.ExpirePendingInvitations(now)
	if err != nil {
		s.log.WithError(err).Warn("invitation expiry sweep failed")
	} else if expired > 0 {
		s.log.WithField("expired", expired).Info("expired overdue invitations")
	}

	purged, err := s.orgRepo.PurgeResolvedInvitations(now.Add(-constants.InvitationRetention))
	if err != nil {
		s.log.WithError(err).Warn("invitation purge sweep failed")
	} else if purged > 0 {
		s.log.WithField("purged", purged).Info("purged resolved invitations")
	}
}
