package repository

import (
	"time"

	"github.com/voicecheck/voicecheck/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds an active user by ID
	FindByID(id string) (*models.User, error)

	// FindByEmail finds an active user by email
	FindByEmail(email string) (*models.User, error)

	// FindByUsername finds an active user by username
	FindByUsername(username string) (*models.User, error)

	// Update updates a user
	Update(user *models.User) error
}

// OrganizationRepository defines the interface for organization, membership,
// invitation and department data access
type OrganizationRepository interface {
	Create(org *models.Organization) error
	FindByID(id string) (*models.Organization, error)
	FindByAccessCode(code string) (*models.Organization, error)
	Update(org *models.Organization) error
	// Deactivate soft-deletes an organization; its rows stay but no
	// normal query surfaces them again.
	Deactivate(id string) error

	AddMember(member *models.Membership) error
	UpdateMember(member *models.Membership) error
	RemoveMember(organizationID, userID string) error
	FindMember(organizationID, userID string) (*models.Membership, error)
	ListMembers(organizationID string) ([]models.Membership, error)
	ListMembershipsByUserID(userID string) ([]models.Membership, error)
	CountMembers(organizationID string) (int64, error)
	CountOwners(organizationID string) (int64, error)

	CreateInvitation(inv *models.Invitation) error
	FindInvitationByToken(token string) (*models.Invitation, error)
	FindPendingInvitation(organizationID, email string) (*models.Invitation, error)
	UpdateInvitation(inv *models.Invitation) error
	ListInvitations(organizationID string) ([]models.Invitation, error)
	// ExpirePendingInvitations marks pending invitations past their
	// expiry as expired and returns how many rows changed.
	ExpirePendingInvitations(now time.Time) (int64, error)
	// PurgeResolvedInvitations deletes resolved invitations older than
	// the retention cutoff.
	PurgeResolvedInvitations(cutoff time.Time) (int64, error)

	CreateDepartment(dept *models.Department) error
	FindDepartment(id string) (*models.Department, error)
	UpdateDepartment(dept *models.Department) error
	DeleteDepartment(id string) error
	ListDepartments(organizationID string) ([]models.Department, error)
}

// SessionRepository defines the interface for refresh-session data access
type SessionRepository interface {
	Create(session *models.Session) error
	FindByAccessJTI(jti string) (*models.Session, error)
	FindByRefreshJTI(jti string) (*models.Session, error)
	FindOldestActiveForUser(userID string, now time.Time) (*models.Session, error)
	Update(session *models.Session) error
	Revoke(session *models.Session, at time.Time) error
	RevokeAllForUser(userID string, at time.Time) error
	CountActiveForUser(userID string, now time.Time) (int64, error)
	// PurgeStale deletes sessions that expired before now or were revoked
	// before revokedCutoff.
	PurgeStale(now, revokedCutoff time.Time) (int64, error)
}

// DialogFilter holds filtering options for listing dialogs
type DialogFilter struct {
	// Owner scoping: dialogs owned by the user directly, or by any of the
	// listed organizations.
	UserID          string
	OrganizationIDs []string

	Status     *models.DialogStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	SellerName string
	MinScore   *float64
	CompanyID  *string

	Page     int
	PageSize int
}

// AnalysisRow is one dialog's analysis joined with its creation date,
// used for dashboard rollups.
type AnalysisRow struct {
	CreatedAt  time.Time
	Scores     models.Scores
	KeyMoments models.KeyMomentList
}

// DialogRepository defines the interface for dialog, transcription and
// analysis data access
type DialogRepository interface {
	Create(dialog *models.Dialog) error
	FindByID(id string, preload ...string) (*models.Dialog, error)
	List(filter DialogFilter) ([]models.Dialog, int64, error)
	Update(dialog *models.Dialog) error
	UpdateStatus(id string, status models.DialogStatus) error
	// Delete removes a dialog and cascades its transcription and analysis.
	Delete(id string) error

	CreateTranscription(t *models.Transcription) error
	FindTranscription(dialogID string) (*models.Transcription, error)

	CreateAnalysis(a *models.Analysis) error
	FindAnalysis(dialogID string) (*models.Analysis, error)

	// ListSellers returns distinct non-empty seller names within the
	// owner scope, sorted.
	ListSellers(userID string, organizationIDs []string) ([]string, error)

	// CountByStatus counts dialogs in the owner scope with the given
	// statuses, honoring filter dates and seller.
	CountByStatus(filter DialogFilter, statuses []models.DialogStatus) (int64, error)

	// ListAnalysisRows returns analyses joined with dialog dates for
	// dashboard aggregation, ordered by dialog creation time.
	ListAnalysisRows(filter DialogFilter) ([]AnalysisRow, error)
}

// CompanyFilter holds filtering options for listing companies
type CompanyFilter struct {
	OwnerType string
	OwnerID   string
	Search    string
	Industry  string
	Page      int
	PageSize  int
}

// CompanyRepository defines the interface for CRM company data access
type CompanyRepository interface {
	Create(company *models.Company) error
	FindByID(id string) (*models.Company, error)
	FindByName(ownerType, ownerID, name string) (*models.Company, error)
	FindByTaxID(ownerType, ownerID, taxID string) (*models.Company, error)
	List(filter CompanyFilter) ([]models.Company, int64, error)
	Update(company *models.Company) error
	Delete(id string) error
	CountDialogs(companyID string) (int64, error)

	SaveMapping(mapping *models.CSVImportMapping) error
	ListMappings(ownerType, ownerID string) ([]models.CSVImportMapping, error)
}
