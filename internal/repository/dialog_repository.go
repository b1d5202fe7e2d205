package repository

import (
	"strings"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/database"
	"github.com/voicecheck/voicecheck/internal/models"
	"gorm.io/gorm"
)

// GormDialogRepository is a GORM implementation of DialogRepository
type GormDialogRepository struct {
	db *gorm.DB
}

// NewDialogRepository creates a new DialogRepository
func NewDialogRepository(db *gorm.DB) DialogRepository {
	return &GormDialogRepository{db: db}
}

// Create creates a new dialog
func (r *GormDialogRepository) Create(dialog *models.Dialog) error {
	return r.db.Create(dialog).Error
}

// FindByID finds a dialog by ID with optional preloading
func (r *GormDialogRepository) FindByID(id string, preload ...string) (*models.Dialog, error) {
	var dialog models.Dialog
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.Where("id = ?", id).First(&dialog).Error; err != nil {
		return nil, err
	}
	return &dialog, nil
}

// ownerScope restricts a dialogs query to rows the caller can see:
// personal dialogs plus dialogs of the listed organizations.
func (r *GormDialogRepository) ownerScope(query *gorm.DB, userID string, orgIDs []string) *gorm.DB {
	personal := r.db.Where("dialogs.owner_type = ? AND dialogs.owner_id = ?",
		access.OwnerTypeUser, userID)
	if len(orgIDs) == 0 {
		return query.Where(personal)
	}
	return query.Where(personal.Or("dialogs.owner_type = ? AND dialogs.owner_id IN ?",
		access.OwnerTypeOrganization, orgIDs))
}

// applyFilter applies the content filters shared by List, CountByStatus
// and ListAnalysisRows.
func (r *GormDialogRepository) applyFilter(query *gorm.DB, filter DialogFilter) *gorm.DB {
	query = r.ownerScope(query, filter.UserID, filter.OrganizationIDs)

	if filter.DateFrom != nil {
		query = query.Where("dialogs.created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("dialogs.created_at <= ?", *filter.DateTo)
	}
	if filter.SellerName != "" {
		query = query.Where("dialogs.seller_name = ?", filter.SellerName)
	}
	if filter.CompanyID != nil {
		query = query.Where("dialogs.company_id = ?", *filter.CompanyID)
	}
	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			r.db.Where("LOWER(dialogs.filename) LIKE ?", needle).
				Or("LOWER(dialogs.seller_name) LIKE ?", needle))
	}
	return query
}

// List retrieves dialogs with filtering and pagination, newest first
func (r *GormDialogRepository) List(filter DialogFilter) ([]models.Dialog, int64, error) {
	var dialogs []models.Dialog

	query := r.applyFilter(r.db.Model(&models.Dialog{}), filter)

	if filter.Status != nil {
		query = query.Where("dialogs.status = ?", *filter.Status)
	}
	if filter.MinScore != nil {
		query = query.
			Joins("JOIN analyses ON analyses.dialog_id = dialogs.id").
			Where("analyses.overall_score >= ?", *filter.MinScore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Analysis").
		Preload("Company").
		Order("dialogs.created_at DESC").
		Scopes(database.Paginate(filter.Page, filter.PageSize)).
		Find(&dialogs).Error; err != nil {
		return nil, 0, err
	}

	return dialogs, total, nil
}

// Update updates a dialog
func (r *GormDialogRepository) Update(dialog *models.Dialog) error {
	return r.db.Save(dialog).Error
}

// UpdateStatus updates only the status column of a dialog
func (r *GormDialogRepository) UpdateStatus(id string, status models.DialogStatus) error {
	return r.db.Model(&models.Dialog{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Delete removes a dialog together with its transcription and analysis
func (r *GormDialogRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dialog_id = ?", id).Delete(&models.Transcription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dialog_id = ?", id).Delete(&models.Analysis{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Dialog{}).Error
	})
}

// CreateTranscription creates a transcription row
func (r *GormDialogRepository) CreateTranscription(t *models.Transcription) error {
	return r.db.Create(t).Error
}

// FindTranscription finds the transcription of a dialog
func (r *GormDialogRepository) FindTranscription(dialogID string) (*models.Transcription, error) {
	var t models.Transcription
	if err := r.db.Where("dialog_id = ?", dialogID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateAnalysis creates an analysis row
func (r *GormDialogRepository) CreateAnalysis(a *models.Analysis) error {
	return r.db.Create(a).Error
}

// FindAnalysis finds the analysis of a dialog
func (r *GormDialogRepository) FindAnalysis(dialogID string) (*models.Analysis, error) {
	var a models.Analysis
	if err := r.db.Where("dialog_id = ?", dialogID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListSellers returns distinct non-empty seller names within the owner scope
func (r *GormDialogRepository) ListSellers(userID string, organizationIDs []string) ([]string, error) {
	var sellers []string
	query := r.ownerScope(r.db.Model(&models.Dialog{}), userID, organizationIDs)
	if err := query.
		Where("dialogs.seller_name IS NOT NULL AND dialogs.seller_name <> ''").
		Distinct("dialogs.seller_name").
		Order("dialogs.seller_name ASC").
		Pluck("dialogs.seller_name", &sellers).Error; err != nil {
		return nil, err
	}
	return sellers, nil
}

// CountByStatus counts dialogs in the owner scope matching the given statuses
func (r *GormDialogRepository) CountByStatus(filter DialogFilter, statuses []models.DialogStatus) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.Model(&models.Dialog{}), filter)
	if len(statuses) > 0 {
		query = query.Where("dialogs.status IN ?", statuses)
	}
	err := query.Count(&count).Error
	return count, err
}

// ListAnalysisRows returns analyses joined with dialog dates for aggregation
func (r *GormDialogRepository) ListAnalysisRows(filter DialogFilter) ([]AnalysisRow, error) {
	var rows []AnalysisRow
	query := r.applyFilter(
		r.db.Model(&models.Analysis{}).
			Joins("JOIN dialogs ON dialogs.id = analyses.dialog_id"),
		filter)
	if err := query.
		Select("dialogs.created_at AS created_at, analyses.scores AS scores, analyses.key_moments AS key_moments").
		Order("dialogs.created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
