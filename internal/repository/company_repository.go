package repository

import (
	"strings"

	"github.com/voicecheck/voicecheck/internal/database"
	"github.com/voicecheck/voicecheck/internal/models"
	"gorm.io/gorm"
)

// GormCompanyRepository is a GORM implementation of CompanyRepository
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository creates a new CompanyRepository
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &GormCompanyRepository{db: db}
}

// Create creates a new company
func (r *GormCompanyRepository) Create(company *models.Company) error {
	return r.db.Create(company).Error
}

// FindByID finds a company by ID
func (r *GormCompanyRepository) FindByID(id string) (*models.Company, error) {
	var company models.Company
	if err := r.db.Where("id = ?", id).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// FindByName finds a company by exact name within an owner scope
func (r *GormCompanyRepository) FindByName(ownerType, ownerID, name string) (*models.Company, error) {
	var company models.Company
	if err := r.db.Where("owner_type = ? AND owner_id = ? AND LOWER(name) = ?",
		ownerType, ownerID, strings.ToLower(name)).
		First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// FindByTaxID finds a company by tax number within an owner scope
func (r *GormCompanyRepository) FindByTaxID(ownerType, ownerID, taxID string) (*models.Company, error) {
	var company models.Company
	if err := r.db.Where("owner_type = ? AND owner_id = ? AND tax_id = ?",
		ownerType, ownerID, taxID).
		First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// List retrieves companies with filtering and pagination
func (r *GormCompanyRepository) List(filter CompanyFilter) ([]models.Company, int64, error) {
	var companies []models.Company

	query := r.db.Model(&models.Company{}).
		Where("owner_type = ? AND owner_id = ?", filter.OwnerType, filter.OwnerID)

	if filter.Industry != "" {
		query = query.Where("industry = ?", filter.Industry)
	}
	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			r.db.Where("LOWER(name) LIKE ?", needle).
				Or("LOWER(contact_person) LIKE ?", needle).
				Or("tax_id LIKE ?", needle))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Order("name ASC").
		Scopes(database.Paginate(filter.Page, filter.PageSize)).
		Find(&companies).Error; err != nil {
		return nil, 0, err
	}

	return companies, total, nil
}

// Update updates a company
func (r *GormCompanyRepository) Update(company *models.Company) error {
	return r.db.Save(company).Error
}

// Delete removes a company and detaches its dialogs
func (r *GormCompanyRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Dialog{}).
			Where("company_id = ?", id).
			Update("company_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Company{}).Error
	})
}

// CountDialogs counts dialogs linked to a company
func (r *GormCompanyRepository) CountDialogs(companyID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Dialog{}).
		Where("company_id = ?", companyID).
		Count(&count).Error
	return count, err
}

// SaveMapping stores a reusable CSV column mapping
func (r *GormCompanyRepository) SaveMapping(mapping *models.CSVImportMapping) error {
	return r.db.Create(mapping).Error
}

// ListMappings lists saved CSV mappings for an owner scope, newest first
func (r *GormCompanyRepository) ListMappings(ownerType, ownerID string) ([]models.CSVImportMapping, error) {
	var mappings []models.CSVImportMapping
	if err := r.db.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("created_at DESC").
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}
