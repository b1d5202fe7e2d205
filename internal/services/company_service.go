package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
)

var (
	ErrCompanyExists   = errors.New("company already exists")
	ErrEmptyCSV        = errors.New("csv file has no data rows")
	ErrCSVNameRequired = errors.New("csv mapping must include the name field")
)

// Company fields addressable from a CSV column mapping.
var companyFields = map[string]bool{
	"name":           true,
	"tax_id":         true,
	"external_id":    true,
	"contact_person": true,
	"phone":          true,
	"email":          true,
	"address":        true,
	"responsible":    true,
	"industry":       true,
	"funnel_stage":   true,
}

// Header synonyms recognized when guessing a CSV mapping.
var headerSynonyms = map[string]string{
	"name":           "name",
	"company":        "name",
	"company name":   "name",
	"название":       "name",
	"компания":       "name",
	"tax id":         "tax_id",
	"taxid":          "tax_id",
	"inn":            "tax_id",
	"инн":            "tax_id",
	"external id":    "external_id",
	"id":             "external_id",
	"contact":        "contact_person",
	"contact person": "contact_person",
	"контакт":        "contact_person",
	"phone":          "phone",
	"телефон":        "phone",
	"email":          "email",
	"e-mail":         "email",
	"почта":          "email",
	"address":        "address",
	"адрес":          "address",
	"responsible":    "responsible",
	"ответственный":  "responsible",
	"industry":       "industry",
	"отрасль":        "industry",
	"funnel stage":   "funnel_stage",
	"stage":          "funnel_stage",
	"этап":           "funnel_stage",
}

// CompanyService handles the CRM companies attached to dialogs.
type CompanyService struct {
	companyRepo repository.CompanyRepository
	log         *logrus.Logger
}

// NewCompanyService creates a new CompanyService.
func NewCompanyService(companyRepo repository.CompanyRepository, log *logrus.Logger) *CompanyService {
	return &CompanyService{companyRepo: companyRepo, log: log}
}

// CompanyInput carries company attributes for create and update.
type CompanyInput struct {
	Name          string
	TaxID         string
	ExternalID    string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
	Responsible   string
	Industry      string
	FunnelStage   string
	CustomFields  models.JSONMap
}

// Create adds a company to the owner's CRM. Duplicate names or tax
// numbers within the same scope are rejected.
func (s *CompanyService) Create(ownerType, ownerID, createdBy string, input CompanyInput) (*models.Company, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("company name is required")
	}

	if _, err := s.companyRepo.FindByName(ownerType, ownerID, input.Name); err == nil {
		return nil, ErrCompanyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check name: %w", err)
	}
	if input.TaxID != "" {
		if _, err := s.companyRepo.FindByTaxID(ownerType, ownerID, input.TaxID); err == nil {
			return nil, ErrCompanyExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check tax id: %w", err)
		}
	}

	company := &models.Company{
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		CreatedBy:    createdBy,
		Name:         input.Name,
		CustomFields: input.CustomFields,
	}
	applyCompanyFields(company, input)
	if err := s.companyRepo.Create(company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	return company, nil
}

// Get loads a company by ID.
func (s *CompanyService) Get(companyID string) (*models.Company, error) {
	company, err := s.companyRepo.FindByID(companyID)
	if err != nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}

// List returns a page of companies in the owner's scope.
func (s *CompanyService) List(filter repository.CompanyFilter) ([]models.Company, int64, error) {
	return s.companyRepo.List(filter)
}

// Update edits a company. Empty input fields keep their current values;
// custom fields are merged key by key.
func (s *CompanyService) Update(companyID string, input CompanyInput) (*models.Company, error) {
	company, err := s.companyRepo.FindByID(companyID)
	if err != nil {
		return nil, ErrCompanyNotFound
	}

	if name := strings.TrimSpace(input.Name); name != "" && !strings.EqualFold(name, company.Name) {
		if _, err := s.companyRepo.FindByName(company.OwnerType, company.OwnerID, name); err == nil {
			return nil, ErrCompanyExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check name: %w", err)
		}
		company.Name = name
	}
	applyCompanyFields(company, input)
	if len(input.CustomFields) > 0 {
		if company.CustomFields == nil {
			company.CustomFields = models.JSONMap{}
		}
		for k, v := range input.CustomFields {
			company.CustomFields[k] = v
		}
	}

	if err := s.companyRepo.Update(company); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}
	return company, nil
}

// Delete removes a company and detaches its dialogs.
func (s *CompanyService) Delete(companyID string) error {
	if _, err := s.companyRepo.FindByID(companyID); err != nil {
		return ErrCompanyNotFound
	}
	return s.companyRepo.Delete(companyID)
}

// Suggest returns up to ten companies matching the query, for linking a
// dialog to a company while typing.
func (s *CompanyService) Suggest(ownerType, ownerID, query string) ([]models.Company, error) {
	companies, _, err := s.companyRepo.List(repository.CompanyFilter{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Search:    strings.TrimSpace(query),
		Page:      1,
		PageSize:  10,
	})
	return companies, err
}

// GuessMapping proposes a column-to-field mapping from CSV headers.
// Unrecognized columns are left unmapped and land in custom fields.
func GuessMapping(headers []string) map[string]string {
	mapping := map[string]string{}
	used := map[string]bool{}
	for _, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header))
		if field, ok := headerSynonyms[key]; ok && !used[field] {
			mapping[header] = field
			used[field] = true
		}
	}
	return mapping
}

// ImportReport summarizes one CSV import run.
type ImportReport struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Skipped int               `json:"skipped"`
	Errors  []string          `json:"errors,omitempty"`
	Mapping map[string]string `json:"mapping"`
}

// ImportCSV loads companies from a CSV stream. An empty mapping is
// guessed from the headers. Rows matching an existing company by tax
// number or name update it; others create new companies. The run never
// aborts on a bad row, it is reported and skipped.
func (s *CompanyService) ImportCSV(ownerType, ownerID, createdBy string, r io.Reader, mapping map[string]string, mappingName string) (*ImportReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, ErrEmptyCSV
	}

	if len(mapping) == 0 {
		mapping = GuessMapping(headers)
	}
	nameMapped := false
	for header, field := range mapping {
		if !companyFields[field] {
			return nil, fmt.Errorf("unknown company field %q for column %q", field, header)
		}
		if field == "name" {
			nameMapped = true
		}
	}
	if !nameMapped {
		return nil, ErrCSVNameRequired
	}

	report := &ImportReport{Mapping: mapping}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		input := CompanyInput{CustomFields: models.JSONMap{}}
		for i, header := range headers {
			if i >= len(record) {
				break
			}
			value := strings.TrimSpace(record[i])
			if value == "" {
				continue
			}
			switch mapping[header] {
			case "name":
				input.Name = value
			case "tax_id":
				input.TaxID = value
			case "external_id":
				input.ExternalID = value
			case "contact_person":
				input.ContactPerson = value
			case "phone":
				input.Phone = value
			case "email":
				input.Email = value
			case "address":
				input.Address = value
			case "responsible":
				input.Responsible = value
			case "industry":
				input.Industry = value
			case "funnel_stage":
				input.FunnelStage = value
			default:
				input.CustomFields[header] = value
			}
		}

		if input.Name == "" {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: missing company name", line))
			continue
		}

		if err := s.upsertImported(ownerType, ownerID, createdBy, input, report); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", line, err))
		}
	}

	if report.Created+report.Updated == 0 && report.Skipped == 0 {
		return nil, ErrEmptyCSV
	}

	if mappingName != "" {
		saved := &models.CSVImportMapping{
			OwnerType: ownerType,
			OwnerID:   ownerID,
			Name:      mappingName,
			Mapping:   models.JSONMap{},
		}
		for header, field := range mapping {
			saved.Mapping[header] = field
		}
		if err := s.companyRepo.SaveMapping(saved); err != nil {
			s.log.WithError(err).Warn("failed to save csv mapping")
		}
	}

	return report, nil
}

func (s *CompanyService) upsertImported(ownerType, ownerID, createdBy string, input CompanyInput, report *ImportReport) error {
	var existing *models.Company
	if input.TaxID != "" {
		if found, err := s.companyRepo.FindByTaxID(ownerType, ownerID, input.TaxID); err == nil {
			existing = found
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	if existing == nil {
		if found, err := s.companyRepo.FindByName(ownerType, ownerID, input.Name); err == nil {
			existing = found
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	if existing == nil {
		company := &models.Company{
			OwnerType:    ownerType,
			OwnerID:      ownerID,
			CreatedBy:    createdBy,
			Name:         input.Name,
			CustomFields: input.CustomFields,
		}
		applyCompanyFields(company, input)
		if err := s.companyRepo.Create(company); err != nil {
			return err
		}
		report.Created++
		return nil
	}

	applyCompanyFields(existing, input)
	if len(input.CustomFields) > 0 {
		if existing.CustomFields == nil {
			existing.CustomFields = models.JSONMap{}
		}
		for k, v := range input.CustomFields {
			existing.CustomFields[k] = v
		}
	}
	if err := s.companyRepo.Update(existing); err != nil {
		return err
	}
	report.Updated++
	return nil
}

// ListMappings lists the saved CSV mappings of an owner scope.
func (s *CompanyService) ListMappings(ownerType, ownerID string) ([]models.CSVImportMapping, error) {
	return s.companyRepo.ListMappings(ownerType, ownerID)
}

func applyCompanyFields(company *models.Company, input CompanyInput) {
	setIfPresent(&company.TaxID, input.TaxID)
	setIfPresent(&company.ExternalID, input.ExternalID)
	setIfPresent(&company.ContactPerson, input.ContactPerson)
	setIfPresent(&company.Phone, input.Phone)
	setIfPresent(&company.Email, input.Email)
	setIfPresent(&company.Address, input.Address)
	setIfPresent(&company.Responsible, input.Responsible)
	setIfPresent(&company.Industry, input.Industry)
	setIfPresent(&company.FunnelStage, input.FunnelStage)
}

func setIfPresent(dst **string, value string) {
	if value != "" {
		v := value
		*dst = &v
	}
}
