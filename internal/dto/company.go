package dto

import (
	"time"

	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/utils"
)

// CompanyDTO represents a CRM company in API responses
type CompanyDTO struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	TaxID         *string        `json:"tax_id,omitempty"`
	ExternalID    *string        `json:"external_id,omitempty"`
	ContactPerson *string        `json:"contact_person,omitempty"`
	Phone         *string        `json:"phone,omitempty"`
	Email         *string        `json:"email,omitempty"`
	Address       *string        `json:"address,omitempty"`
	Responsible   *string        `json:"responsible,omitempty"`
	Industry      *string        `json:"industry,omitempty"`
	FunnelStage   *string        `json:"funnel_stage,omitempty"`
	CustomFields  models.JSONMap `json:"custom_fields,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CompanyListResponse represents a paginated list of companies
type CompanyListResponse struct {
	Companies  []CompanyDTO `json:"companies"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalCount int64        `json:"total_count"`
	TotalPages int          `json:"total_pages"`
}

// ToCompanyDTO converts a Company model to CompanyDTO
func ToCompanyDTO(company models.Company) CompanyDTO {
	return CompanyDTO{
		ID:            company.ID,
		Name:          company.Name,
		TaxID:         company.TaxID,
		ExternalID:    company.ExternalID,
		ContactPerson: company.ContactPerson,
		Phone:         company.Phone,
		Email:         company.Email,
		Address:       company.Address,
		Responsible:   company.Responsible,
		Industry:      company.Industry,
		FunnelStage:   company.FunnelStage,
		CustomFields:  company.CustomFields,
		CreatedAt:     company.CreatedAt,
	}
}

// ToCompanyListResponse builds a paginated company list response
func ToCompanyListResponse(companies []models.Company, page, pageSize int, total int64) CompanyListResponse {
	items := make([]CompanyDTO, len(companies))
	for i, company := range companies {
		items[i] = ToCompanyDTO(company)
	}
	return CompanyListResponse{
		Companies:  items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: utils.TotalPages(total, pageSize),
	}
}
