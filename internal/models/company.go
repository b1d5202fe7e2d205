package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is a CRM record optionally linked to many dialogs.
type Company struct {
	ID            string    `gorm:"type:uuid;primarykey" json:"id"`
	OwnerType     string    `gorm:"type:varchar(50);not null;index" json:"owner_type"`
	OwnerID       string    `gorm:"type:uuid;not null;index" json:"owner_id"`
	CreatedBy     string    `gorm:"type:uuid;not null" json:"created_by"`
	Name          string    `gorm:"type:varchar(255);not null;index" json:"name"`
	TaxID         *string   `gorm:"type:varchar(20);index" json:"tax_id"`
	ExternalID    *string   `gorm:"type:varchar(255);index" json:"external_id"`
	ContactPerson *string   `gorm:"type:varchar(255)" json:"contact_person"`
	Phone         *string   `gorm:"type:varchar(100)" json:"phone"`
	Email         *string   `gorm:"type:varchar(255)" json:"email"`
	Address       *string   `gorm:"type:text" json:"address"`
	Responsible   *string   `gorm:"type:varchar(255)" json:"responsible"`
	Industry      *string   `gorm:"type:varchar(255)" json:"industry"`
	FunnelStage   *string   `gorm:"type:varchar(100)" json:"funnel_stage"`
	CustomFields  JSONMap   `gorm:"type:jsonb" json:"custom_fields"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relations
	Dialogs []Dialog `gorm:"foreignKey:CompanyID" json:"-"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CSVImportMapping is a saved CSV column mapping for repeated imports.
type CSVImportMapping struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	OwnerType string    `gorm:"type:varchar(50);not null;index" json:"owner_type"`
	OwnerID   string    `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Mapping   JSONMap   `gorm:"type:jsonb;not null" json:"mapping"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *CSVImportMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
