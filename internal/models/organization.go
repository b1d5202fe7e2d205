package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Organization struct {
	ID         string    `gorm:"type:uuid;primarykey" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	AccessCode string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"access_code"`
	MaxMembers int       `gorm:"not null;default:100" json:"max_members"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relations
	Memberships []Membership `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
	Departments []Department `gorm:"foreignKey:OrganizationID" json:"departments,omitempty"`
}

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// Department is an organization sub-unit, optionally led by a member.
type Department struct {
	ID             string    `gorm:"type:uuid;primarykey" json:"id"`
	OrganizationID string    `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	HeadUserID     *string   `gorm:"type:uuid;index" json:"head_user_id"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	HeadUser     *User        `gorm:"foreignKey:HeadUserID" json:"head_user,omitempty"`
}

func (d *Department) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
