package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voicecheck/voicecheck/internal/access"
)

type MembershipStatus string

const (
	MembershipStatusPending  MembershipStatus = "pending"
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusDisabled MembershipStatus = "disabled"
	MembershipStatusDeclined MembershipStatus = "declined"
)

// Membership joins a user to an organization with a role.
// At most one membership exists per (user, organization) pair.
type Membership struct {
	ID             string           `gorm:"type:uuid;primarykey" json:"id"`
	UserID         string           `gorm:"type:uuid;not null;index;uniqueIndex:uq_user_organization" json:"user_id"`
	OrganizationID string           `gorm:"type:uuid;not null;index;uniqueIndex:uq_user_organization" json:"organization_id"`
	DepartmentID   *string          `gorm:"type:uuid;index" json:"department_id"`
	Role           access.Role      `gorm:"type:varchar(50);not null;default:'member'" json:"role"`
	Status         MembershipStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	// Relations
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Department   *Department  `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// IsActive reports whether the membership currently grants access.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive
}
