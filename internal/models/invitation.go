package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voicecheck/voicecheck/internal/access"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
	InvitationStatusExpired  InvitationStatus = "expired"
)

// Invitation is a pending offer of membership. The granted role is
// constrained to admin/member/viewer; ownership is never offered.
type Invitation struct {
	ID             string           `gorm:"type:uuid;primarykey" json:"id"`
	OrganizationID string           `gorm:"type:uuid;not null;index" json:"organization_id"`
	Email          string           `gorm:"type:varchar(255);not null;index" json:"email"`
	Role           access.Role      `gorm:"type:varchar(50);not null" json:"role"`
	Token          string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	InvitedBy      string           `gorm:"type:uuid;not null" json:"invited_by"`
	Status         InvitationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpiresAt      time.Time        `gorm:"not null" json:"expires_at"`
	ResolvedAt     *time.Time       `json:"resolved_at"`
	CreatedAt      time.Time        `json:"created_at"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Inviter      User         `gorm:"foreignKey:InvitedBy" json:"inviter,omitempty"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether the invitation can no longer be accepted.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
