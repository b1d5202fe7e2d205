package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session tracks an issued refresh token for revocation and rotation.
type Session struct {
	ID              string     `gorm:"type:uuid;primarykey" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	AccessJTI       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	RefreshJTI      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	OrganizationID  *string    `gorm:"type:uuid;index" json:"organization_id"`
	ExpiresAt       time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt       *time.Time `json:"revoked_at"`
	CreatedAt       time.Time  `json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsValid reports whether the session is unrevoked and unexpired.
func (s *Session) IsValid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
