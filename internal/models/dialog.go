package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DialogStatus string

const (
	DialogStatusPending    DialogStatus = "pending"
	DialogStatusProcessing DialogStatus = "processing"
	DialogStatusCompleted  DialogStatus = "completed"
	DialogStatusDealed     DialogStatus = "dealed"
	DialogStatusInProgress DialogStatus = "in_progress"
	DialogStatusRejected   DialogStatus = "rejected"
	DialogStatusFailed     DialogStatus = "failed"
)

// IsValidDialogStatus reports whether s names a known status.
func IsValidDialogStatus(s DialogStatus) bool {
	switch s {
	case DialogStatusPending, DialogStatusProcessing, DialogStatusCompleted,
		DialogStatusDealed, DialogStatusInProgress, DialogStatusRejected,
		DialogStatusFailed:
		return true
	}
	return false
}

// ClassificationStatuses are the user-assignable deal outcomes.
func ClassificationStatuses() []DialogStatus {
	return []DialogStatus{DialogStatusDealed, DialogStatusInProgress, DialogStatusRejected}
}

// IsClassificationStatus reports whether s is a user-assignable outcome.
func IsClassificationStatus(s DialogStatus) bool {
	for _, v := range ClassificationStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Dialog is the central record for one uploaded call recording.
// Every dialog has exactly one owner: a user or an organization.
type Dialog struct {
	ID         string       `gorm:"type:uuid;primarykey" json:"id"`
	Filename   string       `gorm:"type:varchar(255);not null;index" json:"filename"`
	Duration   float64      `gorm:"not null;default:0" json:"duration"`
	FilePath   string       `gorm:"type:varchar(512);not null" json:"-"`
	Status     DialogStatus `gorm:"type:varchar(50);not null;default:'pending';index" json:"status"`
	Language   *string      `gorm:"type:varchar(10)" json:"language"`
	SellerName *string      `gorm:"type:varchar(255);index" json:"seller_name"`
	OwnerType  string       `gorm:"type:varchar(50);not null;index" json:"owner_type"`
	OwnerID    string       `gorm:"type:uuid;not null;index" json:"owner_id"`
	CreatedBy  string       `gorm:"type:uuid;not null;index" json:"created_by"`
	CompanyID  *string      `gorm:"type:uuid;index" json:"company_id"`
	CreatedAt  time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`

	// Relations
	Transcription *Transcription `gorm:"foreignKey:DialogID" json:"transcription,omitempty"`
	Analysis      *Analysis      `gorm:"foreignKey:DialogID" json:"analysis,omitempty"`
	Company       *Company       `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

func (d *Dialog) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
