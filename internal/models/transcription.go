package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Speaker labels used in diarized segments
const (
	SpeakerSeller   = "SPEAKER_00"
	SpeakerCustomer = "SPEAKER_01"
)

// Segment is one speaker-labeled span of transcribed speech.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

// SegmentList is stored as a JSONB array column.
type SegmentList []Segment

func (s SegmentList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SegmentList) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Transcription is the write-once 1:1 transcript of a dialog.
type Transcription struct {
	ID                  string      `gorm:"type:uuid;primarykey" json:"id"`
	DialogID            string      `gorm:"type:uuid;not null;uniqueIndex" json:"dialog_id"`
	Text                string      `gorm:"type:text;not null" json:"text"`
	Language            string      `gorm:"type:varchar(10);not null" json:"language"`
	LanguageProbability float64     `json:"language_probability"`
	Segments            SegmentList `gorm:"type:jsonb;not null" json:"segments"`
	CreatedAt           time.Time   `json:"created_at"`

	// Relations
	Dialog Dialog `gorm:"foreignKey:DialogID" json:"-"`
}

func (t *Transcription) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
