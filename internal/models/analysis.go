package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Scores holds the fixed sales-rubric category scores (0-10) plus the
// overall score aggregated by the scoring provider.
type Scores struct {
	Greeting          float64 `json:"greeting"`
	NeedsDiscovery    float64 `json:"needs_discovery"`
	Presentation      float64 `json:"presentation"`
	ObjectionHandling float64 `json:"objection_handling"`
	Closing           float64 `json:"closing"`
	ActiveListening   float64 `json:"active_listening"`
	Empathy           float64 `json:"empathy"`
	Overall           float64 `json:"overall"`
}

func (s Scores) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Scores) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Categories returns the per-category values keyed by rubric name.
func (s Scores) Categories() map[string]float64 {
	return map[string]float64{
		"greeting":           s.Greeting,
		"needs_discovery":    s.NeedsDiscovery,
		"presentation":       s.Presentation,
		"objection_handling": s.ObjectionHandling,
		"closing":            s.Closing,
		"active_listening":   s.ActiveListening,
		"empathy":            s.Empathy,
	}
}

// KeyMoment is a notable event detected in the dialog.
type KeyMoment struct {
	Type string  `json:"type"`
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

type KeyMomentList []KeyMoment

func (k KeyMomentList) Value() (driver.Value, error) {
	return json.Marshal(k)
}

func (k *KeyMomentList) Scan(src interface{}) error {
	return scanJSON(src, k)
}

// Recommendation is an improvement suggestion with an optional time range.
type Recommendation struct {
	Text      string    `json:"text"`
	TimeRange []float64 `json:"time_range,omitempty"`
}

type RecommendationList []Recommendation

func (r RecommendationList) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RecommendationList) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// SpeakingTime is the per-role speech duration split in seconds.
type SpeakingTime struct {
	Sales    float64 `json:"sales"`
	Customer float64 `json:"customer"`
}

func (s SpeakingTime) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SpeakingTime) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Analysis is the write-once 1:1 scoring result for a dialog.
// It is persisted all-or-nothing: a failed or malformed provider
// response leaves no partial row.
type Analysis struct {
	ID              string             `gorm:"type:uuid;primarykey" json:"id"`
	DialogID        string             `gorm:"type:uuid;not null;uniqueIndex" json:"dialog_id"`
	Scores          Scores             `gorm:"type:jsonb;not null" json:"scores"`
	// OverallScore duplicates Scores.Overall as a plain column so list
	// filters and dashboard queries stay portable across SQL dialects.
	OverallScore    float64            `gorm:"not null;default:0;index" json:"-"`
	KeyMoments      KeyMomentList      `gorm:"type:jsonb;not null" json:"key_moments"`
	Recommendations RecommendationList `gorm:"type:jsonb;not null" json:"recommendations"`
	Summary         *string            `gorm:"type:text" json:"summary"`
	SpeakingTime    SpeakingTime       `gorm:"type:jsonb;not null" json:"speaking_time"`
	CreatedAt       time.Time          `json:"created_at"`

	// Relations
	Dialog Dialog `gorm:"foreignKey:DialogID" json:"-"`
}

func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.OverallScore = a.Scores.Overall
	return nil
}
