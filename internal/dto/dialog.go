package dto

import (
	"time"

	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/utils"
)

// TranscriptionDTO represents a transcription in API responses
type TranscriptionDTO struct {
	Text                string             `json:"text"`
	Language            string             `json:"language"`
	LanguageProbability float64            `json:"language_probability"`
	Segments            models.SegmentList `json:"segments"`
}

// AnalysisDTO represents a scoring result in API responses
type AnalysisDTO struct {
	Scores          models.Scores             `json:"scores"`
	KeyMoments      models.KeyMomentList      `json:"key_moments"`
	Recommendations models.RecommendationList `json:"recommendations"`
	Summary         *string                   `json:"summary,omitempty"`
	SpeakingTime    models.SpeakingTime       `json:"speaking_time"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// DialogDTO represents a dialog with its derived data
type DialogDTO struct {
	ID            string              `json:"id"`
	Filename      string              `json:"filename"`
	Duration      float64             `json:"duration"`
	Status        models.DialogStatus `json:"status"`
	Language      *string             `json:"language,omitempty"`
	SellerName    *string             `json:"seller_name,omitempty"`
	OwnerType     string              `json:"owner_type"`
	OwnerID       string              `json:"owner_id"`
	CreatedBy     string              `json:"created_by"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Company       *CompanyDTO         `json:"company,omitempty"`
	Transcription *TranscriptionDTO   `json:"transcription,omitempty"`
	Analysis      *AnalysisDTO        `json:"analysis,omitempty"`
}

// DialogListItemDTO represents a dialog in list responses (minimal data)
type DialogListItemDTO struct {
	ID           string              `json:"id"`
	Filename     string              `json:"filename"`
	Duration     float64             `json:"duration"`
	Status       models.DialogStatus `json:"status"`
	SellerName   *string             `json:"seller_name,omitempty"`
	OverallScore *float64            `json:"overall_score,omitempty"`
	CompanyName  *string             `json:"company_name,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// DialogListResponse represents a paginated list of dialogs
type DialogListResponse struct {
	Dialogs    []DialogListItemDTO `json:"dialogs"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalCount int64               `json:"total_count"`
	TotalPages int                 `json:"total_pages"`
}

// UploadResponse is returned right after an upload is stored. The file
// ID is passed to the transcribe call to start processing.
type UploadResponse struct {
	FileID string    `json:"file_id"`
	Dialog DialogDTO `json:"dialog"`
}

// ToTranscriptionDTO converts a transcription to TranscriptionDTO
func ToTranscriptionDTO(t models.Transcription) TranscriptionDTO {
	return TranscriptionDTO{
		Text:                t.Text,
		Language:            t.Language,
		LanguageProbability: t.LanguageProbability,
		Segments:            t.Segments,
	}
}

// ToAnalysisDTO converts an analysis to AnalysisDTO
func ToAnalysisDTO(a models.Analysis) AnalysisDTO {
	return AnalysisDTO{
		Scores:          a.Scores,
		KeyMoments:      a.KeyMoments,
		Recommendations: a.Recommendations,
		Summary:         a.Summary,
		SpeakingTime:    a.SpeakingTime,
		CreatedAt:       a.CreatedAt,
	}
}

// ToDialogDTO converts a Dialog model to DialogDTO
func ToDialogDTO(dialog models.Dialog) DialogDTO {
	dto := DialogDTO{
		ID:         dialog.ID,
		Filename:   dialog.Filename,
		Duration:   dialog.Duration,
		Status:     dialog.Status,
		Language:   dialog.Language,
		SellerName: dialog.SellerName,
		OwnerType:  dialog.OwnerType,
		OwnerID:    dialog.OwnerID,
		CreatedBy:  dialog.CreatedBy,
		CreatedAt:  dialog.CreatedAt,
		UpdatedAt:  dialog.UpdatedAt,
	}

	// Include relations if preloaded
	if dialog.Company != nil {
		company := ToCompanyDTO(*dialog.Company)
		dto.Company = &company
	}
	if dialog.Transcription != nil {
		transcription := ToTranscriptionDTO(*dialog.Transcription)
		dto.Transcription = &transcription
	}
	if dialog.Analysis != nil {
		analysis := ToAnalysisDTO(*dialog.Analysis)
		dto.Analysis = &analysis
	}
	return dto
}

// ToDialogListItemDTO converts a dialog to its list representation
func ToDialogListItemDTO(dialog models.Dialog) DialogListItemDTO {
	item := DialogListItemDTO{
		ID:         dialog.ID,
		Filename:   dialog.Filename,
		Duration:   dialog.Duration,
		Status:     dialog.Status,
		SellerName: dialog.SellerName,
		CreatedAt:  dialog.CreatedAt,
	}
	if dialog.Analysis != nil {
		score := dialog.Analysis.Scores.Overall
		item.OverallScore = &score
	}
	if dialog.Company != nil {
		name := dialog.Company.Name
		item.CompanyName = &name
	}
	return item
}

// ToDialogListResponse builds a paginated dialog list response
func ToDialogListResponse(dialogs []models.Dialog, page, pageSize int, total int64) DialogListResponse {
	items := make([]DialogListItemDTO, len(dialogs))
	for i, dialog := range dialogs {
		items[i] = ToDialogListItemDTO(dialog)
	}
	return DialogListResponse{
		Dialogs:    items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: utils.TotalPages(total, pageSize),
	}
}
