package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/tasks"
)

var (
	ErrDialogNotFound       = errors.New("dialog not found")
	ErrFileTooLarge         = errors.New("file exceeds the upload limit")
	ErrUnsupportedFileType  = errors.New("unsupported audio format")
	ErrInvalidDialogStatus  = errors.New("invalid dialog status")
	ErrCompanyNotFound      = errors.New("company not found")
	ErrTranscriptionMissing = errors.New("dialog has no transcription yet")
	ErrDialogProcessing     = errors.New("dialog is already being processed")
	ErrAudioMissing         = errors.New("audio file not found")
)

// DialogService handles dialog uploads, browsing and classification.
type DialogService struct {
	dialogRepo  repository.DialogRepository
	companyRepo repository.CompanyRepository
	pipeline    *Pipeline
	tasks       tasks.Store
	uploadDir   string
	maxSize     int64
	extensions  map[string]bool
	log         *logrus.Logger
}

// NewDialogService creates a new DialogService.
func NewDialogService(
	dialogRepo repository.DialogRepository,
	companyRepo repository.CompanyRepository,
	pipeline *Pipeline,
	taskStore tasks.Store,
	uploadDir string,
	maxSize int64,
	allowedExtensions []string,
	log *logrus.Logger,
) *DialogService {
	extensions := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		extensions[strings.ToLower(ext)] = true
	}
	return &DialogService{
		dialogRepo:  dialogRepo,
		companyRepo: companyRepo,
		pipeline:    pipeline,
		tasks:       taskStore,
		uploadDir:   uploadDir,
		maxSize:     maxSize,
		extensions:  extensions,
		log:         log,
	}
}

// UploadInput carries a new audio upload.
type UploadInput struct {
	OwnerType  string
	OwnerID    string
	CreatedBy  string
	Filename   string
	Size       int64
	Language   *string
	SellerName *string
	CompanyID  *string
	Reader     io.Reader
}

// Upload validates and stores an audio file and creates the dialog row.
// The dialog stays pending until the client starts transcription.
func (s *DialogService) Upload(input UploadInput) (*models.Dialog, error) {
	ext := strings.ToLower(filepath.Ext(input.Filename))
	if !s.extensions[ext] {
		return nil, ErrUnsupportedFileType
	}
	if input.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}
	if input.CompanyID != nil {
		if _, err := s.companyRepo.FindByID(*input.CompanyID); err != nil {
			return nil, ErrCompanyNotFound
		}
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	fileID := uuid.NewString()
	path := filepath.Join(s.uploadDir, fileID+ext)
	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	written, err := io.Copy(dst, io.LimitReader(input.Reader, s.maxSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrFileTooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("save upload: %w", err)
	}

	dialog := &models.Dialog{
		Filename:   input.Filename,
		FilePath:   path,
		Status:     models.DialogStatusPending,
		Language:   input.Language,
		SellerName: input.SellerName,
		OwnerType:  input.OwnerType,
		OwnerID:    input.OwnerID,
		CreatedBy:  input.CreatedBy,
		CompanyID:  input.CompanyID,
	}
	if err := s.dialogRepo.Create(dialog); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("create dialog: %w", err)
	}

	return dialog, nil
}

// Transcribe starts the processing pipeline for a pending dialog, or
// restarts it after a failure. A running pipeline cannot be restarted or
// aborted, only observed. It returns the task ID to poll.
func (s *DialogService) Transcribe(dialogID string, language *string, withSpeakers bool) (string, error) {
	dialog, err := s.dialogRepo.FindByID(dialogID)
	if err != nil {
		return "", ErrDialogNotFound
	}
	if dialog.Status == models.DialogStatusProcessing {
		return "", ErrDialogProcessing
	}
	if language != nil {
		dialog.Language = language
	}
	dialog.Status = models.DialogStatusPending
	if err := s.dialogRepo.Update(dialog); err != nil {
		return "", fmt.Errorf("update dialog: %w", err)
	}

	fileID := strings.TrimSuffix(filepath.Base(dialog.FilePath), filepath.Ext(dialog.FilePath))
	taskID := uuid.NewString()
	s.tasks.Create(tasks.Task{
		ID:        taskID,
		DialogID:  dialog.ID,
		FileID:    fileID,
		Status:    tasks.StatusPending,
		Message:   "Queued for processing",
		CreatedAt: time.Now(),
	})

	// The request returns immediately; polling follows the task.
	go s.pipeline.Run(context.Background(), taskID, dialog.ID, withSpeakers)

	return taskID, nil
}

// Audio resolves the stored recording path for streaming.
func (s *DialogService) Audio(dialogID string) (string, error) {
	dialog, err := s.dialogRepo.FindByID(dialogID)
	if err != nil {
		return "", ErrDialogNotFound
	}
	if dialog.FilePath == "" {
		return "", ErrAudioMissing
	}
	if _, err := os.Stat(dialog.FilePath); err != nil {
		return "", ErrAudioMissing
	}
	return dialog.FilePath, nil
}

// Get loads a dialog with its transcription, analysis and company.
func (s *DialogService) Get(dialogID string) (*models.Dialog, error) {
	dialog, err := s.dialogRepo.FindByID(dialogID, "Transcription", "Analysis", "Company")
	if err != nil {
		return nil, ErrDialogNotFound
	}
	return dialog, nil
}

// Find loads a dialog without relations, for access checks.
func (s *DialogService) Find(dialogID string) (*models.Dialog, error) {
	dialog, err := s.dialogRepo.FindByID(dialogID)
	if err != nil {
		return nil, ErrDialogNotFound
	}
	return dialog, nil
}

// List returns a page of dialogs in the caller's scope.
func (s *DialogService) List(filter repository.DialogFilter) ([]models.Dialog, int64, error) {
	return s.dialogRepo.List(filter)
}

// Classify sets a dialog's outcome. Only the manual classification
// statuses are accepted; pipeline states cannot be forced from outside.
func (s *DialogService) Classify(dialogID string, status models.DialogStatus) (*models.Dialog, error) {
	if !models.IsClassificationStatus(status) {
		return nil, ErrInvalidDialogStatus
	}
	dialog, err := s.dialogRepo.FindByID(dialogID)
	if err != nil {
		return nil, ErrDialogNotFound
	}
	dialog.Status = status
	if err := s.dialogRepo.Update(dialog); err != nil {
		return nil, fmt.Errorf("update dialog: %w", err)
	}
	return dialog, nil
}

// UpdateDialogInput carries editable dialog metadata.
type UpdateDialogInput struct {
	SellerName *string
	CompanyID  *string
	// ClearCompany detaches the dialog from its company.
	ClearCompany bool
}

// Update edits dialog metadata and company linkage.
func (s *DialogService) Update(dialogID string, input UpdateDialogInput) (*models.Dialog, error) {
	dialog, err := s.dialogRepo.FindByID(dialogID)
	if err != nil {
		return nil, ErrDialogNotFound
	}
	if input.SellerName != nil {
		dialog.SellerName = input.SellerName
	}
	if input.ClearCompany {
		dialog.CompanyID = nil
	} else if input.CompanyID != nil {
		if _, err := s.companyRepo.FindByID(*input.CompanyID); err != nil {
			return nil, ErrCompanyNotFound
		}
		dialog.CompanyID = input.CompanyID
	}
	if err := s.dialogRepo.Update(dialog); err != nil {
		return nil, fmt.Errorf("update dialog: %w", err)
	}
	return dialog, nil
}

// Delete removes a dialog, its derived rows and the audio file.
func (s *DialogService) Delete(dialogID string) error {
	dialog, err := s.dialogRepo.FindByID(dialogID)
	if err != nil {
		return ErrDialogNotFound
	}
	if err := s.dialogRepo.Delete(dialogID); err != nil {
		return fmt.Errorf("delete dialog: %w", err)
	}
	if dialog.FilePath != "" {
		if err := os.Remove(dialog.FilePath); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField("path", dialog.FilePath).Warn("failed to remove audio file")
		}
	}
	return nil
}

// Sellers lists distinct seller names in the caller's scope.
func (s *DialogService) Sellers(userID string, organizationIDs []string) ([]string, error) {
	return s.dialogRepo.ListSellers(userID, organizationIDs)
}

// TimelineEntry is one item of the merged dialog timeline: a spoken turn
// or a detected key moment.
type TimelineEntry struct {
	Kind    string  `json:"kind"`
	Time    float64 `json:"time"`
	End     float64 `json:"end,omitempty"`
	Speaker string  `json:"speaker,omitempty"`
	Type    string  `json:"type,omitempty"`
	Text    string  `json:"text"`
}

// Timeline merges transcript turns and analysis key moments into one
// time-ordered view.
func (s *DialogService) Timeline(dialogID string) ([]TimelineEntry, error) {
	transcription, err := s.dialogRepo.FindTranscription(dialogID)
	if err != nil {
		return nil, ErrTranscriptionMissing
	}

	entries := make([]TimelineEntry, 0, len(transcription.Segments))
	for _, seg := range transcription.Segments {
		entries = append(entries, TimelineEntry{
			Kind:    "segment",
			Time:    seg.Start,
			End:     seg.End,
			Speaker: seg.Speaker,
			Text:    seg.Text,
		})
	}

	if analysis, err := s.dialogRepo.FindAnalysis(dialogID); err == nil {
		for _, moment := range analysis.KeyMoments {
			entries = append(entries, TimelineEntry{
				Kind: "moment",
				Time: moment.Time,
				Type: moment.Type,
				Text: moment.Text,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time < entries[j].Time
	})
	return entries, nil
}

// ScorePoint is one day of the scoring dynamics series.
type ScorePoint struct {
	Date     string  `json:"date"`
	AvgScore float64 `json:"avg_score"`
	Count    int     `json:"count"`
}

// ObjectionCount is one recurring objection with its frequency.
type ObjectionCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// DashboardStats is the aggregate view behind the dashboard page.
type DashboardStats struct {
	TotalDialogs      int64              `json:"total_dialogs"`
	AnalyzedDialogs   int64              `json:"analyzed_dialogs"`
	DealRate          float64            `json:"deal_rate"`
	AvgCategoryScores map[string]float64 `json:"avg_category_scores"`
	AvgOverallScore   float64            `json:"avg_overall_score"`
	ScoringDynamics   []ScorePoint       `json:"scoring_dynamics"`
	CommonObjections  []ObjectionCount   `json:"common_objections"`
}

// Stats aggregates dashboard numbers over the filtered scope. Deal rate
// counts dealed dialogs against all classified ones.
func (s *DialogService) Stats(filter repository.DialogFilter) (*DashboardStats, error) {
	stats := &DashboardStats{
		AvgCategoryScores: map[string]float64{},
		ScoringDynamics:   []ScorePoint{},
		CommonObjections:  []ObjectionCount{},
	}

	var err error
	if stats.TotalDialogs, err = s.dialogRepo.CountByStatus(filter, nil); err != nil {
		return nil, fmt.Errorf("count dialogs: %w", err)
	}

	dealed, err := s.dialogRepo.CountByStatus(filter, []models.DialogStatus{models.DialogStatusDealed})
	if err != nil {
		return nil, fmt.Errorf("count dealed: %w", err)
	}
	classified, err := s.dialogRepo.CountByStatus(filter, []models.DialogStatus{
		models.DialogStatusDealed,
		models.DialogStatusRejected,
		models.DialogStatusInProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("count classified: %w", err)
	}
	if classified > 0 {
		stats.DealRate = float64(dealed) / float64(classified)
	}

	rows, err := s.dialogRepo.ListAnalysisRows(filter)
	if err != nil {
		return nil, fmt.Errorf("load analyses: %w", err)
	}
	stats.AnalyzedDialogs = int64(len(rows))
	if len(rows) == 0 {
		return stats, nil
	}

	categorySums := map[string]float64{}
	var overallSum float64
	daily := map[string]*ScorePoint{}
	objections := map[string]int{}

	for _, row := range rows {
		for name, value := range row.Scores.Categories() {
			categorySums[name] += value
		}
		overallSum += row.Scores.Overall

		day := row.CreatedAt.Format("2006-01-02")
		point, ok := daily[day]
		if !ok {
			point = &ScorePoint{Date: day}
			daily[day] = point
		}
		point.AvgScore += row.Scores.Overall
		point.Count++

		for _, moment := range row.KeyMoments {
			if moment.Type == "objection" && moment.Text != "" {
				objections[moment.Text]++
			}
		}
	}

	n := float64(len(rows))
	for name, sum := range categorySums {
		stats.AvgCategoryScores[name] = sum / n
	}
	stats.AvgOverallScore = overallSum / n

	for _, point := range daily {
		point.AvgScore /= float64(point.Count)
		stats.ScoringDynamics = append(stats.ScoringDynamics, *point)
	}
	sort.Slice(stats.ScoringDynamics, func(i, j int) bool {
		return stats.ScoringDynamics[i].Date < stats.ScoringDynamics[j].Date
	})

	for text, count := range objections {
		stats.CommonObjections = append(stats.CommonObjections, ObjectionCount{Text: text, Count: count})
	}
	sort.Slice(stats.CommonObjections, func(i, j int) bool {
		if stats.CommonObjections[i].Count != stats.CommonObjections[j].Count {
			return stats.CommonObjections[i].Count > stats.CommonObjections[j].Count
		}
		return stats.CommonObjections[i].Text < stats.CommonObjections[j].Text
	})
	if len(stats.CommonObjections) > 10 {
		stats.CommonObjections = stats.CommonObjections[:10]
	}

	return stats, nil
}
