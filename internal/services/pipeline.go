package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/tasks"
)

// Pipeline runs the transcribe-then-analyze flow for one uploaded dialog,
// reporting progress through the task store.
type Pipeline struct {
	dialogRepo  repository.DialogRepository
	transcriber Transcriber
	labeler     *SpeakerLabeler
	analyzer    Analyzer
	tasks       tasks.Store
	log         *logrus.Logger
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	dialogRepo repository.DialogRepository,
	transcriber Transcriber,
	labeler *SpeakerLabeler,
	analyzer Analyzer,
	taskStore tasks.Store,
	log *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		dialogRepo:  dialogRepo,
		transcriber: transcriber,
		labeler:     labeler,
		analyzer:    analyzer,
		tasks:       taskStore,
		log:         log,
	}
}

// PipelineResult is the task result payload exposed to status polling.
type PipelineResult struct {
	DialogID string              `json:"dialog_id"`
	Status   models.DialogStatus `json:"status"`
	Duration float64             `json:"duration"`
}

// Run executes the pipeline for a dialog. It is meant to run in its own
// goroutine; every outcome lands in the task store and on the dialog row.
// When withSpeakers is false, diarization and role labeling are skipped.
func (p *Pipeline) Run(ctx context.Context, taskID, dialogID string, withSpeakers bool) {
	log := p.log.WithFields(logrus.Fields{"task_id": taskID, "dialog_id": dialogID})

	dialog, err := p.dialogRepo.FindByID(dialogID)
	if err != nil {
		log.WithError(err).Error("dialog vanished before processing")
		p.tasks.Fail(taskID, "dialog not found")
		return
	}

	p.tasks.Update(taskID, tasks.StatusProcessing, 10, "Preparing audio")
	if err := p.dialogRepo.UpdateStatus(dialogID, models.DialogStatusProcessing); err != nil {
		p.fail(taskID, dialogID, log, fmt.Errorf("mark processing: %w", err))
		return
	}

	language := ""
	if dialog.Language != nil {
		language = *dialog.Language
	}

	p.tasks.Update(taskID, tasks.StatusProcessing, 30, "Transcribing audio")
	transcript, err := p.transcriber.Transcribe(ctx, dialog.FilePath, language, withSpeakers)
	if err != nil {
		p.fail(taskID, dialogID, log, fmt.Errorf("transcription: %w", err))
		return
	}

	transcript.Segments = MergeSegments(transcript.Segments)
	if withSpeakers {
		transcript.Segments = p.labeler.AssignRoles(ctx, transcript.Segments)
	}

	transcription := &models.Transcription{
		DialogID:            dialogID,
		Text:                transcript.Text,
		Language:            transcript.Language,
		LanguageProbability: transcript.LanguageProbability,
		Segments:            transcript.Segments,
	}
	if err := p.dialogRepo.CreateTranscription(transcription); err != nil {
		p.fail(taskID, dialogID, log, fmt.Errorf("persist transcription: %w", err))
		return
	}

	dialog.Duration = transcript.Duration
	dialog.Status = models.DialogStatusCompleted
	if err := p.dialogRepo.Update(dialog); err != nil {
		p.fail(taskID, dialogID, log, fmt.Errorf("mark transcribed: %w", err))
		return
	}

	p.tasks.Update(taskID, tasks.StatusProcessing, 70, "Scoring the call")
	analysis, err := p.analyzer.Analyze(ctx, transcript)
	if err != nil {
		p.fail(taskID, dialogID, log, fmt.Errorf("analysis: %w", err))
		return
	}

	row := &models.Analysis{
		DialogID:        dialogID,
		Scores:          analysis.Scores,
		KeyMoments:      analysis.KeyMoments,
		Recommendations: analysis.Recommendations,
		SpeakingTime:    analysis.SpeakingTime,
	}
	if analysis.Summary != "" {
		row.Summary = &analysis.Summary
	}
	if err := p.dialogRepo.CreateAnalysis(row); err != nil {
		p.fail(taskID, dialogID, log, fmt.Errorf("persist analysis: %w", err))
		return
	}

	if err := p.dialogRepo.UpdateStatus(dialogID, analysis.Status); err != nil {
		p.fail(taskID, dialogID, log, fmt.Errorf("mark analyzed: %w", err))
		return
	}

	p.tasks.Complete(taskID, PipelineResult{
		DialogID: dialogID,
		Status:   analysis.Status,
		Duration: transcript.Duration,
	}, "Processing finished")
	log.Info("dialog processed")
}

func (p *Pipeline) fail(taskID, dialogID string, log *logrus.Entry, err error) {
	log.WithError(err).Error("dialog processing failed")
	if updateErr := p.dialogRepo.UpdateStatus(dialogID, models.DialogStatusFailed); updateErr != nil {
		log.WithError(updateErr).Error("failed to mark dialog failed")
	}
	p.tasks.Fail(taskID, err.Error())
}
