package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/dto"
	apierrors "github.com/voicecheck/voicecheck/internal/errors"
	"github.com/voicecheck/voicecheck/internal/middleware"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/services"
	"github.com/voicecheck/voicecheck/internal/tasks"
	"github.com/voicecheck/voicecheck/internal/utils"
)

// DialogHandler coordinates dialog-related HTTP handlers.
type DialogHandler struct {
	dialogService *services.DialogService
	orgService    *services.OrganizationService
	taskStore     tasks.Store
}

// NewDialogHandler creates a new DialogHandler.
func NewDialogHandler(dialogService *services.DialogService, orgService *services.OrganizationService, taskStore tasks.Store) *DialogHandler {
	return &DialogHandler{
		dialogService: dialogService,
		orgService:    orgService,
		taskStore:     taskStore,
	}
}

// ownerScope resolves where a new dialog lands: the active organization
// when one is selected, the personal workspace otherwise.
func ownerScope(c *gin.Context) (ownerType, ownerID string) {
	userID, _ := middleware.GetUserID(c)
	if orgID, ok := middleware.GetOrgID(c); ok {
		return access.OwnerTypeOrganization, orgID
	}
	return access.OwnerTypeUser, userID
}

// Upload stores an audio file and creates a pending dialog. Processing
// starts when the client calls Transcribe with the returned file ID.
func (h *DialogHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, "Audio file is required")
		return
	}
	defer file.Close()

	userID, _ := middleware.GetUserID(c)
	ownerType, ownerID := ownerScope(c)

	input := services.UploadInput{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		CreatedBy: userID,
		Filename:  header.Filename,
		Size:      header.Size,
		Reader:    file,
	}
	if language := c.PostForm("language"); language != "" {
		input.Language = &language
	}
	if seller := c.PostForm("seller_name"); seller != "" {
		input.SellerName = &seller
	}
	if companyID := c.PostForm("company_id"); companyID != "" {
		input.CompanyID = &companyID
	}

	dialog, err := h.dialogService.Upload(input)
	if err != nil {
		respondDialogError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.UploadResponse{
		FileID: dialog.ID,
		Dialog: dto.ToDialogDTO(*dialog),
	})
}

// Transcribe starts processing for a pending dialog, or restarts it
// after a failure.
func (h *DialogHandler) Transcribe(c *gin.Context) {
	var language *string
	if raw := c.Query("language"); raw != "" {
		language = &raw
	}
	withSpeakers := true
	if raw := c.Query("with_speakers"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid with_speakers")
			return
		}
		withSpeakers = parsed
	}

	taskID, err := h.dialogService.Transcribe(c.Param("id"), language, withSpeakers)
	if err != nil {
		respondDialogError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

// Audio streams the original uploaded recording.
func (h *DialogHandler) Audio(c *gin.Context) {
	path, err := h.dialogService.Audio(c.Param("id"))
	if err != nil {
		respondDialogError(c, err)
		return
	}

	c.File(path)
}

// TaskStatus reports pipeline progress for polling clients.
func (h *DialogHandler) TaskStatus(c *gin.Context) {
	task, ok := h.findReadableTask(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":  task.ID,
		"status":   task.Status,
		"progress": task.Progress,
		"message":  task.Message,
	})
}

// TaskResult returns the final pipeline result once the task finished.
func (h *DialogHandler) TaskResult(c *gin.Context) {
	task, ok := h.findReadableTask(c)
	if !ok {
		return
	}

	if !task.Status.IsTerminal() {
		c.JSON(http.StatusOK, gin.H{
			"task_id":  task.ID,
			"status":   task.Status,
			"progress": task.Progress,
		})
		return
	}

	c.JSON(http.StatusOK, task)
}

// findReadableTask loads the polled task and checks the caller may read
// the dialog behind it.
func (h *DialogHandler) findReadableTask(c *gin.Context) (tasks.Task, bool) {
	task, exists := h.taskStore.Get(c.Param("task_id"))
	if !exists {
		apierrors.NotFound(c, "Task not found")
		return tasks.Task{}, false
	}

	userID, _ := middleware.GetUserID(c)
	dialog, err := h.dialogService.Find(task.DialogID)
	if err != nil {
		apierrors.NotFound(c, "Task not found")
		return tasks.Task{}, false
	}
	roleOf := func(orgID string) (access.Role, bool) {
		return h.orgService.RoleOf(userID, orgID)
	}
	if !access.CanAccessDialog(userID, dialog.OwnerType, dialog.OwnerID, access.PermissionRead, roleOf) {
		apierrors.NotFound(c, "Task not found")
		return tasks.Task{}, false
	}
	return task, true
}

// List returns a filtered page of dialogs visible to the caller.
func (h *DialogHandler) List(c *gin.Context) {
	filter, ok := h.buildFilter(c)
	if !ok {
		return
	}

	dialogs, total, err := h.dialogService.List(filter)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.ToDialogListResponse(dialogs, filter.Page, filter.PageSize, total))
}

// buildFilter assembles the owner scope and query filters for list and
// stats endpoints.
func (h *DialogHandler) buildFilter(c *gin.Context) (repository.DialogFilter, bool) {
	userID, _ := middleware.GetUserID(c)
	params := utils.GetPaginationParams(c)

	filter := repository.DialogFilter{
		UserID:     userID,
		Search:     c.Query("search"),
		SellerName: c.Query("seller_name"),
		Page:       params.Page,
		PageSize:   params.Limit,
	}
	if orgID, ok := middleware.GetOrgID(c); ok {
		filter.OrganizationIDs = []string{orgID}
	}

	if status := c.Query("status"); status != "" {
		s := models.DialogStatus(status)
		if !models.IsValidDialogStatus(s) {
			apierrors.BadRequest(c, "Unknown dialog status")
			return filter, false
		}
		filter.Status = &s
	}
	if raw := c.Query("date_from"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid date_from")
			return filter, false
		}
		filter.DateFrom = &t
	}
	if raw := c.Query("date_to"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid date_to")
			return filter, false
		}
		// An end date without a time covers the whole day.
		if len(raw) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.DateTo = &t
	}
	if raw := c.Query("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || score < 0 || score > 10 {
			apierrors.BadRequest(c, "Invalid min_score")
			return filter, false
		}
		filter.MinScore = &score
	}
	if companyID := c.Query("company_id"); companyID != "" {
		filter.CompanyID = &companyID
	}
	return filter, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// Get returns one dialog with transcription and analysis.
func (h *DialogHandler) Get(c *gin.Context) {
	dialog, err := h.dialogService.Get(c.Param("id"))
	if err != nil {
		respondDialogError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDialogDTO(*dialog))
}

// Timeline returns the merged transcript and key-moment timeline.
func (h *DialogHandler) Timeline(c *gin.Context) {
	entries, err := h.dialogService.Timeline(c.Param("id"))
	if err != nil {
		respondDialogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

// Classify sets the manual outcome of a dialog.
func (h *DialogHandler) Classify(c *gin.Context) {
	type ClassifyRequest struct {
		Status string `json:"status" binding:"required"`
	}

	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dialog, err := h.dialogService.Classify(c.Param("id"), models.DialogStatus(req.Status))
	if err != nil {
		respondDialogError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDialogDTO(*dialog))
}

// Update edits dialog metadata and company linkage.
func (h *DialogHandler) Update(c *gin.Context) {
	type UpdateRequest struct {
		SellerName   *string `json:"seller_name"`
		CompanyID    *string `json:"company_id"`
		ClearCompany bool    `json:"clear_company"`
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dialog, err := h.dialogService.Update(c.Param("id"), services.UpdateDialogInput{
		SellerName:   req.SellerName,
		CompanyID:    req.CompanyID,
		ClearCompany: req.ClearCompany,
	})
	if err != nil {
		respondDialogError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDialogDTO(*dialog))
}

// Delete removes a dialog and its audio file.
func (h *DialogHandler) Delete(c *gin.Context) {
	if err := h.dialogService.Delete(c.Param("id")); err != nil {
		respondDialogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Dialog deleted"})
}

// Sellers lists distinct seller names for filter dropdowns.
func (h *DialogHandler) Sellers(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	var orgIDs []string
	if orgID, ok := middleware.GetOrgID(c); ok {
		orgIDs = []string{orgID}
	}

	sellers, err := h.dialogService.Sellers(userID, orgIDs)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sellers": sellers})
}

// Stats returns the dashboard aggregates for the caller's scope.
func (h *DialogHandler) Stats(c *gin.Context) {
	filter, ok := h.buildFilter(c)
	if !ok {
		return
	}

	stats, err := h.dialogService.Stats(filter)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func respondDialogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDialogNotFound),
		errors.Is(err, services.ErrCompanyNotFound),
		errors.Is(err, services.ErrAudioMissing),
		errors.Is(err, services.ErrTranscriptionMissing):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrDialogProcessing):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrFileTooLarge):
		apierrors.PayloadTooLarge(c, err.Error())
	case errors.Is(err, services.ErrUnsupportedFileType),
		errors.Is(err, services.ErrInvalidDialogStatus):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
