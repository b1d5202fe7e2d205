package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/dto"
	"github.com/voicecheck/voicecheck/internal/middleware"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/services"
	"github.com/voicecheck/voicecheck/internal/tasks"
)

type fakeTranscriber struct {
	result *services.TranscriptResult
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filePath, language string, withSpeakers bool) (*services.TranscriptResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeAnalyzer struct {
	result *services.AnalysisResult
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, transcript *services.TranscriptResult) (*services.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func fakeTranscript() *services.TranscriptResult {
	return &services.TranscriptResult{
		Text:                "Hello there. Hi.",
		Language:            "en",
		LanguageProbability: 0.98,
		Duration:            42.5,
		Segments: models.SegmentList{
			{Start: 0, End: 2, Text: "Hello there.", Speaker: "SPEAKER_00"},
			{Start: 2.5, End: 4, Text: "Hi.", Speaker: "SPEAKER_01"},
		},
	}
}

func fakeAnalysis() *services.AnalysisResult {
	return &services.AnalysisResult{
		Scores: models.Scores{
			Greeting:          8,
			NeedsDiscovery:    7,
			Presentation:      7,
			ObjectionHandling: 6,
			Closing:           8,
			ActiveListening:   7,
			Empathy:           7,
			Overall:           7.1,
		},
		Status: models.DialogStatusInProgress,
		KeyMoments: models.KeyMomentList{
			{Type: "objection", Time: 2.5, Text: "Price is too high"},
		},
		Recommendations: models.RecommendationList{
			{Text: "Ask more discovery questions"},
		},
		Summary:      "Short intro call.",
		SpeakingTime: models.SpeakingTime{Sales: 2, Customer: 1.5},
	}
}

type dialogTestEnv struct {
	db            *gorm.DB
	authService   *services.AuthService
	orgService    *services.OrganizationService
	dialogService *services.DialogService
	taskStore     tasks.Store
	router        *gin.Engine
}

func setupDialogTestEnv(t *testing.T, transcriber services.Transcriber, analyzer services.Analyzer) dialogTestEnv {
	t.Helper()

	db := newTestDB(t)
	log := newTestLogger()

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	dialogRepo := repository.NewDialogRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	issuer := services.NewTokenIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	authService := services.NewAuthService(userRepo, orgRepo, sessionRepo, issuer, 5, log)
	orgService := services.NewOrganizationService(orgRepo, userRepo, dialogRepo, 50, log)

	taskStore := tasks.NewMemoryStore()
	labeler := services.NewSpeakerLabeler(nil, "", log)
	pipeline := services.NewPipeline(dialogRepo, transcriber, labeler, analyzer, taskStore, log)
	dialogService := services.NewDialogService(
		dialogRepo, companyRepo, pipeline, taskStore,
		t.TempDir(), 10<<20, []string{".mp3", ".wav", ".m4a", ".ogg"}, log,
	)
	handler := NewDialogHandler(dialogService, orgService, taskStore)

	r := gin.New()
	dialogs := r.Group("/api/dialogs")
	dialogs.Use(middleware.RequireAuth(authService))
	{
		dialogs.POST("/upload", handler.Upload)
		dialogs.GET("", handler.List)
		dialogs.GET("/sellers", handler.Sellers)
		dialogs.GET("/stats", handler.Stats)
		dialogs.GET("/status/:task_id", handler.TaskStatus)
		dialogs.GET("/result/:task_id", handler.TaskResult)

		dialogs.GET("/:id", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionRead), handler.Get)
		dialogs.GET("/:id/audio", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionRead), handler.Audio)
		dialogs.GET("/:id/timeline", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionRead), handler.Timeline)
		dialogs.POST("/:id/transcribe", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionWrite), handler.Transcribe)
		dialogs.PUT("/:id/status", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionWrite), handler.Classify)
		dialogs.PATCH("/:id", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionWrite), handler.Update)
		dialogs.DELETE("/:id", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionDelete), handler.Delete)
	}

	return dialogTestEnv{
		db:            db,
		authService:   authService,
		orgService:    orgService,
		dialogService: dialogService,
		taskStore:     taskStore,
		router:        r,
	}
}

func (env dialogTestEnv) registerUser(t *testing.T, email string) (*models.User, string) {
	t.Helper()

	user, pair, err := env.authService.Register(services.RegisterInput{
		Email:    email,
		Password: "supersecret",
		FullName: "Test User",
	})
	require.NoError(t, err)
	return user, pair.AccessToken
}

func (env dialogTestEnv) uploadFile(t *testing.T, token, filename string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake audio bytes"))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/dialogs/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// startTranscription kicks off processing for an uploaded dialog and
// returns the task ID to poll.
func (env dialogTestEnv) startTranscription(t *testing.T, token, dialogID string) string {
	t.Helper()

	w := doJSON(t, env.router, http.MethodPost, "/api/dialogs/"+dialogID+"/transcribe", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TaskID)
	return resp.TaskID
}

// processUpload runs the full upload-transcribe-poll flow.
func (env dialogTestEnv) processUpload(t *testing.T, token string, fields map[string]string) string {
	t.Helper()

	w := env.uploadFile(t, token, "call.mp3", fields)
	require.Equal(t, http.StatusCreated, w.Code)

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))

	taskID := env.startTranscription(t, token, upload.FileID)
	task := env.waitForTask(t, taskID)
	require.Equal(t, tasks.StatusCompleted, task.Status)
	return upload.Dialog.ID
}

func (env dialogTestEnv) waitForTask(t *testing.T, taskID string) tasks.Task {
	t.Helper()

	var task tasks.Task
	require.Eventually(t, func() bool {
		got, ok := env.taskStore.Get(taskID)
		if !ok {
			return false
		}
		task = got
		return task.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond, "pipeline never finished")
	return task
}

func TestDialogHandler_UploadAndProcess(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	w := env.uploadFile(t, token, "call.mp3", map[string]string{"seller_name": "Anna"})
	require.Equal(t, http.StatusCreated, w.Code)

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))
	require.NotEmpty(t, upload.FileID)
	// Uploading alone does not start processing.
	require.Equal(t, models.DialogStatusPending, upload.Dialog.Status)

	taskID := env.startTranscription(t, token, upload.FileID)
	task := env.waitForTask(t, taskID)
	require.Equal(t, tasks.StatusCompleted, task.Status)
	require.Equal(t, 100, task.Progress)

	// Polling endpoints see the finished task.
	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/status/"+taskID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/result/"+taskID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/"+upload.Dialog.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var dialog dto.DialogDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dialog))
	require.Equal(t, models.DialogStatusInProgress, dialog.Status)
	require.Equal(t, 42.5, dialog.Duration)
	require.NotNil(t, dialog.Transcription)
	require.NotNil(t, dialog.Analysis)
	require.Equal(t, 7.1, dialog.Analysis.Scores.Overall)
}

func TestDialogHandler_UploadRejectsUnknownExtension(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	w := env.uploadFile(t, token, "notes.txt", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDialogHandler_TranscriptionFailureMarksDialogFailed(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{err: context.DeadlineExceeded},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	w := env.uploadFile(t, token, "call.mp3", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))

	taskID := env.startTranscription(t, token, upload.FileID)
	task := env.waitForTask(t, taskID)
	require.Equal(t, tasks.StatusFailed, task.Status)

	dialog, err := env.dialogService.Find(upload.Dialog.ID)
	require.NoError(t, err)
	require.Equal(t, models.DialogStatusFailed, dialog.Status)
	require.Nil(t, dialog.Transcription)
}

func TestDialogHandler_RetryAfterFailure(t *testing.T) {
	transcriber := &fakeTranscriber{err: context.DeadlineExceeded}
	env := setupDialogTestEnv(t, transcriber, &fakeAnalyzer{result: fakeAnalysis()})
	_, token := env.registerUser(t, "seller@example.com")

	w := env.uploadFile(t, token, "call.mp3", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))

	taskID := env.startTranscription(t, token, upload.FileID)
	task := env.waitForTask(t, taskID)
	require.Equal(t, tasks.StatusFailed, task.Status)

	// The provider recovers; the user restarts the pipeline.
	transcriber.err = nil
	transcriber.result = fakeTranscript()

	retryID := env.startTranscription(t, token, upload.Dialog.ID)
	require.NotEqual(t, taskID, retryID)

	task = env.waitForTask(t, retryID)
	require.Equal(t, tasks.StatusCompleted, task.Status)

	dialog, err := env.dialogService.Find(upload.Dialog.ID)
	require.NoError(t, err)
	require.Equal(t, models.DialogStatusInProgress, dialog.Status)
}

func TestDialogHandler_TranscribeWithoutSpeakers(t *testing.T) {
	transcript := fakeTranscript()
	transcript.Text = "Hello there."
	transcript.Segments = models.SegmentList{
		{Start: 0, End: 2, Text: "Hello there.", Speaker: "SPEAKER_03"},
	}
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: transcript},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	w := env.uploadFile(t, token, "call.mp3", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))

	w = doJSON(t, env.router, http.MethodPost, "/api/dialogs/"+upload.FileID+"/transcribe?with_speakers=false", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	task := env.waitForTask(t, resp.TaskID)
	require.Equal(t, tasks.StatusCompleted, task.Status)

	// Diarization labels stay raw when speaker mapping is off.
	dialog, err := env.dialogService.Get(upload.Dialog.ID)
	require.NoError(t, err)
	require.NotNil(t, dialog.Transcription)
	require.Equal(t, "SPEAKER_03", dialog.Transcription.Segments[0].Speaker)
}

func TestDialogHandler_TranscribeRejectedWhileProcessing(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	user, token := env.registerUser(t, "seller@example.com")

	dialog := &models.Dialog{
		Filename:  "call.mp3",
		Status:    models.DialogStatusProcessing,
		OwnerType: access.OwnerTypeUser,
		OwnerID:   user.ID,
		CreatedBy: user.ID,
	}
	require.NoError(t, env.db.Create(dialog).Error)

	w := doJSON(t, env.router, http.MethodPost, "/api/dialogs/"+dialog.ID+"/transcribe", token, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDialogHandler_Audio(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	dialogID := env.processUpload(t, token, nil)

	w := doJSON(t, env.router, http.MethodGet, "/api/dialogs/"+dialogID+"/audio", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "fake audio bytes", w.Body.String())
}

func TestDialogHandler_TaskHiddenFromStrangers(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, ownerToken := env.registerUser(t, "seller@example.com")
	_, strangerToken := env.registerUser(t, "stranger@example.com")

	w := env.uploadFile(t, ownerToken, "call.mp3", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))
	taskID := env.startTranscription(t, ownerToken, upload.FileID)
	env.waitForTask(t, taskID)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/status/"+taskID, strangerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/"+upload.Dialog.ID, strangerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDialogHandler_Classify(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	dialogID := env.processUpload(t, token, nil)

	w := doJSON(t, env.router, http.MethodPut, "/api/dialogs/"+dialogID+"/status", token, map[string]string{
		"status": "dealed",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var dialog dto.DialogDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dialog))
	require.Equal(t, models.DialogStatusDealed, dialog.Status)

	// Pipeline states cannot be forced through classification.
	w = doJSON(t, env.router, http.MethodPut, "/api/dialogs/"+dialogID+"/status", token, map[string]string{
		"status": "processing",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDialogHandler_Timeline(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	dialogID := env.processUpload(t, token, nil)

	w := doJSON(t, env.router, http.MethodGet, "/api/dialogs/"+dialogID+"/timeline", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Timeline []services.TimelineEntry `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	// Two spoken turns plus the detected key moment, ordered by time. The
	// moment shares its timestamp with the second turn and sorts after it.
	require.Len(t, response.Timeline, 3)
	require.Equal(t, "segment", response.Timeline[0].Kind)
	require.Equal(t, "segment", response.Timeline[1].Kind)
	require.Equal(t, "moment", response.Timeline[2].Kind)
}

func TestDialogHandler_ListAndStats(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	for i := 0; i < 3; i++ {
		env.processUpload(t, token, map[string]string{"seller_name": "Anna"})
	}

	w := doJSON(t, env.router, http.MethodGet, "/api/dialogs?page=1&limit=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list dto.DialogListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Dialogs, 2)
	require.EqualValues(t, 3, list.TotalCount)
	require.Equal(t, 2, list.TotalPages)
	require.NotNil(t, list.Dialogs[0].OverallScore)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs?min_score=9.5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Empty(t, list.Dialogs)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs?status=bogus", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats services.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.EqualValues(t, 3, stats.TotalDialogs)
	require.EqualValues(t, 3, stats.AnalyzedDialogs)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/sellers", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sellers struct {
		Sellers []string `json:"sellers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sellers))
	require.Equal(t, []string{"Anna"}, sellers.Sellers)
}

func TestDialogHandler_Delete(t *testing.T) {
	env := setupDialogTestEnv(t,
		&fakeTranscriber{result: fakeTranscript()},
		&fakeAnalyzer{result: fakeAnalysis()},
	)
	_, token := env.registerUser(t, "seller@example.com")

	dialogID := env.processUpload(t, token, nil)

	w := doJSON(t, env.router, http.MethodDelete, "/api/dialogs/"+dialogID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/dialogs/"+dialogID, token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
