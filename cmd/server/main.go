package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/config"
	"github.com/voicecheck/voicecheck/internal/constants"
	"github.com/voicecheck/voicecheck/internal/database"
	"github.com/voicecheck/voicecheck/internal/handlers"
	"github.com/voicecheck/voicecheck/internal/middleware"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/services"
	"github.com/voicecheck/voicecheck/internal/tasks"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg)
	gin.SetMode(cfg.GinMode)

	if err := database.Connect(cfg); err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	if err := database.AddIndexes(database.GetDB()); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	dialogRepo := repository.NewDialogRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	var aiClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		aiConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			aiConfig.BaseURL = cfg.OpenAIBaseURL
		}
		aiConfig.HTTPClient = &http.Client{Timeout: cfg.AnalysisTimeout}
		aiClient = openai.NewClientWithConfig(aiConfig)
	} else {
		log.Warn("OPENAI_API_KEY not set, analysis will fail")
	}
	if cfg.DeepgramAPIKey == "" {
		log.Warn("DEEPGRAM_API_KEY not set, transcription will fail")
	}

	issuer := services.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := services.NewAuthService(userRepo, orgRepo, sessionRepo, issuer, cfg.MaxSessionsPerUser, log)
	orgService := services.NewOrganizationService(orgRepo, userRepo, dialogRepo, cfg.MaxMembersPerOrganization, log)

	transcriber := services.NewDeepgramTranscriber(
		cfg.DeepgramAPIKey, cfg.DeepgramModel, cfg.DefaultLanguage,
		cfg.DeepgramTimeout, cfg.TranscriptionCacheSize, log)
	labeler := services.NewSpeakerLabeler(aiClient, cfg.AnalysisModel, log)
	analyzer := services.NewOpenAIAnalyzer(aiClient, cfg.AnalysisModel, log)

	taskStore := tasks.NewMemoryStore()
	pipeline := services.NewPipeline(dialogRepo, transcriber, labeler, analyzer, taskStore, log)
	dialogService := services.NewDialogService(
		dialogRepo, companyRepo, pipeline, taskStore,
		cfg.UploadDir, cfg.MaxUploadSize, cfg.AllowedExtensions, log)
	companyService := services.NewCompanyService(companyRepo, log)

	go runCleanupSweeps(authService, orgService)

	authHandler := handlers.NewAuthHandler(authService)
	orgHandler := handlers.NewOrganizationHandler(orgService)
	dialogHandler := handlers.NewDialogHandler(dialogService, orgService, taskStore)
	companyHandler := handlers.NewCompanyHandler(companyService)

	r := gin.Default()

	r.GET("/health", handlers.Health)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/register-by-code", authHandler.RegisterWithCode)
			auth.POST("/login", authHandler.Login)
			auth.POST("/login-username", authHandler.LoginUsername)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.RequireAuth(authService), authHandler.Logout)
			auth.POST("/select-organization", middleware.RequireAuth(authService), authHandler.SelectOrganization)
			auth.GET("/me", middleware.RequireAuth(authService), authHandler.Me)
			auth.PATCH("/me", middleware.RequireAuth(authService), authHandler.UpdateMe)
		}

		orgs := api.Group("/organizations")
		orgs.Use(middleware.RequireAuth(authService))
		{
			orgs.POST("", orgHandler.Create)
			orgs.GET("", orgHandler.ListMine)
			orgs.GET("/by-code/:code", orgHandler.GetByAccessCode)

			orgs.GET("/invitations/:token", orgHandler.PreviewInvitation)
			orgs.POST("/invitations/:token/accept", orgHandler.AcceptInvitation)
			orgs.POST("/invitations/:token/decline", orgHandler.DeclineInvitation)

			scoped := orgs.Group("/:id")
			scoped.Use(middleware.RequireOrganizationAccess(orgService))
			{
				scoped.GET("", orgHandler.Get)
				scoped.GET("/stats", orgHandler.Stats)
				scoped.PUT("", middleware.RequireOrganizationPermission(access.PermissionManage), orgHandler.Update)
				scoped.DELETE("", middleware.RequireOrganizationPermission(access.PermissionManage), orgHandler.Delete)
				scoped.POST("/rotate-code", middleware.RequireOrganizationPermission(access.PermissionManage), orgHandler.RotateAccessCode)

				scoped.GET("/members", orgHandler.ListMembers)
				scoped.POST("/members", middleware.RequireMemberManagement(), orgHandler.CreateMember)
				scoped.PATCH("/members/:user_id/role", middleware.RequireMemberManagement(), orgHandler.ChangeMemberRole)
				scoped.PUT("/members/:user_id/department", middleware.RequireMemberManagement(), orgHandler.AssignDepartment)
				scoped.DELETE("/members/:user_id", orgHandler.RemoveMember)

				scoped.POST("/invitations", middleware.RequireMemberManagement(), orgHandler.Invite)
				scoped.GET("/invitations", middleware.RequireMemberManagement(), orgHandler.ListInvitations)

				scoped.GET("/departments", orgHandler.ListDepartments)
				scoped.POST("/departments", middleware.RequireMemberManagement(), orgHandler.CreateDepartment)
				scoped.PUT("/departments/:dept_id", middleware.RequireMemberManagement(), orgHandler.UpdateDepartment)
				scoped.DELETE("/departments/:dept_id", middleware.RequireMemberManagement(), orgHandler.DeleteDepartment)
			}
		}

		dialogs := api.Group("/dialogs")
		dialogs.Use(middleware.RequireAuth(authService))
		{
			dialogs.POST("/upload", dialogHandler.Upload)
			dialogs.GET("", dialogHandler.List)
			dialogs.GET("/sellers", dialogHandler.Sellers)
			dialogs.GET("/stats", dialogHandler.Stats)
			dialogs.GET("/status/:task_id", dialogHandler.TaskStatus)
			dialogs.GET("/result/:task_id", dialogHandler.TaskResult)

			dialogs.GET("/:id", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionRead), dialogHandler.Get)
			dialogs.GET("/:id/audio", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionRead), dialogHandler.Audio)
			dialogs.GET("/:id/timeline", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionRead), dialogHandler.Timeline)
			dialogs.POST("/:id/transcribe", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionWrite), dialogHandler.Transcribe)
			dialogs.PUT("/:id/status", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionWrite), dialogHandler.Classify)
			dialogs.PATCH("/:id", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionWrite), dialogHandler.Update)
			dialogs.DELETE("/:id", middleware.RequireDialogAccess(dialogService, orgService, access.PermissionDelete), dialogHandler.Delete)
		}

		companies := api.Group("/companies")
		companies.Use(middleware.RequireAuth(authService))
		{
			companies.POST("", companyHandler.Create)
			companies.GET("", companyHandler.List)
			companies.GET("/suggest", companyHandler.Suggest)
			companies.POST("/import", companyHandler.ImportCSV)
			companies.GET("/mappings", companyHandler.ListMappings)
			companies.GET("/:id", companyHandler.Get)
			companies.PUT("/:id", companyHandler.Update)
			companies.DELETE("/:id", companyHandler.Delete)
		}
	}

	port := ":" + cfg.Port
	log.WithField("port", cfg.Port).Info("starting server")
	if err := r.Run(port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// runCleanupSweeps periodically purges stale sessions and overdue
// invitations.
func runCleanupSweeps(authService *services.AuthService, orgService *services.OrganizationService) {
	ticker := time.NewTicker(constants.CleanupSweepInterval)
	defer ticker.Stop()
	for now := range ticker.C {
		authService.SweepSessions(now)
		orgService.SweepInvitations(now)
	}
}
