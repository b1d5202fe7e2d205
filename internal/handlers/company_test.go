package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/voicecheck/voicecheck/internal/dto"
	"github.com/voicecheck/voicecheck/internal/middleware"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/services"
)

type companyTestEnv struct {
	authService *services.AuthService
	router      *gin.Engine
}

func setupCompanyTestEnv(t *testing.T) companyTestEnv {
	t.Helper()

	db := newTestDB(t)
	log := newTestLogger()

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	issuer := services.NewTokenIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	authService := services.NewAuthService(userRepo, orgRepo, sessionRepo, issuer, 5, log)
	companyService := services.NewCompanyService(companyRepo, log)
	handler := NewCompanyHandler(companyService)

	r := gin.New()
	companies := r.Group("/api/companies")
	companies.Use(middleware.RequireAuth(authService))
	{
		companies.POST("", handler.Create)
		companies.GET("", handler.List)
		companies.GET("/suggest", handler.Suggest)
		companies.POST("/import", handler.ImportCSV)
		companies.GET("/mappings", handler.ListMappings)
		companies.GET("/:id", handler.Get)
		companies.PUT("/:id", handler.Update)
		companies.DELETE("/:id", handler.Delete)
	}

	return companyTestEnv{
		authService: authService,
		router:      r,
	}
}

func (env companyTestEnv) registerUser(t *testing.T, email string) string {
	t.Helper()

	_, pair, err := env.authService.Register(services.RegisterInput{
		Email:    email,
		Password: "supersecret",
		FullName: "Test User",
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func TestCompanyHandler_CreateAndGet(t *testing.T) {
	env := setupCompanyTestEnv(t)
	token := env.registerUser(t, "seller@example.com")

	w := doJSON(t, env.router, http.MethodPost, "/api/companies", token, map[string]string{
		"name":   "Acme LLC",
		"tax_id": "7701234567",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var company dto.CompanyDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &company))
	require.Equal(t, "Acme LLC", company.Name)

	w = doJSON(t, env.router, http.MethodGet, "/api/companies/"+company.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodPost, "/api/companies", token, map[string]string{
		"name": "Acme LLC",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCompanyHandler_ScopeIsolation(t *testing.T) {
	env := setupCompanyTestEnv(t)
	ownerToken := env.registerUser(t, "owner@example.com")
	strangerToken := env.registerUser(t, "stranger@example.com")

	w := doJSON(t, env.router, http.MethodPost, "/api/companies", ownerToken, map[string]string{
		"name": "Acme LLC",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var company dto.CompanyDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &company))

	// Companies of other workspaces do not exist for the caller.
	w = doJSON(t, env.router, http.MethodGet, "/api/companies/"+company.ID, strangerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/companies", strangerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list dto.CompanyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Empty(t, list.Companies)
}

func TestCompanyHandler_ImportCSVWithMapping(t *testing.T) {
	env := setupCompanyTestEnv(t)
	token := env.registerUser(t, "seller@example.com")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "companies.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Фирма,Номер\nAcme LLC,7701234567\nGlobex,7707654321\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("mapping[Фирма]", "name"))
	require.NoError(t, mw.WriteField("mapping[Номер]", "tax_id"))
	require.NoError(t, mw.WriteField("mapping_name", "custom import"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/companies/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var report services.ImportReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, 2, report.Created)
	require.Equal(t, "name", report.Mapping["Фирма"])

	// The mapping was saved for reuse.
	w2 := doJSON(t, env.router, http.MethodGet, "/api/companies/mappings", token, nil)
	require.Equal(t, http.StatusOK, w2.Code)

	var mappings struct {
		Mappings []models.CSVImportMapping `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &mappings))
	require.Len(t, mappings.Mappings, 1)
	require.Equal(t, "custom import", mappings.Mappings[0].Name)
}
