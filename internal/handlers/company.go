package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/dto"
	apierrors "github.com/voicecheck/voicecheck/internal/errors"
	"github.com/voicecheck/voicecheck/internal/middleware"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
	"github.com/voicecheck/voicecheck/internal/services"
	"github.com/voicecheck/voicecheck/internal/utils"
)

// CompanyHandler coordinates CRM company HTTP handlers.
type CompanyHandler struct {
	companyService *services.CompanyService
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(companyService *services.CompanyService) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
	}
}

// companyRequest is the JSON body shared by create and update.
type companyRequest struct {
	Name          string         `json:"name"`
	TaxID         string         `json:"tax_id"`
	ExternalID    string         `json:"external_id"`
	ContactPerson string         `json:"contact_person"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email"`
	Address       string         `json:"address"`
	Responsible   string         `json:"responsible"`
	Industry      string         `json:"industry"`
	FunnelStage   string         `json:"funnel_stage"`
	CustomFields  models.JSONMap `json:"custom_fields"`
}

func (r companyRequest) toInput() services.CompanyInput {
	return services.CompanyInput{
		Name:          r.Name,
		TaxID:         r.TaxID,
		ExternalID:    r.ExternalID,
		ContactPerson: r.ContactPerson,
		Phone:         r.Phone,
		Email:         r.Email,
		Address:       r.Address,
		Responsible:   r.Responsible,
		Industry:      r.Industry,
		FunnelStage:   r.FunnelStage,
		CustomFields:  r.CustomFields,
	}
}

// Create adds a company to the caller's CRM scope.
func (h *CompanyHandler) Create(c *gin.Context) {
	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	if req.Name == "" {
		apierrors.BadRequest(c, "Company name is required")
		return
	}

	userID, _ := middleware.GetUserID(c)
	ownerType, ownerID := ownerScope(c)
	company, err := h.companyService.Create(ownerType, ownerID, userID, req.toInput())
	if err != nil {
		respondCompanyError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToCompanyDTO(*company))
}

// List returns a filtered page of companies.
func (h *CompanyHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	ownerType, ownerID := ownerScope(c)

	companies, total, err := h.companyService.List(repository.CompanyFilter{
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Search:    c.Query("search"),
		Industry:  c.Query("industry"),
		Page:      params.Page,
		PageSize:  params.Limit,
	})
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.ToCompanyListResponse(companies, params.Page, params.Limit, total))
}

// Suggest returns companies matching a query, for linking dialogs.
func (h *CompanyHandler) Suggest(c *gin.Context) {
	ownerType, ownerID := ownerScope(c)
	companies, err := h.companyService.Suggest(ownerType, ownerID, c.Query("q"))
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	suggestions := make([]dto.CompanyDTO, len(companies))
	for i, company := range companies {
		suggestions[i] = dto.ToCompanyDTO(company)
	}
	c.JSON(http.StatusOK, gin.H{"companies": suggestions})
}

// Get returns one company. Callers only see companies of their scope.
func (h *CompanyHandler) Get(c *gin.Context) {
	company, ok := h.findScoped(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.ToCompanyDTO(*company))
}

// Update edits a company.
func (h *CompanyHandler) Update(c *gin.Context) {
	if _, ok := h.findScoped(c); !ok {
		return
	}

	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	company, err := h.companyService.Update(c.Param("id"), req.toInput())
	if err != nil {
		respondCompanyError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCompanyDTO(*company))
}

// Delete removes a company and detaches its dialogs.
func (h *CompanyHandler) Delete(c *gin.Context) {
	if _, ok := h.findScoped(c); !ok {
		return
	}

	if err := h.companyService.Delete(c.Param("id")); err != nil {
		respondCompanyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Company deleted"})
}

// ImportCSV bulk-loads companies from an uploaded CSV file. The column
// mapping comes from the "mapping" form fields or is guessed from the
// header row.
func (h *CompanyHandler) ImportCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, "CSV file is required")
		return
	}
	defer file.Close()

	mapping := map[string]string{}
	if form, err := c.MultipartForm(); err == nil {
		for key, values := range form.Value {
			const prefix = "mapping["
			if len(values) > 0 && len(key) > len(prefix) && key[:len(prefix)] == prefix && key[len(key)-1] == ']' {
				mapping[key[len(prefix):len(key)-1]] = values[0]
			}
		}
	}

	userID, _ := middleware.GetUserID(c)
	ownerType, ownerID := ownerScope(c)
	report, err := h.companyService.ImportCSV(ownerType, ownerID, userID, file, mapping, c.PostForm("mapping_name"))
	if err != nil {
		respondCompanyError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListMappings lists saved CSV column mappings.
func (h *CompanyHandler) ListMappings(c *gin.Context) {
	ownerType, ownerID := ownerScope(c)
	mappings, err := h.companyService.ListMappings(ownerType, ownerID)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"mappings": mappings})
}

// findScoped loads the company in the URL and hides companies from other
// scopes behind a 404.
func (h *CompanyHandler) findScoped(c *gin.Context) (*models.Company, bool) {
	company, err := h.companyService.Get(c.Param("id"))
	if err != nil {
		respondCompanyError(c, err)
		return nil, false
	}
	ownerType, ownerID := ownerScope(c)
	if company.OwnerType != ownerType || company.OwnerID != ownerID {
		apierrors.NotFound(c, "Company not found")
		return nil, false
	}
	return company, true
}

func respondCompanyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCompanyNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrCompanyExists):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrEmptyCSV),
		errors.Is(err, services.ErrCSVNameRequired):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
