package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/constants"
	"github.com/voicecheck/voicecheck/internal/dto"
	apierrors "github.com/voicecheck/voicecheck/internal/errors"
	"github.com/voicecheck/voicecheck/internal/middleware"
	"github.com/voicecheck/voicecheck/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register creates a new account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	type RegisterRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name" binding:"required,max=255"`
		Username string `json:"username" binding:"omitempty,min=3,max=50"`
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, pair, err := h.authService.Register(services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Username: req.Username,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToAuthResponse(*user, *pair))
}

// RegisterWithCode creates a username account joining an organization by
// its access code.
func (h *AuthHandler) RegisterWithCode(c *gin.Context) {
	type RegisterWithCodeRequest struct {
		Username   string `json:"username" binding:"required,min=3,max=50"`
		Password   string `json:"password" binding:"required"`
		FullName   string `json:"full_name" binding:"required,max=255"`
		AccessCode string `json:"access_code" binding:"required"`
	}

	var req RegisterWithCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, pair, err := h.authService.RegisterWithAccessCode(req.Username, req.Password, req.FullName, req.AccessCode)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToAuthResponse(*user, *pair))
}

// Login authenticates by email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, pair, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAuthResponse(*user, *pair))
}

// LoginUsername authenticates by username and password.
func (h *AuthHandler) LoginUsername(c *gin.Context) {
	type LoginUsernameRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, pair, err := h.authService.LoginWithUsername(req.Username, req.Password)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAuthResponse(*user, *pair))
}

// Refresh rotates a refresh token into a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	type RefreshRequest struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	pair, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTokenDTO(*pair))
}

// SelectOrganization switches the caller's active organization and hands
// back tokens scoped to it.
func (h *AuthHandler) SelectOrganization(c *gin.Context) {
	type SelectOrganizationRequest struct {
		OrganizationID string `json:"organization_id"`
	}

	var req SelectOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	jti, _ := middleware.GetAccessJTI(c)

	pair, err := h.authService.SelectOrganization(userID, jti, req.OrganizationID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTokenDTO(*pair))
}

// Logout revokes the caller's session.
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exists := middleware.GetAccessJTI(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	if err := h.authService.Logout(jti); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// Me returns the authenticated user and their memberships.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	user, memberships, err := h.authService.GetProfile(userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	orgs := make([]dto.OrganizationWithRoleDTO, 0, len(memberships))
	for _, member := range memberships {
		if member.Organization.IsActive {
			orgs = append(orgs, dto.ToOrganizationWithRoleDTO(member))
		}
	}

	c.JSON(http.StatusOK, dto.MeResponse{
		User:          dto.ToUserDTO(*user),
		Organizations: orgs,
	})
}

// UpdateMe edits the caller's profile.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	type UpdateMeRequest struct {
		FullName        *string `json:"full_name" binding:"omitempty,max=255"`
		Username        *string `json:"username" binding:"omitempty,min=3,max=50"`
		Password        *string `json:"password"`
		CurrentPassword string  `json:"current_password"`
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	user, err := h.authService.UpdateProfile(userID, services.UpdateProfileInput{
		FullName:        req.FullName,
		Username:        req.Username,
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))
	case errors.Is(err, services.ErrPasswordTooLong):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at most %d characters", constants.MaxPasswordLength))
	case errors.Is(err, services.ErrInvalidEmail):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrUsernameTaken):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrSessionRevoked):
		apierrors.Unauthorized(c, err.Error())
	case errors.Is(err, services.ErrNotAMember):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrOrganizationNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrOrganizationFull):
		apierrors.Conflict(c, err.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
