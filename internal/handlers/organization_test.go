package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
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
)

type orgTestEnv struct {
	db          *gorm.DB
	authService *services.AuthService
	orgService  *services.OrganizationService
	router      *gin.Engine
}

func setupOrgTestEnv(t *testing.T) orgTestEnv {
	t.Helper()

	db := newTestDB(t)
	log := newTestLogger()

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	dialogRepo := repository.NewDialogRepository(db)

	issuer := services.NewTokenIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	authService := services.NewAuthService(userRepo, orgRepo, sessionRepo, issuer, 5, log)
	orgService := services.NewOrganizationService(orgRepo, userRepo, dialogRepo, 50, log)
	handler := NewOrganizationHandler(orgService)

	r := gin.New()
	orgs := r.Group("/api/organizations")
	orgs.Use(middleware.RequireAuth(authService))
	{
		orgs.POST("", handler.Create)
		orgs.GET("", handler.ListMine)
		orgs.GET("/by-code/:code", handler.GetByAccessCode)

		orgs.GET("/invitations/:token", handler.PreviewInvitation)
		orgs.POST("/invitations/:token/accept", handler.AcceptInvitation)
		orgs.POST("/invitations/:token/decline", handler.DeclineInvitation)

		scoped := orgs.Group("/:id")
		scoped.Use(middleware.RequireOrganizationAccess(orgService))
		{
			scoped.GET("", handler.Get)
			scoped.GET("/stats", handler.Stats)
			scoped.PUT("", middleware.RequireOrganizationPermission(access.PermissionManage), handler.Update)

			scoped.GET("/members", handler.ListMembers)
			scoped.POST("/members", middleware.RequireMemberManagement(), handler.CreateMember)
			scoped.PATCH("/members/:user_id/role", middleware.RequireMemberManagement(), handler.ChangeMemberRole)
			scoped.DELETE("/members/:user_id", handler.RemoveMember)

			scoped.POST("/invitations", middleware.RequireMemberManagement(), handler.Invite)

			scoped.GET("/departments", handler.ListDepartments)
			scoped.POST("/departments", middleware.RequireMemberManagement(), handler.CreateDepartment)
		}
	}

	return orgTestEnv{
		db:          db,
		authService: authService,
		orgService:  orgService,
		router:      r,
	}
}

func (env orgTestEnv) registerUser(t *testing.T, email string) (*models.User, string) {
	t.Helper()

	user, pair, err := env.authService.Register(services.RegisterInput{
		Email:    email,
		Password: "supersecret",
		FullName: "Test User",
	})
	require.NoError(t, err)
	return user, pair.AccessToken
}

func TestOrganizationHandler_InviteAndAccept(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, ownerToken := env.registerUser(t, "owner@example.com")
	_, inviteeToken := env.registerUser(t, "seller@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/invitations", ownerToken, map[string]string{
		"email": "seller@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var inv dto.InvitationDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	require.NotEmpty(t, inv.Token)

	w = doJSON(t, env.router, http.MethodGet, "/api/organizations/invitations/"+inv.Token, inviteeToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodPost, "/api/organizations/invitations/"+inv.Token+"/accept", inviteeToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	members, err := env.orgService.ListMembers(org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	// A resolved invitation cannot be accepted twice.
	w = doJSON(t, env.router, http.MethodPost, "/api/organizations/invitations/"+inv.Token+"/accept", inviteeToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestOrganizationHandler_AcceptReactivatesDisabledMembership(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, ownerToken := env.registerUser(t, "owner@example.com")
	seller, sellerToken := env.registerUser(t, "seller@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&models.Membership{
		UserID:         seller.ID,
		OrganizationID: org.ID,
		Role:           access.RoleViewer,
		Status:         models.MembershipStatusDisabled,
	}).Error)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/invitations", ownerToken, map[string]string{
		"email": "seller@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var inv dto.InvitationDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))

	// Accepting flips the old row back to active instead of inserting a
	// duplicate pair.
	w = doJSON(t, env.router, http.MethodPost, "/api/organizations/invitations/"+inv.Token+"/accept", sellerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	member, err := env.orgService.GetMember(org.ID, seller.ID)
	require.NoError(t, err)
	require.Equal(t, access.RoleMember, member.Role)
	require.Equal(t, models.MembershipStatusActive, member.Status)

	var rows int64
	require.NoError(t, env.db.Model(&models.Membership{}).
		Where("organization_id = ? AND user_id = ?", org.ID, seller.ID).
		Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestMembershipUniquePerPair(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, _ := env.registerUser(t, "owner@example.com")
	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	// The owner row already exists; a second row for the same pair must be
	// rejected by the unique (user, organization) index.
	err = env.db.Create(&models.Membership{
		UserID:         owner.ID,
		OrganizationID: org.ID,
		Role:           access.RoleMember,
		Status:         models.MembershipStatusActive,
	}).Error
	require.Error(t, err)
}

func TestOrganizationHandler_InviteWrongEmail(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, ownerToken := env.registerUser(t, "owner@example.com")
	_, strangerToken := env.registerUser(t, "stranger@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/invitations", ownerToken, map[string]string{
		"email": "seller@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var inv dto.InvitationDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))

	// Only the invited address may accept.
	w = doJSON(t, env.router, http.MethodPost, "/api/organizations/invitations/"+inv.Token+"/accept", strangerToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrganizationHandler_InviteOwnerRoleRejected(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, ownerToken := env.registerUser(t, "owner@example.com")
	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/invitations", ownerToken, map[string]string{
		"email": "seller@example.com",
		"role":  "owner",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrganizationHandler_ExpiredInvitation(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, _ := env.registerUser(t, "owner@example.com")
	_, inviteeToken := env.registerUser(t, "seller@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	expired := &models.Invitation{
		OrganizationID: org.ID,
		Email:          "seller@example.com",
		Role:           access.RoleMember,
		Token:          "expired-token-0000000000000000000000000000000000000000000000",
		InvitedBy:      owner.ID,
		Status:         models.InvitationStatusPending,
		ExpiresAt:      time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.db.Create(expired).Error)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/invitations/"+expired.Token+"/accept", inviteeToken, nil)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestOrganizationHandler_MemberCannotInvite(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, _ := env.registerUser(t, "owner@example.com")
	member, memberToken := env.registerUser(t, "member@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&models.Membership{
		UserID:         member.ID,
		OrganizationID: org.ID,
		Role:           access.RoleMember,
		Status:         models.MembershipStatusActive,
	}).Error)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/invitations", memberToken, map[string]string{
		"email": "friend@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrganizationHandler_CreateMemberDirectly(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, ownerToken := env.registerUser(t, "owner@example.com")
	_, _ = env.registerUser(t, "seller@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/members", ownerToken, map[string]string{
		"email": "seller@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	members, err := env.orgService.ListMembers(org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	// Adding the same account again conflicts.
	w = doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/members", ownerToken, map[string]string{
		"email": "seller@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// Unknown accounts cannot be enrolled.
	w = doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/members", ownerToken, map[string]string{
		"email": "nobody@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrganizationHandler_NonMemberSees404(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, _ := env.registerUser(t, "owner@example.com")
	_, strangerToken := env.registerUser(t, "stranger@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	// Membership is required even to learn the organization exists.
	w := doJSON(t, env.router, http.MethodGet, "/api/organizations/"+org.ID, strangerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrganizationHandler_LastOwnerProtected(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, ownerToken := env.registerUser(t, "owner@example.com")
	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	path := fmt.Sprintf("/api/organizations/%s/members/%s/role", org.ID, owner.ID)
	w := doJSON(t, env.router, http.MethodPatch, path, ownerToken, map[string]string{
		"role": "member",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, env.router, http.MethodDelete, "/api/organizations/"+org.ID+"/members/"+owner.ID, ownerToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrganizationHandler_MemberSelfRemoval(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, _ := env.registerUser(t, "owner@example.com")
	member, memberToken := env.registerUser(t, "member@example.com")

	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&models.Membership{
		UserID:         member.ID,
		OrganizationID: org.ID,
		Role:           access.RoleMember,
		Status:         models.MembershipStatusActive,
	}).Error)

	w := doJSON(t, env.router, http.MethodDelete, "/api/organizations/"+org.ID+"/members/"+member.ID, memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	members, err := env.orgService.ListMembers(org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestOrganizationHandler_Departments(t *testing.T) {
	env := setupOrgTestEnv(t)

	owner, ownerToken := env.registerUser(t, "owner@example.com")
	org, err := env.orgService.Create(owner.ID, "Acme Sales")
	require.NoError(t, err)

	w := doJSON(t, env.router, http.MethodPost, "/api/organizations/"+org.ID+"/departments", ownerToken, map[string]string{
		"name": "Outbound",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/organizations/"+org.ID+"/departments", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Departments []dto.DepartmentDTO `json:"departments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Departments, 1)
	require.Equal(t, "Outbound", response.Departments[0].Name)
}
