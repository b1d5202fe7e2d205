package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/constants"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
)

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrPasswordTooLong      = errors.New("password too long")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrUserNotFound         = errors.New("user not found")
	ErrSessionRevoked       = errors.New("session revoked or expired")
	ErrNotAMember           = errors.New("not a member of this organization")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

// AuthService handles accounts, credentials and token sessions.
type AuthService struct {
	userRepo    repository.UserRepository
	orgRepo     repository.OrganizationRepository
	sessionRepo repository.SessionRepository
	issuer      *TokenIssuer
	maxSessions int
	log         *logrus.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	sessionRepo repository.SessionRepository,
	issuer *TokenIssuer,
	maxSessions int,
	log *logrus.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		orgRepo:     orgRepo,
		sessionRepo: sessionRepo,
		issuer:      issuer,
		maxSessions: maxSessions,
		log:         log,
	}
}

// RegisterInput represents the required information to create a new account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Username string
}

// Register creates a new user account and signs it in.
func (s *AuthService) Register(input RegisterInput) (*models.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !isValidEmail(email) {
		return nil, nil, ErrInvalidEmail
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}

	user := &models.User{
		Email:    &email,
		FullName: strings.TrimSpace(input.FullName),
		IsActive: true,
	}
	if username := strings.TrimSpace(input.Username); username != "" {
		if _, err := s.userRepo.FindByUsername(username); err == nil {
			return nil, nil, ErrUsernameTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("failed to check username: %w", err)
		}
		user.Username = &username
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, ErrFailedToHashPassword
	}
	user.PasswordHash = string(hashed)

	if err := s.userRepo.Create(user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.signIn(user, "")
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// RegisterWithAccessCode creates a username-only account that joins the
// organization matching the join code as a member.
func (s *AuthService) RegisterWithAccessCode(username, password, fullName, accessCode string) (*models.User, *TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil, fmt.Errorf("username is required")
	}
	if err := validatePassword(password); err != nil {
		return nil, nil, err
	}

	org, err := s.orgRepo.FindByAccessCode(strings.ToUpper(strings.TrimSpace(accessCode)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrganizationNotFound
		}
		return nil, nil, fmt.Errorf("failed to look up access code: %w", err)
	}

	count, err := s.orgRepo.CountMembers(org.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= int64(org.MaxMembers) {
		return nil, nil, ErrOrganizationFull
	}

	if _, err := s.userRepo.FindByUsername(username); err == nil {
		return nil, nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, ErrFailedToHashPassword
	}

	user := &models.User{
		Username:     &username,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hashed),
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	member := &models.Membership{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           access.RoleMember,
		Status:         models.MembershipStatusActive,
	}
	if err := s.orgRepo.AddMember(member); err != nil {
		return nil, nil, fmt.Errorf("failed to join organization: %w", err)
	}

	pair, err := s.signIn(user, org.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(email, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	return s.finishLogin(user, password)
}

// LoginWithUsername authenticates by username and password.
func (s *AuthService) LoginWithUsername(username, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	return s.finishLogin(user, password)
}

func (s *AuthService) finishLogin(user *models.User, password string) (*models.User, *TokenPair, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(user); err != nil {
		s.log.WithError(err).Warn("failed to record last login")
	}

	pair, err := s.signIn(user, "")
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// signIn mints a token pair and records the backing session, evicting the
// oldest session when the user is at the cap.
func (s *AuthService) signIn(user *models.User, orgID string) (*TokenPair, error) {
	now := time.Now()
	if s.maxSessions > 0 {
		count, err := s.sessionRepo.CountActiveForUser(user.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to count sessions: %w", err)
		}
		if count >= int64(s.maxSessions) {
			oldest, err := s.sessionRepo.FindOldestActiveForUser(user.ID, now)
			if err == nil {
				if err := s.sessionRepo.Revoke(oldest, now); err != nil {
					s.log.WithError(err).Warn("failed to evict oldest session")
				}
			}
		}
	}

	pair, err := s.issuer.IssuePair(user.ID, orgID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:     user.ID,
		AccessJTI:  pair.AccessJTI,
		RefreshJTI: pair.RefreshJTI,
		ExpiresAt:  pair.RefreshExpiresAt,
	}
	if orgID != "" {
		session.OrganizationID = &orgID
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return pair, nil
}

// Refresh rotates a refresh token into a fresh token pair. The old pair
// stops working immediately.
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session, err := s.sessionRepo.FindByRefreshJTI(claims.ID)
	if err != nil {
		return nil, ErrSessionRevoked
	}
	if !session.IsValid(time.Now()) {
		return nil, ErrSessionRevoked
	}

	orgID := ""
	if session.OrganizationID != nil {
		orgID = *session.OrganizationID
	}
	pair, err := s.issuer.IssuePair(session.UserID, orgID)
	if err != nil {
		return nil, err
	}

	session.AccessJTI = pair.AccessJTI
	session.RefreshJTI = pair.RefreshJTI
	session.ExpiresAt = pair.RefreshExpiresAt
	if err := s.sessionRepo.Update(session); err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	return pair, nil
}

// SelectOrganization re-issues the caller's tokens with the given
// organization as the active one. An empty orgID switches back to the
// personal workspace.
func (s *AuthService) SelectOrganization(userID, accessJTI, orgID string) (*TokenPair, error) {
	if orgID != "" {
		member, err := s.orgRepo.FindMember(orgID, userID)
		if err != nil || !member.IsActive() {
			return nil, ErrNotAMember
		}
	}

	session, err := s.sessionRepo.FindByAccessJTI(accessJTI)
	if err != nil {
		return nil, ErrSessionRevoked
	}
	if !session.IsValid(time.Now()) {
		return nil, ErrSessionRevoked
	}

	pair, err := s.issuer.IssuePair(userID, orgID)
	if err != nil {
		return nil, err
	}

	session.AccessJTI = pair.AccessJTI
	session.RefreshJTI = pair.RefreshJTI
	session.ExpiresAt = pair.RefreshExpiresAt
	if orgID != "" {
		session.OrganizationID = &orgID
	} else {
		session.OrganizationID = nil
	}
	if err := s.sessionRepo.Update(session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return pair, nil
}

// ValidateAccess verifies a Bearer access token against its session.
func (s *AuthService) ValidateAccess(tokenString string) (*TokenClaims, error) {
	claims, err := s.issuer.Parse(tokenString, TokenTypeAccess)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session, err := s.sessionRepo.FindByAccessJTI(claims.ID)
	if err != nil {
		return nil, ErrSessionRevoked
	}
	if !session.IsValid(time.Now()) {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Logout revokes the session behind an access token.
func (s *AuthService) Logout(accessJTI string) error {
	session, err := s.sessionRepo.FindByAccessJTI(accessJTI)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.sessionRepo.Revoke(session, time.Now())
}

// GetProfile returns a user together with their organization memberships.
func (s *AuthService) GetProfile(userID string) (*models.User, []models.Membership, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, nil, ErrUserNotFound
	}
	memberships, err := s.orgRepo.ListMembershipsByUserID(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return user, memberships, nil
}

// UpdateProfileInput carries optional profile changes. Changing the
// password requires the current one.
type UpdateProfileInput struct {
	FullName        *string
	Username        *string
	Password        *string
	CurrentPassword string
}

// UpdateProfile applies profile changes to a user.
func (s *AuthService) UpdateProfile(userID string, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username != "" && (user.Username == nil || *user.Username != username) {
			if _, err := s.userRepo.FindByUsername(username); err == nil {
				return nil, ErrUsernameTaken
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("failed to check username: %w", err)
			}
			user.Username = &username
		}
	}
	if input.Password != nil {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
			return nil, ErrInvalidCredentials
		}
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, ErrFailedToHashPassword
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// SweepSessions deletes expired sessions and sessions revoked longer ago
// than the retention window.
func (s *AuthService) SweepSessions(now time.Time) {
	purged, err := s.sessionRepo.PurgeStale(now, now.Add(-constants.SessionRevokedRetention))
	if err != nil {
		s.log.WithError(err).Warn("session sweep failed")
		return
	}
	if purged > 0 {
		s.log.WithField("purged", purged).Info("purged stale sessions")
	}
}

func validatePassword(password string) error {
	if len(password) < constants.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > constants.MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}
