package dto

import (
	"time"

	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/services"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID          string     `json:"id"`
	Username    *string    `json:"username,omitempty"`
	Email       *string    `json:"email,omitempty"`
	FullName    string     `json:"full_name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TokenDTO represents an issued token pair
type TokenDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse bundles the signed-in user with their tokens
type AuthResponse struct {
	User   UserDTO  `json:"user"`
	Tokens TokenDTO `json:"tokens"`
}

// MeResponse is the profile view with organization memberships
type MeResponse struct {
	User          UserDTO                   `json:"user"`
	Organizations []OrganizationWithRoleDTO `json:"organizations"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

// ToTokenDTO converts an issued token pair to TokenDTO
func ToTokenDTO(pair services.TokenPair) TokenDTO {
	return TokenDTO{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(pair.AccessExpiresAt).Seconds()),
	}
}

// ToAuthResponse bundles a user and token pair
func ToAuthResponse(user models.User, pair services.TokenPair) AuthResponse {
	return AuthResponse{
		User:   ToUserDTO(user),
		Tokens: ToTokenDTO(pair),
	}
}
