package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTypeAccess marks short-lived tokens sent as Bearer credentials.
	TokenTypeAccess = "access"
	// TokenTypeRefresh marks long-lived tokens accepted only by the
	// refresh endpoint.
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// TokenClaims are the JWT claims carried by both token kinds. The org
// claim is empty until the user selects an active organization.
type TokenClaims struct {
	jwt.RegisteredClaims
	OrganizationID string `json:"org,omitempty"`
	TokenType      string `json:"typ"`
}

// TokenPair is an access and refresh token minted together. Both tokens
// share one session row; the JTIs tie them to it.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessJTI        string
	RefreshJTI       string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenIssuer mints and verifies HS256 token pairs.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer creates a new TokenIssuer
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssuePair mints a fresh access and refresh token for a user. orgID may
// be empty for tokens without a selected organization.
func (i *TokenIssuer) IssuePair(userID, orgID string) (*TokenPair, error) {
	now := time.Now()
	pair := &TokenPair{
		AccessJTI:        uuid.NewString(),
		RefreshJTI:       uuid.NewString(),
		AccessExpiresAt:  now.Add(i.accessTTL),
		RefreshExpiresAt: now.Add(i.refreshTTL),
	}

	access, err := i.sign(userID, orgID, pair.AccessJTI, TokenTypeAccess, now, pair.AccessExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := i.sign(userID, orgID, pair.RefreshJTI, TokenTypeRefresh, now, pair.RefreshExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	pair.AccessToken = access
	pair.RefreshToken = refresh
	return pair, nil
}

func (i *TokenIssuer) sign(userID, orgID, jti, typ string, issuedAt, expiresAt time.Time) (string, error) {
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		OrganizationID: orgID,
		TokenType:      typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies a token's signature and expiry and checks it is of the
// wanted type.
func (i *TokenIssuer) Parse(tokenString, wantType string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
