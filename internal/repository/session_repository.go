package repository

import (
	"time"

	"github.com/voicecheck/voicecheck/internal/models"
	"gorm.io/gorm"
)

// GormSessionRepository is a GORM implementation of SessionRepository
type GormSessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &GormSessionRepository{db: db}
}

// Create creates a new session
func (r *GormSessionRepository) Create(session *models.Session) error {
	return r.db.Create(session).Error
}

// FindByAccessJTI finds a session by its access token ID
func (r *GormSessionRepository) FindByAccessJTI(jti string) (*models.Session, error) {
	var session models.Session
	if err := r.db.Where("access_jti = ?", jti).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByRefreshJTI finds a session by its refresh token ID
func (r *GormSessionRepository) FindByRefreshJTI(jti string) (*models.Session, error) {
	var session models.Session
	if err := r.db.Where("refresh_jti = ?", jti).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Update updates a session
func (r *GormSessionRepository) Update(session *models.Session) error {
	return r.db.Save(session).Error
}

// Revoke marks a session as revoked
func (r *GormSessionRepository) Revoke(session *models.Session, at time.Time) error {
	session.RevokedAt = &at
	return r.db.Model(session).Update("revoked_at", at).Error
}

// RevokeAllForUser revokes every live session of a user
func (r *GormSessionRepository) RevokeAllForUser(userID string, at time.Time) error {
	return r.db.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at).Error
}

// FindOldestActiveForUser finds the oldest live session of a user
func (r *GormSessionRepository) FindOldestActiveForUser(userID string, now time.Time) (*models.Session, error) {
	var session models.Session
	if err := r.db.Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at ASC").
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// CountActiveForUser counts non-revoked, non-expired sessions of a user
func (r *GormSessionRepository) CountActiveForUser(userID string, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Count(&count).Error
	return count, err
}

// PurgeStale deletes expired sessions and long-revoked sessions
func (r *GormSessionRepository) PurgeStale(now, revokedCutoff time.Time) (int64, error) {
	result := r.db.Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)",
		now, revokedCutoff).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
