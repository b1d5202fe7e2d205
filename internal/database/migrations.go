package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AddIndexes adds performance-critical indexes to the database
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		// Dialog indexes for listing, filtering and dashboard rollups
		{"dialogs", "idx_dialogs_owner", "owner_type, owner_id"},
		{"dialogs", "idx_dialogs_status", "status"},
		{"dialogs", "idx_dialogs_created_at", "created_at"},
		{"dialogs", "idx_dialogs_seller_name", "seller_name"},

		// Membership lookups
		{"memberships", "idx_memberships_organization_id", "organization_id"},
		{"memberships", "idx_memberships_user_id", "user_id"},

		// Invitation sweeps
		{"invitations", "idx_invitations_status_expires", "status, expires_at"},

		// Session sweeps and refresh lookup
		{"sessions", "idx_sessions_expires_at", "expires_at"},

		// Company search
		{"companies", "idx_companies_owner", "owner_type, owner_id"},
	}

	for _, idx := range indexes {
		var count int64
		err := db.Raw(`
			SELECT COUNT(*)
			FROM pg_indexes
			WHERE tablename = ? AND indexname = ?
		`, idx.table, idx.name).Count(&count).Error

		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.name, err)
		}

		if count > 0 {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		logrus.Infof("Created index %s on %s(%s)", idx.name, idx.table, idx.columns)
	}

	return nil
}
