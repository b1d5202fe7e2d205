package database

import (
	"gorm.io/gorm"
)

// Paginate applies pagination to a GORM query
func Paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// ActiveOnly restricts a query to rows whose is_active flag is set.
// Soft-deactivated organizations and users never surface through it.
func ActiveOnly(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}
