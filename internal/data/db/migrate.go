package db

import (
	"fmt"

	types "github.com/yungbote/lasttime-backend/internal/domain"
	"gorm.io/gorm"
)

// AutoMigrateAll creates both tables. Categories go first so the
// activity_records foreign key has a target.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Category{},
		&types.ActivityRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureIndexes(db)
}

func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_activity_records_user_last_date
		ON activity_records(user_id, last_date DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_activity_records_user_last_date: %w", err)
	}
	return nil
}
