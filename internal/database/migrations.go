package database

import (
	"gorm.io/gorm"

	"apartmenthunter/internal/models"
)

// MigrateSchema creates or updates every table the store owns.
func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Listing{},
		&models.StoredFilter{},
		&models.NotificationRecord{},
		&models.ScrapeSession{},
	); err != nil {
		return err
	}

	// Listing reads are always active-first, newest-first.
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_listings_active_scraped
		ON listings(active, scraped_at DESC)
	`).Error
}
