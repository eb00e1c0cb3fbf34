package models

import "time"

// ScrapeSession is the append-only audit record of one scan cycle.
type ScrapeSession struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RunID           string    `gorm:"size:36;index" json:"run_id"`
	Source          string    `gorm:"size:50;not null" json:"source"`
	ListingsFound   int       `gorm:"not null;default:0" json:"listings_found"`
	ListingsNew     int       `gorm:"not null;default:0" json:"listings_new"`
	ListingsUpdated int       `gorm:"not null;default:0" json:"listings_updated"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	Success         bool      `gorm:"not null" json:"success"`
	ErrorMessage    *string   `json:"error_message"`
}

// TableName keeps the historical table name.
func (ScrapeSession) TableName() string {
	return "scrape_history"
}

// NotificationRecord is the append-only audit of one notification attempt.
type NotificationRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Fingerprint  string    `gorm:"index;size:64;not null" json:"fingerprint"`
	Channel      string    `gorm:"index;size:50;not null" json:"channel"`
	SentAt       time.Time `gorm:"autoCreateTime" json:"sent_at"`
	Success      bool      `gorm:"not null" json:"success"`
	ErrorMessage *string   `json:"error_message"`
}

// TableName keeps the historical table name.
func (NotificationRecord) TableName() string {
	return "notifications"
}

// StoreStats aggregates counts and prices across the store.
type StoreStats struct {
	TableCounts      map[string]int64 `json:"table_counts"`
	ListingsBySource map[string]int64 `json:"listings_by_source"`
	ListingsToday    int64            `json:"listings_today"`
	ListingsThisWeek int64            `json:"listings_this_week"`
	PriceMin         float64          `json:"price_min"`
	PriceMax         float64          `json:"price_max"`
	PriceAvg         float64          `json:"price_avg"`
}
