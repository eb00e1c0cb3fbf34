package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"apartmenthunter/internal/models"
)

// Stats aggregates counts and price figures. Prices only consider active
// listings with a positive price.
func (d *Database) Stats(ctx context.Context) (models.StoreStats, error) {
	stats := models.StoreStats{
		TableCounts:      make(map[string]int64),
		ListingsBySource: make(map[string]int64),
	}
	db := d.db.WithContext(ctx)

	tables := map[string]interface{}{
		"listings":       &models.Listing{},
		"filters":        &models.StoredFilter{},
		"notifications":  &models.NotificationRecord{},
		"scrape_history": &models.ScrapeSession{},
	}
	for name, model := range tables {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			return stats, wrapErr("stats", fmt.Errorf("failed to count %s: %w", name, err))
		}
		stats.TableCounts[name] = n
	}

	var bySource []struct {
		Source string
		Count  int64
	}
	if err := db.Model(&models.Listing{}).
		Select("source, COUNT(*) AS count").
		Where("active = ?", true).
		Group("source").
		Scan(&bySource).Error; err != nil {
		return stats, wrapErr("stats", fmt.Errorf("failed to count by source: %w", err))
	}
	for _, row := range bySource {
		stats.ListingsBySource[row.Source] = row.Count
	}

	now := d.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.Listing{}).
		Where("created_at >= ?", startOfDay).
		Count(&stats.ListingsToday).Error; err != nil {
		return stats, wrapErr("stats", fmt.Errorf("failed to count today: %w", err))
	}
	if err := db.Model(&models.Listing{}).
		Where("created_at >= ?", now.AddDate(0, 0, -7)).
		Count(&stats.ListingsThisWeek).Error; err != nil {
		return stats, wrapErr("stats", fmt.Errorf("failed to count week: %w", err))
	}

	var minPrice, maxPrice, avgPrice sql.NullFloat64
	row := db.Model(&models.Listing{}).
		Select("MIN(price), MAX(price), AVG(price)").
		Where("active = ? AND price > 0", true).
		Row()
	if err := row.Scan(&minPrice, &maxPrice, &avgPrice); err != nil {
		return stats, wrapErr("stats", fmt.Errorf("failed to aggregate prices: %w", err))
	}
	if minPrice.Valid {
		stats.PriceMin = minPrice.Float64
	}
	if maxPrice.Valid {
		stats.PriceMax = maxPrice.Float64
	}
	if avgPrice.Valid {
		stats.PriceAvg = math.Round(avgPrice.Float64*100) / 100
	}

	return stats, nil
}
