package database

import (
	"context"
	"errors"

	"apartmenthunter/internal/models"
)

// LogSession appends a scan session record and returns its id.
func (d *Database) LogSession(ctx context.Context, s *models.ScrapeSession) (uint, error) {
	if s == nil {
		return 0, wrapErr("log_session", errors.New("nil session"))
	}
	row := *s
	row.ID = 0
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, wrapErr("log_session", err)
	}
	return row.ID, nil
}

// ListSessions returns the most recent sessions first.
func (d *Database) ListSessions(ctx context.Context, limit int) ([]models.ScrapeSession, error) {
	q := d.db.WithContext(ctx).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sessions []models.ScrapeSession
	if err := q.Find(&sessions).Error; err != nil {
		return nil, wrapErr("list_sessions", err)
	}
	return sessions, nil
}

// RecordNotification appends one delivery outcome.
func (d *Database) RecordNotification(ctx context.Context, rec *models.NotificationRecord) error {
	if rec == nil {
		return wrapErr("record_notification", errors.New("nil record"))
	}
	row := *rec
	row.ID = 0
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapErr("record_notification", err)
	}
	return nil
}

// ListNotifications returns delivery records for a fingerprint, newest first.
func (d *Database) ListNotifications(ctx context.Context, fingerprint string) ([]models.NotificationRecord, error) {
	var records []models.NotificationRecord
	err := d.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("sent_at DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, wrapErr("list_notifications", err)
	}
	return records, nil
}

// SaveFilter stores named criteria and returns the row id.
func (d *Database) SaveFilter(ctx context.Context, f *models.StoredFilter) (uint, error) {
	if f == nil {
		return 0, wrapErr("save_filter", errors.New("nil filter"))
	}
	row := *f
	row.ID = 0
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, wrapErr("save_filter", err)
	}
	return row.ID, nil
}

// ListFilters returns stored filters, active ones only unless all is set.
func (d *Database) ListFilters(ctx context.Context, all bool) ([]models.StoredFilter, error) {
	q := d.db.WithContext(ctx).Order("id")
	if !all {
		q = q.Where("active = ?", true)
	}
	var filters []models.StoredFilter
	if err := q.Find(&filters).Error; err != nil {
		return nil, wrapErr("list_filters", err)
	}
	return filters, nil
}
