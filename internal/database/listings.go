package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"apartmenthunter/internal/models"
)

// UpsertOutcome says which branch an upsert took.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota + 1
	Updated
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// BatchResult aggregates a BatchUpsert.
type BatchResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

// ListFilter narrows List.
type ListFilter struct {
	Source          string
	Limit           int
	IncludeInactive bool
}

// mutableColumns are rewritten when an existing fingerprint is upserted.
// active, created_at and fingerprint are never touched.
var mutableColumns = []string{
	"title", "description", "price", "rooms", "location", "url",
	"contact_phone", "size_area", "parking", "pets_allowed", "source",
	"scraped_at", "updated_at",
}

// Upsert inserts the listing or refreshes the stored row with the same
// fingerprint. The write is a single INSERT ... ON CONFLICT statement, so
// concurrent upserts of one identity cannot lose an update.
func (d *Database) Upsert(ctx context.Context, l *models.Listing) (UpsertOutcome, error) {
	if l == nil {
		return 0, wrapErr("upsert", errors.New("nil listing"))
	}

	row := *l
	row.ID = 0
	row.CreatedAt, row.UpdatedAt = d.now(), d.now()
	if row.Fingerprint == "" {
		row.Refingerprint()
	}
	if row.ScrapedAt.IsZero() {
		row.ScrapedAt = d.now()
	}

	var outcome UpsertOutcome
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Listing{}).
			Where("fingerprint = ?", row.Fingerprint).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check fingerprint: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoUpdates: clause.AssignmentColumns(mutableColumns),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to write listing: %w", err)
		}

		outcome = Inserted
		if existing > 0 {
			outcome = Updated
		}
		return nil
	})
	if err != nil {
		return 0, wrapErr("upsert", err)
	}
	return outcome, nil
}

// BatchUpsert upserts each listing independently. One failure is counted and
// logged; it never aborts the rest of the batch.
func (d *Database) BatchUpsert(ctx context.Context, listings []*models.Listing) BatchResult {
	var res BatchResult
	for _, l := range listings {
		outcome, err := d.Upsert(ctx, l)
		if err != nil {
			res.Errors++
			entry := d.logger.WithError(err)
			if l != nil {
				entry = entry.WithField("fingerprint", l.Fingerprint)
			}
			entry.Error("Failed to upsert listing")
			continue
		}
		switch outcome {
		case Inserted:
			res.Inserted++
		case Updated:
			res.Updated++
		}
	}

	d.logger.WithFields(logrus.Fields{
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"errors":   res.Errors,
	}).Info("Batch upsert complete")
	return res
}

// GetByFingerprint returns the listing, active or not, or nil when absent.
func (d *Database) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Listing, error) {
	var l models.Listing
	err := d.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get", err)
	}
	return &l, nil
}

// Exists reports whether any row, active or not, carries the fingerprint.
func (d *Database) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.Listing{}).
		Where("fingerprint = ?", fingerprint).
		Count(&n).Error
	if err != nil {
		return false, wrapErr("exists", err)
	}
	return n > 0, nil
}

// List returns listings newest first.
func (d *Database) List(ctx context.Context, f ListFilter) ([]models.Listing, error) {
	q := d.db.WithContext(ctx).Model(&models.Listing{})
	if !f.IncludeInactive {
		q = q.Where("active = ?", true)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var listings []models.Listing
	if err := q.Order("scraped_at DESC").Order("id DESC").Find(&listings).Error; err != nil {
		return nil, wrapErr("list", err)
	}
	return listings, nil
}

// Search compiles criteria into one conjunctive query over active listings.
// Locations and keywords are each OR-sets; an empty set matches everything.
// Every text rule is a literal substring match, as in RuleFilter.
func (d *Database) Search(ctx context.Context, c models.SearchCriteria) ([]models.Listing, error) {
	q := d.db.WithContext(ctx).Model(&models.Listing{}).Where("active = ?", true)

	if c.PriceMin != nil {
		q = q.Where("price >= ?", *c.PriceMin)
	}
	if c.PriceMax != nil {
		q = q.Where("price <= ?", *c.PriceMax)
	}
	if c.RoomsMin != nil {
		q = q.Where("rooms >= ?", *c.RoomsMin)
	}
	if c.RoomsMax != nil {
		q = q.Where("rooms <= ?", *c.RoomsMax)
	}
	if cond, args := anyLike("location", c.Locations); cond != "" {
		q = q.Where(cond, args...)
	}
	if c.PetsRequired != nil && *c.PetsRequired {
		q = q.Where("pets_allowed IS NULL OR pets_allowed = ?", true)
	}
	if c.Source != "" {
		q = q.Where("source = ?", c.Source)
	}

	var listings []models.Listing
	if err := q.Order("scraped_at DESC").Order("id DESC").Find(&listings).Error; err != nil {
		return nil, wrapErr("search", err)
	}

	// Text rules are applied in Go so case folding matches RuleFilter for
	// non-ASCII text, which SQL LOWER does not fold.
	matched := listings[:0]
	for i := range listings {
		if c.MatchesText(&listings[i]) {
			matched = append(matched, listings[i])
		}
	}
	return matched, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// anyLike builds "(col LIKE ? OR ...)" matching any value as a literal
// substring.
func anyLike(column string, values []string) (string, []interface{}) {
	var parts []string
	var args []interface{}
	for _, v := range values {
		if v == "" {
			continue
		}
		parts = append(parts, "COALESCE("+column+", '') LIKE ? ESCAPE '\\'")
		args = append(args, "%"+likeEscaper.Replace(v)+"%")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// MarkInactive soft-deletes a listing. It reports false for an unknown
// fingerprint.
func (d *Database) MarkInactive(ctx context.Context, fingerprint string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&models.Listing{}).
		Where("fingerprint = ?", fingerprint).
		Update("active", false)
	if res.Error != nil {
		return false, wrapErr("mark_inactive", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes a listing row. It reports false for an unknown fingerprint.
func (d *Database) Delete(ctx context.Context, fingerprint string) (bool, error) {
	res := d.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).Delete(&models.Listing{})
	if res.Error != nil {
		return false, wrapErr("delete", res.Error)
	}
	return res.RowsAffected > 0, nil
}
