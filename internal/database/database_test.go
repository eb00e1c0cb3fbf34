package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartmenthunter/internal/models"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := NewDatabase(Config{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "data", "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testListing(id string, price, rooms float64, location string) *models.Listing {
	l := models.NewListing("https://www.yad2.co.il/realestate/item/"+id, "דירה לדוגמה "+id, price, rooms)
	l.Location = location
	l.Source = "yad2"
	l.ScrapedAt = time.Now().UTC()
	return &l
}

func TestNewDatabase_Errors(t *testing.T) {
	_, err := NewDatabase(Config{Driver: "oracle"}, nil)
	assert.Error(t, err)

	_, err = NewDatabase(Config{Driver: DriverPostgres}, nil)
	assert.Error(t, err)

	_, err = NewDatabase(Config{Driver: DriverSQLite}, nil)
	assert.Error(t, err)
}

func TestUpsert_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	l := testListing("a1", 3000, 3, "בת גלים")
	outcome, err := db.Upsert(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	first, err := db.GetByFingerprint(ctx, l.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, first)

	time.Sleep(5 * time.Millisecond)
	l.Price = 3300
	l.Description = "עודכן"
	outcome, err = db.Upsert(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)

	second, err := db.GetByFingerprint(ctx, l.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, float64(3300), second.Price)
	assert.Equal(t, "עודכן", second.Description)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	outcome, err = db.Upsert(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, Updated, outcome)

	all, err := db.List(ctx, ListFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsert_KeepsInactiveFlag(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	l := testListing("b1", 3000, 3, "")
	_, err := db.Upsert(ctx, l)
	require.NoError(t, err)
	ok, err := db.MarkInactive(ctx, l.Fingerprint)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = db.Upsert(ctx, l)
	require.NoError(t, err)

	got, err := db.GetByFingerprint(ctx, l.Fingerprint)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestUpsert_Nil(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Upsert(context.Background(), nil)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "upsert", se.Op)
}

func TestBatchUpsert_Aggregates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	existing := []*models.Listing{testListing("e1", 3000, 2, ""), testListing("e2", 3100, 2, "")}
	res := db.BatchUpsert(ctx, existing)
	require.Equal(t, BatchResult{Inserted: 2}, res)

	for _, l := range existing {
		l.Price += 100
	}
	batch := append([]*models.Listing{
		testListing("n1", 2800, 3, ""),
		testListing("n2", 2900, 3, ""),
		testListing("n3", 3900, 4, ""),
	}, existing...)

	res = db.BatchUpsert(ctx, batch)
	assert.Equal(t, BatchResult{Inserted: 3, Updated: 2, Errors: 0}, res)

	got, err := db.GetByFingerprint(ctx, existing[0].Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, float64(3100), got.Price)
}

func TestBatchUpsert_ContinuesPastFailure(t *testing.T) {
	db := setupTestDB(t)

	res := db.BatchUpsert(context.Background(), []*models.Listing{
		testListing("ok1", 3000, 3, ""),
		nil,
		testListing("ok2", 3000, 3, ""),
	})
	assert.Equal(t, BatchResult{Inserted: 2, Errors: 1}, res)
}

func TestSoftAndHardDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	keep := testListing("k1", 3000, 3, "")
	soft := testListing("s1", 3000, 3, "")
	hard := testListing("h1", 3000, 3, "")
	db.BatchUpsert(ctx, []*models.Listing{keep, soft, hard})

	ok, err := db.MarkInactive(ctx, soft.Fingerprint)
	require.NoError(t, err)
	assert.True(t, ok)

	active, err := db.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)
	assert.NotContains(t, fingerprints(active), soft.Fingerprint)

	all, err := db.List(ctx, ListFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Contains(t, fingerprints(all), soft.Fingerprint)

	got, err := db.GetByFingerprint(ctx, soft.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)

	ok, err = db.Delete(ctx, hard.Fingerprint)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = db.GetByFingerprint(ctx, hard.Fingerprint)
	require.NoError(t, err)
	assert.Nil(t, got)

	all, err = db.List(ctx, ListFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.NotContains(t, fingerprints(all), hard.Fingerprint)

	ok, err = db.MarkInactive(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = db.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList_OrderSourceLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"o1", "o2", "o3"} {
		l := testListing(id, 3000, 3, "")
		l.ScrapedAt = base.Add(time.Duration(i) * time.Hour)
		if id == "o2" {
			l.Source = "other"
		}
		_, err := db.Upsert(ctx, l)
		require.NoError(t, err)
	}

	all, err := db.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Contains(t, all[0].URL, "o3")
	assert.Contains(t, all[2].URL, "o1")

	limited, err := db.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Contains(t, limited[0].URL, "o3")

	other, err := db.List(ctx, ListFilter{Source: "other"})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Contains(t, other[0].URL, "o2")
}

func TestSearch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := testListing("s1", 3200, 3, "בת גלים")
	a.Description = "קרוב לים, Renovated"
	b := testListing("s2", 3800, 4, "נווה שאנן")
	b.PetsAllowed = models.Bool(false)
	c := testListing("s3", 4500, 3, "בת גלים")
	d := testListing("s4", 3000, 2, "כרמל")
	d.Description = "דרך תיווך"
	inactive := testListing("s5", 3000, 3, "בת גלים")
	db.BatchUpsert(ctx, []*models.Listing{a, b, c, d, inactive})
	_, err := db.MarkInactive(ctx, inactive.Fingerprint)
	require.NoError(t, err)

	tests := []struct {
		name     string
		criteria models.SearchCriteria
		expected []string
	}{
		{"everything active", models.SearchCriteria{}, []string{a.Fingerprint, b.Fingerprint, c.Fingerprint, d.Fingerprint}},
		{"price range inclusive", models.SearchCriteria{PriceMin: models.Float(3200), PriceMax: models.Float(3800)}, []string{a.Fingerprint, b.Fingerprint}},
		{"rooms range", models.SearchCriteria{RoomsMin: models.Float(3), RoomsMax: models.Float(3)}, []string{a.Fingerprint, c.Fingerprint}},
		{"locations or", models.SearchCriteria{Locations: []string{"נווה שאנן", "כרמל"}}, []string{b.Fingerprint, d.Fingerprint}},
		{"keyword case-insensitive", models.SearchCriteria{Keywords: []string{"renovated"}}, []string{a.Fingerprint}},
		{"exclusions", models.SearchCriteria{ExcludeKeywords: []string{"תיווך"}}, []string{a.Fingerprint, b.Fingerprint, c.Fingerprint}},
		{"pets", models.SearchCriteria{PetsRequired: models.Bool(true)}, []string{a.Fingerprint, c.Fingerprint, d.Fingerprint}},
		{"conjunction", models.SearchCriteria{PriceMax: models.Float(4000), Locations: []string{"בת גלים"}}, []string{a.Fingerprint}},
		{"source", models.SearchCriteria{Source: "nowhere"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Search(ctx, tt.criteria)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, fingerprints(got))
		})
	}
}

func TestSearch_LiteralSubstrings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	underscore := testListing("l1", 3000, 3, "גן_העיר")
	wildcard := testListing("l2", 3000, 3, "גןXהעיר")
	percent := testListing("l3", 3000, 3, "כרמל")
	percent.Description = "100% מרוהטת"
	digits := testListing("l4", 3000, 3, "כרמל")
	digits.Description = "1000 מטר מהים"
	accented := testListing("l5", 3000, 3, "כרמל")
	accented.Description = "ÉTAGE élevé"
	result := db.BatchUpsert(ctx, []*models.Listing{underscore, wildcard, percent, digits, accented})
	require.Equal(t, 5, result.Inserted)

	tests := []struct {
		name     string
		criteria models.SearchCriteria
		expected []string
	}{
		{"underscore is literal", models.SearchCriteria{Locations: []string{"גן_העיר"}}, []string{underscore.Fingerprint}},
		{"percent location matches nothing", models.SearchCriteria{Locations: []string{"%"}}, nil},
		{"percent keyword is literal", models.SearchCriteria{Keywords: []string{"100%"}}, []string{percent.Fingerprint}},
		{"non-ascii keyword folds case", models.SearchCriteria{Keywords: []string{"étage"}}, []string{accented.Fingerprint}},
		{"non-ascii exclusion folds case", models.SearchCriteria{Locations: []string{"כרמל"}, ExcludeKeywords: []string{"ÉLEVÉ"}}, []string{percent.Fingerprint, digits.Fingerprint}},
		{"underscore exclusion is literal", models.SearchCriteria{Locations: []string{"כרמל"}, ExcludeKeywords: []string{"100_"}}, []string{percent.Fingerprint, digits.Fingerprint, accented.Fingerprint}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Search(ctx, tt.criteria)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, fingerprints(got))
		})
	}
}

func TestSessionsAndNotifications(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-time.Minute)
	msg := "No listings found"
	id1, err := db.LogSession(ctx, &models.ScrapeSession{
		RunID: "r1", Source: "yad2", StartedAt: start, CompletedAt: start.Add(time.Second), Success: false, ErrorMessage: &msg,
	})
	require.NoError(t, err)
	id2, err := db.LogSession(ctx, &models.ScrapeSession{
		RunID: "r2", Source: "yad2", ListingsFound: 3, ListingsNew: 2, StartedAt: start.Add(10 * time.Second), CompletedAt: start.Add(20 * time.Second), Success: true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	sessions, err := db.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "r2", sessions[0].RunID)
	require.NotNil(t, sessions[1].ErrorMessage)
	assert.Equal(t, msg, *sessions[1].ErrorMessage)

	require.NoError(t, db.RecordNotification(ctx, &models.NotificationRecord{Fingerprint: "fp", Channel: "telegram", Success: true}))
	failure := "chat not found"
	require.NoError(t, db.RecordNotification(ctx, &models.NotificationRecord{Fingerprint: "fp", Channel: "telegram", ErrorMessage: &failure}))

	records, err := db.ListNotifications(ctx, "fp")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	criteria := models.SearchCriteria{
		PriceMin:        models.Float(2500),
		PriceMax:        models.Float(4000),
		Locations:       []string{"בת גלים", "נווה שאנן"},
		ExcludeKeywords: []string{"תיווך"},
		Keywords:        []string{"מרפסת"},
		Source:          "yad2",
	}
	f := models.NewStoredFilter("haifa", criteria)
	id, err := db.SaveFilter(ctx, &f)
	require.NoError(t, err)
	assert.NotZero(t, id)

	filters, err := db.ListFilters(ctx, false)
	require.NoError(t, err)
	require.Len(t, filters, 1)
	assert.Equal(t, "haifa", filters[0].Name)
	assert.Equal(t, criteria.Locations, filters[0].Criteria().Locations)
	assert.Equal(t, 4000.0, *filters[0].Criteria().PriceMax)
	assert.Equal(t, "yad2", filters[0].Criteria().Source)
	assert.Equal(t, criteria.Keywords, filters[0].Criteria().Keywords)
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	empty, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TableCounts["listings"])
	assert.Zero(t, empty.PriceAvg)

	a := testListing("t1", 3000, 3, "")
	b := testListing("t2", 3333, 3, "")
	zero := testListing("t3", 0, 3, "")
	gone := testListing("t4", 4900, 3, "")
	other := testListing("t5", 2000, 3, "")
	other.Source = "other"
	db.BatchUpsert(ctx, []*models.Listing{a, b, zero, gone, other})
	_, err = db.MarkInactive(ctx, gone.Fingerprint)
	require.NoError(t, err)
	_, err = db.LogSession(ctx, &models.ScrapeSession{Source: "yad2", Success: true, StartedAt: time.Now().UTC()})
	require.NoError(t, err)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TableCounts["listings"])
	assert.Equal(t, int64(1), stats.TableCounts["scrape_history"])
	assert.Equal(t, int64(0), stats.TableCounts["notifications"])
	assert.Equal(t, int64(3), stats.ListingsBySource["yad2"])
	assert.Equal(t, int64(1), stats.ListingsBySource["other"])
	assert.Equal(t, int64(5), stats.ListingsToday)
	assert.Equal(t, int64(5), stats.ListingsThisWeek)
	assert.Equal(t, 2000.0, stats.PriceMin)
	assert.Equal(t, 3333.0, stats.PriceMax)
	assert.Equal(t, 2777.67, stats.PriceAvg)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindIO, kindOf(errors.New("disk full")))

	db := setupTestDB(t)
	dup := models.Listing{Fingerprint: "same", Title: "x", Source: "yad2", ScrapedAt: time.Now()}
	require.NoError(t, db.db.Create(&dup).Error)
	dup.ID = 0
	err := wrapErr("insert", db.db.Create(&dup).Error)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindConstraint, se.Kind)
}

func fingerprints(listings []models.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.Fingerprint)
	}
	return out
}
