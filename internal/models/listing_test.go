package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := NewListing("https://www.yad2.co.il/realestate/item/abc", "דירה יפה בבת גלים", 3500, 3)
	a.Description = "first description"
	b := NewListing("https://www.yad2.co.il/realestate/item/abc", "דירה יפה בבת גלים", 3500, 3)
	b.Description = "a completely different description"
	b.Location = "חיפה"

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Len(t, a.Fingerprint, 32)
}

func TestFingerprint_IdentityFields(t *testing.T) {
	base := Fingerprint("https://x/realestate/item/1", "title here", 3000, 2.5)

	tests := []struct {
		name string
		fp   string
	}{
		{"url", Fingerprint("https://x/realestate/item/2", "title here", 3000, 2.5)},
		{"title", Fingerprint("https://x/realestate/item/1", "other title", 3000, 2.5)},
		{"price", Fingerprint("https://x/realestate/item/1", "title here", 3100, 2.5)},
		{"rooms", Fingerprint("https://x/realestate/item/1", "title here", 3000, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.fp)
		})
	}
}

func TestFingerprint_KnownDigests(t *testing.T) {
	tests := []struct {
		price, rooms float64
		want         string
	}{
		{3500, 3, "d18b2b66973895c80798845c8e018714"},
		{3200.5, 2.5, "888c6a288f4461a9f42051b3ca03d5de"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fingerprint("https://www.yad2.co.il/realestate/item/abc", "דירה", tt.price, tt.rooms))
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[float64]string{
		3500:    "3500.0",
		2.5:     "2.5",
		0:       "0.0",
		0.00001: "1e-05",
		1e16:    "1e+16",
		0.1:     "0.1",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatAmount(in), "input %v", in)
	}
}

func TestListing_Refingerprint(t *testing.T) {
	l := NewListing("u", "t", 1, 1)
	before := l.Fingerprint
	l.Price = 2
	l.Refingerprint()
	assert.NotEqual(t, before, l.Fingerprint)
	assert.Equal(t, Fingerprint("u", "t", 2, 1), l.Fingerprint)
}

func TestListing_MatchesAnyKeyword(t *testing.T) {
	l := Listing{Title: "Nice flat", Description: "Contact the BROKER today"}

	assert.True(t, l.MatchesAnyKeyword([]string{"broker"}))
	assert.True(t, l.MatchesAnyKeyword([]string{"nothing", "NICE"}))
	assert.False(t, l.MatchesAnyKeyword([]string{"garden"}))
	assert.False(t, l.MatchesAnyKeyword(nil))
	assert.False(t, l.MatchesAnyKeyword([]string{""}))
}

func TestStoredFilter_RoundTrip(t *testing.T) {
	c := SearchCriteria{
		PriceMin:        Float(2500),
		PriceMax:        Float(4000),
		Locations:       []string{"בת גלים"},
		PetsRequired:    Bool(true),
		ExcludeKeywords: []string{"תיווך"},
		Keywords:        []string{"מרפסת"},
		Source:          "yad2",
	}
	f := NewStoredFilter("default", c)
	assert.True(t, f.Active)
	assert.Equal(t, c, f.Criteria())
}
