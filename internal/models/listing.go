package models

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"
)

// Listing is one harvested rental ad.
type Listing struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	Fingerprint  string    `gorm:"uniqueIndex;size:64;not null" json:"fingerprint"`
	Title        string    `gorm:"not null" json:"title"`
	Description  string    `json:"description"`
	Price        float64   `gorm:"index" json:"price"`
	Rooms        float64   `gorm:"index" json:"rooms"`
	Location     string    `json:"location"`
	URL          string    `json:"url"`
	ContactPhone string    `json:"contact_phone"`
	SizeArea     *float64  `json:"size_area"`
	Parking      *bool     `json:"parking"`
	PetsAllowed  *bool     `json:"pets_allowed"`
	Source       string    `gorm:"index;size:50;not null" json:"source"`
	ScrapedAt    time.Time `gorm:"index;not null" json:"scraped_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Active       bool      `gorm:"index;not null;default:true" json:"active"`
}

// Fingerprint derives the listing identity from url, title, price and rooms.
// Any other field can change without changing the identity.
func Fingerprint(url, title string, price, rooms float64) string {
	var b strings.Builder
	b.WriteString(url)
	b.WriteString(title)
	b.WriteString(formatAmount(price))
	b.WriteString(formatAmount(rooms))
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// formatAmount prints a float the way fingerprints have always been keyed:
// shortest round-trip digits, a trailing ".0" on whole numbers, and exponent
// form below 1e-4 or from 1e16 up ("3500.0", "2.5", "1e+16").
func formatAmount(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// NewListing builds a listing and stamps its fingerprint.
func NewListing(url, title string, price, rooms float64) Listing {
	return Listing{
		Fingerprint: Fingerprint(url, title, price, rooms),
		URL:         url,
		Title:       title,
		Price:       price,
		Rooms:       rooms,
		Active:      true,
	}
}

// Refingerprint recomputes the fingerprint after identity fields were edited.
func (l *Listing) Refingerprint() {
	l.Fingerprint = Fingerprint(l.URL, l.Title, l.Price, l.Rooms)
}

// MatchesAnyKeyword reports whether any keyword appears, case-insensitively,
// in the title or description.
func (l *Listing) MatchesAnyKeyword(keywords []string) bool {
	text := strings.ToLower(l.Title + " " + l.Description)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// InAnyLocation reports whether the location contains one of the names.
// An empty list matches every listing.
func (l *Listing) InAnyLocation(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if name != "" && strings.Contains(l.Location, name) {
			return true
		}
	}
	return false
}

// Bool returns a pointer to v, for tri-state fields.
func Bool(v bool) *bool {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
