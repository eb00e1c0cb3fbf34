package models

import "time"

// SearchCriteria holds the acceptance configuration for listings.
// Nil bounds are unrestricted; both ends of each range are inclusive.
type SearchCriteria struct {
	PriceMin        *float64 `yaml:"price_min" json:"price_min"`
	PriceMax        *float64 `yaml:"price_max" json:"price_max"`
	RoomsMin        *float64 `yaml:"rooms_min" json:"rooms_min"`
	RoomsMax        *float64 `yaml:"rooms_max" json:"rooms_max"`
	Locations       []string `yaml:"locations" json:"locations"`
	PetsRequired    *bool    `yaml:"pets_allowed" json:"pets_allowed"`
	ExcludeKeywords []string `yaml:"exclude_keywords" json:"exclude_keywords"`

	// Keywords and Source only narrow stored-listing searches.
	Keywords []string `yaml:"keywords" json:"keywords"`
	Source   string   `yaml:"source" json:"source"`
}

// MatchesText applies the text rules of a search: location, required
// keywords (any of them) and excluded keywords.
func (c SearchCriteria) MatchesText(l *Listing) bool {
	if !l.InAnyLocation(c.Locations) {
		return false
	}
	if hasAny(c.Keywords) && !l.MatchesAnyKeyword(c.Keywords) {
		return false
	}
	return !l.MatchesAnyKeyword(c.ExcludeKeywords)
}

func hasAny(values []string) bool {
	for _, v := range values {
		if v != "" {
			return true
		}
	}
	return false
}

// StoredFilter is a named SearchCriteria persisted alongside listings.
type StoredFilter struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	PriceMin        *float64  `json:"price_min"`
	PriceMax        *float64  `json:"price_max"`
	RoomsMin        *float64  `json:"rooms_min"`
	RoomsMax        *float64  `json:"rooms_max"`
	Locations       []string  `gorm:"serializer:json" json:"locations"`
	PetsAllowed     *bool     `json:"pets_allowed"`
	KeywordsInclude []string  `gorm:"serializer:json" json:"keywords_required"`
	KeywordsExclude []string  `gorm:"serializer:json" json:"keywords_excluded"`
	Source          string    `gorm:"size:50" json:"source"`
	Active          bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Criteria converts the stored row back into SearchCriteria.
func (f *StoredFilter) Criteria() SearchCriteria {
	return SearchCriteria{
		PriceMin:        f.PriceMin,
		PriceMax:        f.PriceMax,
		RoomsMin:        f.RoomsMin,
		RoomsMax:        f.RoomsMax,
		Locations:       f.Locations,
		PetsRequired:    f.PetsAllowed,
		ExcludeKeywords: f.KeywordsExclude,
		Keywords:        f.KeywordsInclude,
		Source:          f.Source,
	}
}

// NewStoredFilter snapshots criteria under a name.
func NewStoredFilter(name string, c SearchCriteria) StoredFilter {
	return StoredFilter{
		Name:            name,
		PriceMin:        c.PriceMin,
		PriceMax:        c.PriceMax,
		RoomsMin:        c.RoomsMin,
		RoomsMax:        c.RoomsMax,
		Locations:       c.Locations,
		PetsAllowed:     c.PetsRequired,
		KeywordsInclude: c.Keywords,
		KeywordsExclude: c.ExcludeKeywords,
		Source:          c.Source,
		Active:          true,
	}
}

// TableName keeps the historical table name.
func (StoredFilter) TableName() string {
	return "filters"
}
