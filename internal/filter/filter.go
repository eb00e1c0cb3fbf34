package filter

import (
	"math"

	"apartmenthunter/internal/models"
)

// RuleFilter evaluates listings against fixed acceptance criteria.
// It never mutates the listings it inspects.
type RuleFilter struct {
	criteria models.SearchCriteria
}

// NewRuleFilter creates a filter bound to criteria.
func NewRuleFilter(criteria models.SearchCriteria) *RuleFilter {
	return &RuleFilter{criteria: criteria}
}

// Criteria returns the criteria the filter was built with.
func (f *RuleFilter) Criteria() models.SearchCriteria {
	return f.criteria
}

// Passes reports whether the listing satisfies every rule.
func (f *RuleFilter) Passes(l *models.Listing) bool {
	return Passes(l, f.criteria)
}

// Filter returns the accepted subset, preserving order.
func (f *RuleFilter) Filter(listings []*models.Listing) []*models.Listing {
	accepted := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if f.Passes(l) {
			accepted = append(accepted, l)
		}
	}
	return accepted
}

// Passes is the pure predicate behind RuleFilter.
func Passes(l *models.Listing, c models.SearchCriteria) bool {
	if l == nil {
		return false
	}
	if !inRange(l.Price, c.PriceMin, c.PriceMax) {
		return false
	}
	if !inRange(l.Rooms, c.RoomsMin, c.RoomsMax) {
		return false
	}
	if !l.InAnyLocation(c.Locations) {
		return false
	}
	// Unknown pet status passes; only an explicit "no" rejects.
	if c.PetsRequired != nil && *c.PetsRequired && l.PetsAllowed != nil && !*l.PetsAllowed {
		return false
	}
	if l.MatchesAnyKeyword(c.ExcludeKeywords) {
		return false
	}
	return true
}

func inRange(v float64, min, max *float64) bool {
	lo, hi := 0.0, math.Inf(1)
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}
	return v >= lo && v <= hi
}
