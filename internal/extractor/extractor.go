package extractor

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/models"
)

// Field names reported by ExtractError.
const (
	FieldTitle       = "title"
	FieldPrice       = "price"
	FieldRooms       = "rooms"
	FieldLocation    = "location"
	FieldURL         = "url"
	FieldDescription = "description"
)

// ExtractError marks a field no strategy could fill. It is never fatal: the
// field keeps its zero value.
type ExtractError struct {
	Field     string
	Candidate string
}

func (e *ExtractError) Error() string {
	if e.Candidate == "" {
		return fmt.Sprintf("no strategy produced %s", e.Field)
	}
	return fmt.Sprintf("no strategy produced %s for %s", e.Field, e.Candidate)
}

// Config tunes extraction. Zero values fall back to DefaultConfig.
type Config struct {
	BaseURL       string
	Source        string
	Locations     []string
	CityName      string
	MaxCandidates int
	PriceMin      float64
	PriceMax      float64
	RoomsMin      float64
	RoomsMax      float64
	Now           func() time.Time
}

// DefaultConfig returns the reference plausibility bounds and limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://www.yad2.co.il",
		Source:        "yad2",
		CityName:      "חיפה",
		MaxCandidates: 10,
		PriceMin:      1000,
		PriceMax:      5000,
		RoomsMin:      0.5,
		RoomsMax:      5,
		Now:           time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Source == "" {
		c.Source = d.Source
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	if c.PriceMax <= 0 {
		c.PriceMin, c.PriceMax = d.PriceMin, d.PriceMax
	}
	if c.RoomsMax <= 0 {
		c.RoomsMin, c.RoomsMax = d.RoomsMin, d.RoomsMax
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Result is the outcome of extracting one page.
type Result struct {
	Listings   []*models.Listing
	Candidates int
	Dropped    int
	Misses     []*ExtractError
}

// Extractor turns page content into listings.
type Extractor struct {
	cfg      Config
	base     *url.URL
	logger   *logrus.Logger
	title    []strategy[string]
	price    []strategy[float64]
	rooms    []strategy[float64]
	location []strategy[string]
	desc     []strategy[string]
	phone    []strategy[string]
	size     []strategy[float64]
	parking  strategy[bool]
	pets     strategy[bool]
}

// New creates an extractor.
func New(cfg Config, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	cfg = cfg.withDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		logger.WithError(err).WithField("base_url", cfg.BaseURL).Warn("Invalid base URL, links stay relative")
		base = nil
	}

	known := append([]string{}, cfg.Locations...)
	if cfg.CityName != "" {
		known = append(known, cfg.CityName)
	}

	return &Extractor{
		cfg:      cfg,
		base:     base,
		logger:   logger,
		title:    titleStrategies(),
		price:    priceStrategies(bounds{Min: cfg.PriceMin, Max: cfg.PriceMax}),
		rooms:    roomsStrategies(bounds{Min: cfg.RoomsMin, Max: cfg.RoomsMax}),
		location: locationStrategies(known),
		desc:     descriptionStrategies(),
		phone:    phoneStrategies(),
		size:     sizeStrategies(),
		parking:  keywordFlag(parkingNo, parkingYes),
		pets:     keywordFlag(petsNo, petsYes),
	}
}

// candidate pairs an element with the anchor that surfaced it.
type candidate struct {
	el     *Element
	anchor *Element
}

// candidates finds listing containers: parents of item links, de-duplicated
// by href and capped at MaxCandidates.
func (x *Extractor) candidates(root *Element) []candidate {
	anchors := root.FindWhere("a", "href", isItemLink)
	seen := make(map[string]bool, len(anchors))
	out := make([]candidate, 0, x.cfg.MaxCandidates)
	for _, a := range anchors {
		if len(out) >= x.cfg.MaxCandidates {
			break
		}
		href, _ := a.Attr("href")
		if seen[href] {
			continue
		}
		seen[href] = true
		el := a.Parent()
		if el == nil {
			el = a
		}
		out = append(out, candidate{el: el, anchor: a})
	}
	return out
}

// Extract parses page content and returns every complete listing on it.
// Malformed markup yields an empty result rather than an error.
func (x *Extractor) Extract(content string) Result {
	var res Result
	root, err := Parse(content)
	if err != nil {
		x.logger.WithError(err).Warn("Failed to parse page content")
		return res
	}

	cands := x.candidates(root)
	res.Candidates = len(cands)
	for _, c := range cands {
		listing, misses := x.extractOne(c)
		res.Misses = append(res.Misses, misses...)
		if !complete(listing) {
			res.Dropped++
			x.logger.WithFields(logrus.Fields{
				"title": listing.Title,
				"price": listing.Price,
				"rooms": listing.Rooms,
				"url":   listing.URL,
			}).Debug("Dropping incomplete candidate")
			continue
		}
		res.Listings = append(res.Listings, listing)
	}

	x.logger.WithFields(logrus.Fields{
		"candidates": res.Candidates,
		"listings":   len(res.Listings),
		"dropped":    res.Dropped,
	}).Debug("Extracted page")
	return res
}

// ExtractListing applies the field strategies to a single element.
func (x *Extractor) ExtractListing(el *Element) (*models.Listing, []*ExtractError) {
	return x.extractOne(candidate{el: el})
}

func (x *Extractor) extractOne(c candidate) (*models.Listing, []*ExtractError) {
	var misses []*ExtractError
	var href string
	if c.anchor != nil {
		href, _ = c.anchor.Attr("href")
	}
	miss := func(field string) {
		misses = append(misses, &ExtractError{Field: field, Candidate: href})
	}

	link, ok := firstOf(c.el, urlStrategies(x.base, c.anchor)...)
	if !ok {
		miss(FieldURL)
	}
	title, ok := firstOf(c.el, x.title...)
	if !ok {
		miss(FieldTitle)
	}
	price, ok := firstOf(c.el, x.price...)
	if !ok {
		miss(FieldPrice)
	}
	rooms, ok := firstOf(c.el, x.rooms...)
	if !ok {
		miss(FieldRooms)
	}

	l := models.NewListing(link, title, price, rooms)
	l.Source = x.cfg.Source
	l.ScrapedAt = x.cfg.Now().UTC()

	if l.Location, ok = firstOf(c.el, x.location...); !ok {
		miss(FieldLocation)
	}
	if l.Description, ok = firstOf(c.el, x.desc...); !ok {
		miss(FieldDescription)
	}
	l.ContactPhone, _ = firstOf(c.el, x.phone...)
	if size, ok := firstOf(c.el, x.size...); ok {
		l.SizeArea = models.Float(size)
	}
	if v, ok := x.parking(c.el); ok {
		l.Parking = models.Bool(v)
	}
	if v, ok := x.pets(c.el); ok {
		l.PetsAllowed = models.Bool(v)
	}
	return &l, misses
}

// complete is the minimum bar for promoting a candidate to a listing.
func complete(l *models.Listing) bool {
	return runeLen(strings.TrimSpace(l.Title)) > minTitleLength &&
		l.Price > 0 &&
		l.Rooms > 0 &&
		strings.Contains(l.URL, itemPath)
}
