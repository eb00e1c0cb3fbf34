package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"apartmenthunter/internal/models"
)

// SearchConfig is what to look for and where.
type SearchConfig struct {
	Criteria models.SearchCriteria `yaml:"criteria"`
	City     City                  `yaml:"city"`
}

// DefaultSearchConfig searches all of Haifa between 2500 and 4000.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Criteria: models.SearchCriteria{
			PriceMin:  models.Float(2500),
			PriceMax:  models.Float(4000),
			Locations: []string{"חיפה"},
		},
		City: DefaultCity(),
	}
}

// LoadSearchConfig reads the YAML search file. A missing file yields the
// defaults with a warning; a malformed one is an error.
func LoadSearchConfig(path string, logger *logrus.Logger) (SearchConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return SearchConfig{}, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		if logger != nil {
			logger.WithField("path", absPath).Warn("Search config not found, using defaults")
		}
		return DefaultSearchConfig(), nil
	}
	if err != nil {
		return SearchConfig{}, fmt.Errorf("failed to read search config: %w", err)
	}

	return ParseSearchConfig(data)
}

// ParseSearchConfig decodes YAML; the city falls back to DefaultCity when
// the document leaves it out.
func ParseSearchConfig(data []byte) (SearchConfig, error) {
	var sc SearchConfig
	if err := yaml.UnmarshalStrict(data, &sc); err != nil {
		return SearchConfig{}, fmt.Errorf("failed to parse search config: %w", err)
	}
	if sc.City.Name == "" {
		sc.City = DefaultCity()
	}
	if err := sc.validate(); err != nil {
		return SearchConfig{}, err
	}
	return sc, nil
}

func (sc SearchConfig) validate() error {
	c := sc.Criteria
	if c.PriceMin != nil && c.PriceMax != nil && *c.PriceMin > *c.PriceMax {
		return fmt.Errorf("price_min %.0f exceeds price_max %.0f", *c.PriceMin, *c.PriceMax)
	}
	if c.RoomsMin != nil && c.RoomsMax != nil && *c.RoomsMin > *c.RoomsMax {
		return fmt.Errorf("rooms_min %g exceeds rooms_max %g", *c.RoomsMin, *c.RoomsMax)
	}
	return nil
}

// KnownLocations is the ordered list the extractor matches card text against:
// the criteria locations first, then the remaining city neighborhoods. The
// first name found in a card wins, so criteria names must never be shadowed.
func (sc SearchConfig) KnownLocations() []string {
	seen := make(map[string]bool)
	var out []string
	for _, names := range [][]string{sc.Criteria.Locations, sc.City.NeighborhoodNames()} {
		for _, name := range names {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
