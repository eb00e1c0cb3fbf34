package scraping

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartmenthunter/config"
	"apartmenthunter/internal/models"
)

const searchURL = "https://www.yad2.co.il/realestate/rent"

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/realestate/rent", u.Path)
	return u.Query()
}

func TestBuildSearchURLs_Neighborhoods(t *testing.T) {
	c := models.SearchCriteria{
		PriceMin:  models.Float(2500),
		PriceMax:  models.Float(4000),
		RoomsMin:  models.Float(2.5),
		RoomsMax:  models.Float(4),
		Locations: []string{"בת גלים", "לא קיים", "נווה שאנן"},
	}

	urls := BuildSearchURLs(searchURL, c, config.DefaultCity(), quietLogger())
	require.Len(t, urls, 2)

	q := parseQuery(t, urls[0])
	assert.Equal(t, "2500", q.Get("minPrice"))
	assert.Equal(t, "4000", q.Get("maxPrice"))
	assert.Equal(t, "2.5", q.Get("minRooms"))
	assert.Equal(t, "4", q.Get("maxRooms"))
	assert.Equal(t, "25", q.Get("topArea"))
	assert.Equal(t, "5", q.Get("area"))
	assert.Equal(t, "4000", q.Get("city"))
	assert.Equal(t, "598", q.Get("neighborhood"))
	assert.Equal(t, "14", q.Get("zoom"))

	assert.Equal(t, "642", parseQuery(t, urls[1]).Get("neighborhood"))
}

func TestBuildSearchURLs_CityWideFallback(t *testing.T) {
	tests := []struct {
		name      string
		locations []string
	}{
		{"no locations", nil},
		{"only unknown", []string{"חיפה"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.SearchCriteria{PriceMax: models.Float(3500), Locations: tt.locations}
			urls := BuildSearchURLs(searchURL, c, config.DefaultCity(), quietLogger())
			require.Len(t, urls, 1)

			q := parseQuery(t, urls[0])
			assert.Equal(t, "2000", q.Get("minPrice"))
			assert.Equal(t, "3500", q.Get("maxPrice"))
			assert.Equal(t, "1", q.Get("minRooms"))
			assert.Equal(t, "10", q.Get("maxRooms"))
			assert.Empty(t, q.Get("neighborhood"))
			assert.Empty(t, q.Get("zoom"))
		})
	}
}
