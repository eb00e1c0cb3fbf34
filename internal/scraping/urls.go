package scraping

import (
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"apartmenthunter/config"
	"apartmenthunter/internal/models"
)

// Query bounds used when the criteria leave a range open.
const (
	defaultPriceMin  = 2000
	defaultPriceMax  = 5000
	cityRoomsMin     = 1
	cityRoomsMax     = 10
	areaRoomsMin     = 2
	areaRoomsMax     = 4
	neighborhoodZoom = 14
)

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func formatRooms(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func baseQuery(c models.SearchCriteria, city config.City, roomsMin, roomsMax float64) url.Values {
	q := url.Values{}
	q.Set("minPrice", strconv.Itoa(int(orDefault(c.PriceMin, defaultPriceMin))))
	q.Set("maxPrice", strconv.Itoa(int(orDefault(c.PriceMax, defaultPriceMax))))
	q.Set("minRooms", formatRooms(orDefault(c.RoomsMin, roomsMin)))
	q.Set("maxRooms", formatRooms(orDefault(c.RoomsMax, roomsMax)))
	q.Set("topArea", strconv.Itoa(city.TopArea))
	q.Set("area", strconv.Itoa(city.Area))
	q.Set("city", strconv.Itoa(city.Code))
	return q
}

// BuildSearchURLs returns one search URL per configured location with a
// known neighborhood code. Unknown locations are skipped with a warning; when
// nothing is left a single city-wide URL is returned.
func BuildSearchURLs(searchURL string, c models.SearchCriteria, city config.City, logger *logrus.Logger) []string {
	cityWide := []string{searchURL + "?" + baseQuery(c, city, cityRoomsMin, cityRoomsMax).Encode()}

	if len(c.Locations) == 0 {
		logger.Info("No locations configured, using city-wide search")
		return cityWide
	}

	var urls []string
	for _, location := range c.Locations {
		code, ok := city.NeighborhoodCode(location)
		if !ok {
			logger.WithFields(logrus.Fields{
				"location":  location,
				"available": city.NeighborhoodNames(),
			}).Warn("Unknown neighborhood, skipping")
			continue
		}
		q := baseQuery(c, city, areaRoomsMin, areaRoomsMax)
		q.Set("neighborhood", strconv.Itoa(code))
		q.Set("zoom", strconv.Itoa(neighborhoodZoom))
		urls = append(urls, searchURL+"?"+q.Encode())
	}

	if len(urls) == 0 {
		logger.Info("No known neighborhoods, using city-wide search")
		return cityWide
	}
	return urls
}
