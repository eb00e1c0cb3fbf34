package config

import "sort"

// City holds the source's area codes for one city and its neighborhoods.
type City struct {
	Name          string         `yaml:"name"`
	TopArea       int            `yaml:"top_area"`
	Area          int            `yaml:"area"`
	Code          int            `yaml:"code"`
	Neighborhoods map[string]int `yaml:"neighborhoods"`
}

// DefaultCity is Haifa with the neighborhoods searched out of the box.
func DefaultCity() City {
	return City{
		Name:    "חיפה",
		TopArea: 25,
		Area:    5,
		Code:    4000,
		Neighborhoods: map[string]int{
			"בת גלים":   598,
			"נווה שאנן": 642,
			"רמות רמז":  637,
			"רמות אלון": 635,
		},
	}
}

// NeighborhoodCode resolves a configured location to the source's code.
func (c City) NeighborhoodCode(name string) (int, bool) {
	code, ok := c.Neighborhoods[name]
	return code, ok
}

// NeighborhoodNames lists the known neighborhoods, sorted.
func (c City) NeighborhoodNames() []string {
	names := make([]string, 0, len(c.Neighborhoods))
	for name := range c.Neighborhoods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
