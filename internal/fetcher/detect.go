package fetcher

import "strings"

// DefaultBlockMarkers are substrings seen on the source's challenge pages.
var DefaultBlockMarkers = []string{
	"Are you for real",
	"אבטחת אתר",
	"h-captcha",
	"hcaptcha",
	"ShieldSquare",
	"robot_checkup",
}

// Detector recognises bot-challenge pages.
type Detector struct {
	markers []string
}

// NewDetector uses DefaultBlockMarkers when markers is empty.
func NewDetector(markers ...string) *Detector {
	if len(markers) == 0 {
		markers = DefaultBlockMarkers
	}
	return &Detector{markers: markers}
}

// Detect returns the first marker found in content.
func (d *Detector) Detect(content string) (string, bool) {
	for _, m := range d.markers {
		if strings.Contains(content, m) {
			return m, true
		}
	}
	return "", false
}

// IsBlocked reports whether content is a challenge page.
func (d *Detector) IsBlocked(content string) bool {
	_, blocked := d.Detect(content)
	return blocked
}

// Check converts a challenge page into a BlockedError.
func (d *Detector) Check(url, content string) error {
	if marker, blocked := d.Detect(content); blocked {
		return &BlockedError{URL: url, Marker: marker}
	}
	return nil
}
