package extractor

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	minTitleLength       = 5
	minFallbackTitle     = 10
	minDescriptionLength = 10
	itemPath             = "/realestate/item/"
)

var (
	hebrewPattern = regexp.MustCompile(`[\x{0590}-\x{05FF}]`)

	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}[,.]?\d{3,4})\s*₪`),
		regexp.MustCompile(`₪\s*(\d{1,2}[,.]?\d{3,4})`),
		regexp.MustCompile(`(\d{1,2}[,.]?\d{3,4})\s*שקל`),
		regexp.MustCompile(`(\d{1,2}[,.]?\d{3,4})\s*ש"ח`),
		regexp.MustCompile(`מחיר[:\s]*(\d{1,2}[,.]?\d{3,4})`),
		regexp.MustCompile(`(\d{4,5})\s*(?:₪|שקל|ש"ח)`),
	}
	priceFallback = regexp.MustCompile(`\b(\d{4,5})\b`)

	roomsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*חדרים`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*חד`),
		regexp.MustCompile(`חדרים[:\s]*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*ח[׳']`),
	}
	roomsFallback = regexp.MustCompile(`\b(\d+\.5|\d+)\b`)

	neighborhoodPattern = regexp.MustCompile(`שכונת\s+([\x{0590}-\x{05FF}]+(?:\s[\x{0590}-\x{05FF}]+)?)`)

	phonePattern = regexp.MustCompile(`\b(0(?:5\d|[2-4]|[89]|7\d)-?\d{3}-?\d{4})\b`)
	sizePattern  = regexp.MustCompile(`(\d{2,3}(?:\.\d+)?)\s*(?:מ"ר|מ״ר|מטר|מ'|m²|sqm)`)

	parkingNo  = []string{"ללא חניה", "בלי חניה", "אין חניה"}
	parkingYes = []string{"חניה", "חנייה", "parking"}
	petsNo     = []string{"ללא חיות", "בלי חיות", "אסור חיות", "לא מתאים לבעלי חיים", "no pets"}
	petsYes    = []string{"חיות מחמד", "בעלי חיים", "מותר חיות", "pets allowed", "pet friendly"}
)

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// parseAmount normalises "3,200" or "3.200" to 3200.
func parseAmount(raw string) (float64, bool) {
	raw = strings.NewReplacer(",", "", ".", "").Replace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// bounds is an inclusive plausibility range.
type bounds struct {
	Min float64
	Max float64
}

func (b bounds) contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

func titleBySelector(selector string) strategy[string] {
	return func(el *Element) (string, bool) {
		for _, found := range el.FindAll(selector) {
			if t := clean(found.Text()); runeLen(t) > minTitleLength {
				return t, true
			}
		}
		return "", false
	}
}

// titleByScript scans headings and text containers for the first string with
// Hebrew characters, which filters out menus and boilerplate.
func titleByScript(el *Element) (string, bool) {
	for _, found := range el.FindAll("h1, h2, h3, div, span, a") {
		t := clean(found.Text())
		if runeLen(t) > minFallbackTitle && hebrewPattern.MatchString(t) {
			return t, true
		}
	}
	return "", false
}

func titleStrategies() []strategy[string] {
	return []strategy[string]{
		titleBySelector("h1"),
		titleBySelector("h2"),
		titleBySelector("h3"),
		titleBySelector("div.title"),
		titleBySelector("span.title"),
		titleBySelector(`a[class*="title"]`),
		titleBySelector(`div[class*="title"]`),
		titleByScript,
	}
}

func amountByPattern(re *regexp.Regexp, parse func(string) (float64, bool), plausible bounds) strategy[float64] {
	return func(el *Element) (float64, bool) {
		for _, m := range re.FindAllStringSubmatch(el.Text(), -1) {
			if v, ok := parse(m[1]); ok && plausible.contains(v) {
				return v, true
			}
		}
		return 0, false
	}
}

func priceStrategies(plausible bounds) []strategy[float64] {
	out := make([]strategy[float64], 0, len(pricePatterns)+1)
	for _, re := range pricePatterns {
		out = append(out, amountByPattern(re, parseAmount, plausible))
	}
	return append(out, amountByPattern(priceFallback, parseAmount, plausible))
}

func parseRooms(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

// roomsNearKeyword only fires when the text mentions rooms at all.
func roomsNearKeyword(plausible bounds) strategy[float64] {
	inner := amountByPattern(roomsFallback, parseRooms, plausible)
	return func(el *Element) (float64, bool) {
		text := el.Text()
		if !strings.Contains(text, "חדר") && !strings.Contains(text, "חד") {
			return 0, false
		}
		return inner(el)
	}
}

func roomsStrategies(plausible bounds) []strategy[float64] {
	out := make([]strategy[float64], 0, len(roomsPatterns)+1)
	for _, re := range roomsPatterns {
		out = append(out, amountByPattern(re, parseRooms, plausible))
	}
	return append(out, roomsNearKeyword(plausible))
}

func locationByKnownNames(names []string) strategy[string] {
	return func(el *Element) (string, bool) {
		text := el.Text()
		for _, name := range names {
			if name != "" && strings.Contains(text, name) {
				return name, true
			}
		}
		return "", false
	}
}

func locationByNeighborhoodMarker(el *Element) (string, bool) {
	if m := neighborhoodPattern.FindStringSubmatch(el.Text()); m != nil {
		return clean(m[1]), true
	}
	return "", false
}

func locationStrategies(known []string) []strategy[string] {
	return []strategy[string]{
		locationByKnownNames(known),
		locationByNeighborhoodMarker,
	}
}

func isItemLink(href string) bool {
	lower := strings.ToLower(href)
	return strings.Contains(lower, itemPath) && !strings.Contains(lower, "project")
}

// urlStrategies resolve hrefs against base. anchor is the link that made the
// element a candidate; it may be nil.
func urlStrategies(base *url.URL, anchor *Element) []strategy[string] {
	resolve := func(href string) string {
		if base == nil {
			return href
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return href
		}
		return base.ResolveReference(ref).String()
	}
	return []strategy[string]{
		func(*Element) (string, bool) {
			if anchor == nil {
				return "", false
			}
			if href, ok := anchor.Attr("href"); ok && isItemLink(href) {
				return resolve(href), true
			}
			return "", false
		},
		func(el *Element) (string, bool) {
			for _, link := range el.Links() {
				if href, _ := link.Attr("href"); isItemLink(href) {
					return resolve(href), true
				}
			}
			return "", false
		},
		func(el *Element) (string, bool) {
			for _, link := range el.Links() {
				href, _ := link.Attr("href")
				href = strings.TrimSpace(href)
				if href != "" && !strings.HasPrefix(href, "#") {
					return resolve(href), true
				}
			}
			return "", false
		},
	}
}

func descriptionBySelector(selector string) strategy[string] {
	return func(el *Element) (string, bool) {
		for _, found := range el.FindAll(selector) {
			if t := clean(found.Text()); runeLen(t) > minDescriptionLength {
				return t, true
			}
		}
		return "", false
	}
}

func descriptionStrategies() []strategy[string] {
	return []strategy[string]{
		descriptionBySelector(`div[class*="description"]`),
		descriptionBySelector(`p[class*="description"]`),
		descriptionBySelector(`div[class*="content"]`),
	}
}

func phoneStrategies() []strategy[string] {
	return []strategy[string]{
		func(el *Element) (string, bool) {
			links := el.FindWhere("a", "href", func(v string) bool {
				return strings.HasPrefix(strings.ToLower(v), "tel:")
			})
			for _, link := range links {
				href, _ := link.Attr("href")
				if phone := strings.TrimSpace(href[len("tel:"):]); phone != "" {
					return phone, true
				}
			}
			return "", false
		},
		func(el *Element) (string, bool) {
			if m := phonePattern.FindStringSubmatch(el.Text()); m != nil {
				return m[1], true
			}
			return "", false
		},
	}
}

func sizeStrategies() []strategy[float64] {
	return []strategy[float64]{
		amountByPattern(sizePattern, parseRooms, bounds{Min: 10, Max: 1000}),
	}
}

// keywordFlag yields false when a negative phrase appears, true for a
// positive one. Negatives are checked first since they contain positives.
func keywordFlag(no, yes []string) strategy[bool] {
	return func(el *Element) (bool, bool) {
		text := strings.ToLower(el.Text())
		for _, k := range no {
			if strings.Contains(text, k) {
				return false, true
			}
		}
		for _, k := range yes {
			if strings.Contains(text, k) {
				return true, true
			}
		}
		return false, false
	}
}
