package scraper

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// digitRun matches the first run of digits inside an element's text,
// so markup like "Il reste 7 places !" yields 7.
var digitRun = regexp.MustCompile(`\d+`)

// Extracted is the outcome of running the extraction rules against a
// fetched page.  Numeric fields are pointers: nil means the selector
// matched nothing or no digits were found, which is deliberately
// distinct from an extracted zero.
type Extracted struct {
	PlacesAvailable *int     `json:"places_available,omitempty"`
	PlacesTotal     *int     `json:"places_total,omitempty"`
	DepartureDates  []string `json:"departure_dates,omitempty"`
	Status          string   `json:"status,omitempty"`
}

// Extract parses the HTML document and applies the selector rules.
// Only a malformed document is an error; rules that match nothing
// simply leave their field unset.
func Extract(body []byte, cfg SelectorConfig) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	cfg = cfg.WithDefaults()

	out := &Extracted{}
	out.PlacesAvailable = extractInt(doc, cfg.PlacesAvailable)
	out.PlacesTotal = extractInt(doc, cfg.PlacesTotal)

	doc.Find(cfg.DepartureDates).Each(func(_ int, sel *goquery.Selection) {
		if txt := strings.TrimSpace(sel.Text()); txt != "" {
			out.DepartureDates = append(out.DepartureDates, txt)
		}
	})

	// The textual status is checked after the numeric extraction and
	// takes precedence: a page announcing "complet"/"full" forces the
	// availability to zero even when a stale counter still shows seats.
	if st := strings.ToLower(strings.TrimSpace(doc.Find(cfg.Status).First().Text())); st != "" {
		out.Status = st
		if strings.Contains(st, "complet") || strings.Contains(st, "full") {
			zero := 0
			out.PlacesAvailable = &zero
		}
	}
	return out, nil
}

// extractInt takes the first element matched by the selector and
// parses the first digit run of its text.  Returns nil when nothing
// matches or the text carries no digits.
func extractInt(doc *goquery.Document, selector string) *int {
	txt := strings.TrimSpace(doc.Find(selector).First().Text())
	if txt == "" {
		return nil
	}
	m := digitRun.FindString(txt)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
