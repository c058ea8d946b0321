// Package scraper fetches external availability pages and extracts
// seat figures from their HTML.  Extraction is rule based: each field
// has a CSS selector, overridable per source, and every rule is
// independently optional so a page that only exposes some of the
// fields still yields a usable partial result.
package scraper

// SelectorConfig names the CSS selectors used to locate each field on
// a source page.  Empty fields fall back to the defaults below, so a
// zero value is a valid configuration.
type SelectorConfig struct {
	PlacesAvailable string `json:"places_available,omitempty"`
	PlacesTotal     string `json:"places_total,omitempty"`
	DepartureDates  string `json:"departure_dates,omitempty"`
	Status          string `json:"status,omitempty"`
}

// Default selectors cover the markup conventions seen on partner GIR
// pages, both French and English variants.
var defaultSelectors = SelectorConfig{
	PlacesAvailable: ".places-disponibles, .places-available, [data-places-available]",
	PlacesTotal:     ".places-total, .capacity, [data-places-total]",
	DepartureDates:  ".date-depart, .departure-date, [data-departure-date]",
	Status:          ".statut, .status, .availability-status",
}

// WithDefaults returns the config with every empty selector replaced
// by its default.  Pure function, the receiver is not mutated.
func (c SelectorConfig) WithDefaults() SelectorConfig {
	if c.PlacesAvailable == "" {
		c.PlacesAvailable = defaultSelectors.PlacesAvailable
	}
	if c.PlacesTotal == "" {
		c.PlacesTotal = defaultSelectors.PlacesTotal
	}
	if c.DepartureDates == "" {
		c.DepartureDates = defaultSelectors.DepartureDates
	}
	if c.Status == "" {
		c.Status = defaultSelectors.Status
	}
	return c
}
