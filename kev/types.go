package kev

import "encoding/json"

const (
	// DefaultFeedURL is the CISA Known Exploited Vulnerabilities Catalog.
	DefaultFeedURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"
	// DefaultSchemaURL is the JSON Schema published alongside the catalog.
	DefaultSchemaURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities_schema.json"
)

// Catalog is the envelope of the KEV JSON feed. Vulnerability records are
// kept as raw JSON so new feed fields pass through without a model change.
type Catalog struct {
	Title           string            `json:"title"`
	CatalogVersion  string            `json:"catalogVersion"`
	DateReleased    string            `json:"dateReleased"`
	Count           int               `json:"count"`
	Vulnerabilities []json.RawMessage `json:"vulnerabilities"`
}

// Entry is a single catalog record: the extracted identifier plus the
// record exactly as the feed supplied it.
type Entry struct {
	ID   string
	Data json.RawMessage
}
