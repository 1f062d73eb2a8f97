// Package kev models the Known Exploited Vulnerabilities Catalog feed and
// turns validated feed bytes into catalog entries.
package kev

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/araddon/dateparse"
)

// ParseError reports a feed that passed schema validation but is
// semantically malformed (missing or duplicate identifiers).
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse deserializes validated feed bytes into catalog entries, preserving
// feed order. Every entry must carry a non-empty cveID, unique within the
// feed.
func Parse(data []byte) ([]Entry, error) {
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, &ParseError{Reason: "failed to unmarshal KEV catalog", Err: err}
	}

	if released, err := dateparse.ParseAny(catalog.DateReleased); err == nil {
		log.Printf("KEV catalog version %s released %s", catalog.CatalogVersion, released.Format(time.RFC3339))
	}

	if catalog.Count != len(catalog.Vulnerabilities) {
		log.Printf("reported vulnerability count (%d) does not match actual count (%d)",
			catalog.Count, len(catalog.Vulnerabilities))
	}

	entries := make([]Entry, 0, len(catalog.Vulnerabilities))
	seen := make(map[string]struct{}, len(catalog.Vulnerabilities))
	for _, raw := range catalog.Vulnerabilities {
		var v struct {
			CveID string `json:"cveID"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &ParseError{Reason: "failed to unmarshal vulnerability", Err: err}
		}
		if v.CveID == "" {
			return nil, &ParseError{Reason: "cveID not found in KEV entry"}
		}
		if _, ok := seen[v.CveID]; ok {
			return nil, &ParseError{Reason: fmt.Sprintf("duplicate cveID in KEV feed: %s", v.CveID)}
		}
		seen[v.CveID] = struct{}{}
		entries = append(entries, Entry{ID: v.CveID, Data: raw})
	}

	return entries, nil
}
