// Package ads sequences sponsor interstitials between video selections.
//
// This package enables fanfeed to:
// - Load the sponsor catalog bundled with the binary
// - Rotate ads through a reshuffling queue without immediate repeats
// - Keep a featured ad pinned in the inline banner slot
// - Gate video playback behind the current ad
package ads

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// FeaturedAdID is the catalog entry pinned to the inline banner by default.
const FeaturedAdID = 100

// AdItem is one sponsor creative.
type AdItem struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Image string `json:"image"`
	Title string `json:"title"`
	CTA   string `json:"cta"`
}

//go:embed catalog.json
var catalogJSON []byte

var defaultCatalog = mustParseCatalog(catalogJSON)

// DefaultCatalog returns a copy of the bundled catalog.
func DefaultCatalog() []AdItem {
	out := make([]AdItem, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// ParseCatalog decodes a catalog and rejects duplicate ids.
func ParseCatalog(data []byte) ([]AdItem, error) {
	var items []AdItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse ad catalog: %w", err)
	}
	seen := make(map[int]struct{}, len(items))
	for _, ad := range items {
		if _, dup := seen[ad.ID]; dup {
			return nil, fmt.Errorf("ad catalog: duplicate id %d", ad.ID)
		}
		seen[ad.ID] = struct{}{}
	}
	return items, nil
}

func mustParseCatalog(data []byte) []AdItem {
	items, err := ParseCatalog(data)
	if err != nil {
		panic(err)
	}
	return items
}

// FindByID returns the catalog entry with id.
func FindByID(catalog []AdItem, id int) (AdItem, bool) {
	for _, ad := range catalog {
		if ad.ID == id {
			return ad, true
		}
	}
	return AdItem{}, false
}

// ResolveFeatured picks the banner ad: the override id when it exists in the
// catalog, else FeaturedAdID, else none. An override of 0 means unset.
func ResolveFeatured(catalog []AdItem, override int) (AdItem, bool) {
	if override != 0 {
		if ad, ok := FindByID(catalog, override); ok {
			return ad, true
		}
	}
	return FindByID(catalog, FeaturedAdID)
}
