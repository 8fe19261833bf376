package models

import "time"

// Extras keys written by the pipeline.
const (
	ExtraQuery       = "query"
	ExtraContentType = "content_type"
	ExtraScore       = "score"
	ExtraExplored    = "explored"
	ExtraStatus      = "status"
	ExtraPowerHint   = "power_hint"
	ExtraFloodZone   = "flood_zone"
	ExtraZoning      = "zoning_code"
)

// Listing is the record emitted for a verified, in-criteria candidate.
type Listing struct {
	DiscoveredAt time.Time      `json:"discoveredAt"`
	Price        *float64       `json:"price"`
	Acres        *float64       `json:"acres"`
	PricePerAcre *float64       `json:"pricePerAcre"`
	Extras       map[string]any `json:"extras,omitempty"`
	Source       string         `json:"source"`
	URL          string         `json:"url"`
	Title        string         `json:"title"`
	RunID        string         `json:"runId,omitempty"`
}

// StringExtra returns an extras value as a string.
func (l *Listing) StringExtra(key string) (string, bool) {
	v, ok := l.Extras[key]
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok && s != ""
}

// BoolExtra returns an extras value as a bool.
func (l *Listing) BoolExtra(key string) (bool, bool) {
	v, ok := l.Extras[key]
	if !ok {
		return false, false
	}

	b, ok := v.(bool)

	return b, ok
}
