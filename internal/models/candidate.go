package models

// Query is one search string derived from a run's criteria.
type Query struct {
	Text     string
	Domain   string
	Criteria Criteria
}

// RawItem is a single search result as returned by a discovery provider.
type RawItem struct {
	Title       string
	Snippet     string
	Link        string
	DisplayLink string
}

// URL returns the result link, falling back to the display link.
func (r RawItem) URL() string {
	if r.Link != "" {
		return r.Link
	}

	return r.DisplayLink
}

// ScoredCandidate is a raw item with its plausibility score.
type ScoredCandidate struct {
	Item     RawItem
	URL      string
	Domain   string
	Query    string
	Score    float64
	Order    int
	Explored bool
}
