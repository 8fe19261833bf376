// Package discovery plans, ranks and gates candidate listings for one run.
package discovery

import (
	"fmt"
	"strings"

	"landscout/internal/models"
)

// topicConstraint is appended to every query.
const topicConstraint = `"land for sale" acre OR acres`

// Planner turns criteria into search queries.
type Planner struct {
	domains []string
}

// NewPlanner creates a planner. Each preferred domain gets its own scoped query.
func NewPlanner(preferredDomains []string) *Planner {
	seen := make(map[string]bool)

	var domains []string

	for _, d := range preferredDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}

		seen[d] = true
		domains = append(domains, d)
	}

	return &Planner{domains: domains}
}

// Plan returns the ordered, de-duplicated queries for c: one per preferred
// domain, or a single broad query when no domains are configured. All
// location phrasings go into each query. It never returns an empty list.
func (p *Planner) Plan(c models.Criteria) []models.Query {
	phrases := LocationPhrases(c)

	quoted := make([]string, 0, len(phrases))
	for _, loc := range phrases {
		quoted = append(quoted, fmt.Sprintf("%q", loc))
	}

	base := strings.Join(quoted, " ") + " " + topicConstraint

	if len(p.domains) == 0 {
		return []models.Query{{Text: base, Criteria: c}}
	}

	queries := make([]models.Query, 0, len(p.domains))
	for _, domain := range p.domains {
		queries = append(queries, models.Query{Text: "site:" + domain + " " + base, Domain: domain, Criteria: c})
	}

	return queries
}

// LocationPhrases returns the location spellings to search for. A county
// yields two common spellings since listing sites index them inconsistently.
func LocationPhrases(c models.Criteria) []string {
	state := strings.TrimSpace(c.State)

	county := models.CountyName(c.County)
	if county == "" {
		return []string{state}
	}

	return []string{
		fmt.Sprintf("%s County, %s", county, state),
		fmt.Sprintf("%s, %s", county, state),
	}
}
