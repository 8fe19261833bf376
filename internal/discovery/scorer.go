package discovery

import (
	"strings"

	"landscout/internal/models"
	"landscout/pkg/extract"
	"landscout/pkg/utils"
)

// Signals is what every scoring rule sees for one result.
type Signals struct {
	Criteria  models.Criteria
	Hints     extract.Hints
	Text      string
	Domain    string
	Preferred []string
}

// Rule adds Weight to the score when Match holds.
type Rule struct {
	Match  func(s *Signals) bool
	Name   string
	Weight float64
}

// Contribution is one rule's share of a score.
type Contribution struct {
	Rule   string
	Weight float64
}

// DefaultRules is the standard additive rule set. Rules are independent,
// so the sum does not depend on their order.
var DefaultRules = []Rule{
	{Name: "topic", Weight: 3, Match: func(s *Signals) bool { return strings.Contains(s.Text, "land for sale") }},
	{Name: "acre", Weight: 2, Match: func(s *Signals) bool { return strings.Contains(s.Text, "acre") }},
	{Name: "currency", Weight: 2, Match: func(s *Signals) bool { return strings.Contains(s.Text, "$") }},
	{Name: "parcel-vocabulary", Weight: 1.5, Match: func(s *Signals) bool { return extract.HasParcelVocabulary(s.Text) }},
	{Name: "state", Weight: 1, Match: matchState},
	{Name: "county", Weight: 1.5, Match: matchCounty},
	{Name: "price-per-acre", Weight: 3, Match: matchPricePerAcre},
	{Name: "min-acres", Weight: 1, Match: matchMinAcres},
	{Name: "max-acres", Weight: 1, Match: matchMaxAcres},
	{Name: "preferred-source", Weight: 0.5, Match: matchPreferred},
}

// Scorer assigns plausibility scores to search results.
type Scorer struct {
	rules     []Rule
	preferred []string
}

// NewScorer creates a scorer with DefaultRules.
func NewScorer(preferredDomains []string) *Scorer {
	return NewScorerWithRules(DefaultRules, preferredDomains)
}

// NewScorerWithRules creates a scorer with a custom rule set.
func NewScorerWithRules(rules []Rule, preferredDomains []string) *Scorer {
	return &Scorer{rules: rules, preferred: preferredDomains}
}

// Score sums the weights of every matching rule. It is deterministic.
func (s *Scorer) Score(title, snippet, domain string, c models.Criteria) float64 {
	total := 0.0

	for _, contrib := range s.Explain(title, snippet, domain, c) {
		total += contrib.Weight
	}

	return total
}

// Explain lists the rules that matched, in rule order.
func (s *Scorer) Explain(title, snippet, domain string, c models.Criteria) []Contribution {
	raw := title + "\n" + snippet
	sig := &Signals{
		Criteria:  c,
		Hints:     extract.FromText(raw),
		Text:      strings.ToLower(raw),
		Domain:    strings.ToLower(domain),
		Preferred: s.preferred,
	}

	var out []Contribution

	for _, rule := range s.rules {
		if rule.Match(sig) {
			out = append(out, Contribution{Rule: rule.Name, Weight: rule.Weight})
		}
	}

	return out
}

func matchState(s *Signals) bool {
	state := strings.ToLower(strings.TrimSpace(s.Criteria.State))

	return state != "" && strings.Contains(s.Text, state)
}

func matchCounty(s *Signals) bool {
	county := strings.ToLower(models.CountyName(s.Criteria.County))

	return county != "" && strings.Contains(s.Text, county)
}

func matchPricePerAcre(s *Signals) bool {
	return s.Criteria.HasMaxPricePerAcre() && s.Hints.PricePerAcre != nil &&
		*s.Hints.PricePerAcre <= s.Criteria.MaxPricePerAcre
}

func matchMinAcres(s *Signals) bool {
	return s.Criteria.HasMinAcres() && s.Hints.Acres != nil && *s.Hints.Acres >= s.Criteria.MinAcres
}

func matchMaxAcres(s *Signals) bool {
	return s.Criteria.HasMaxAcres() && s.Hints.Acres != nil && *s.Hints.Acres <= s.Criteria.MaxAcres
}

func matchPreferred(s *Signals) bool {
	for _, d := range s.Preferred {
		if utils.DomainMatches(s.Domain, d) {
			return true
		}
	}

	return false
}
