package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"landscout/internal/models"
	"landscout/pkg/extract"
)

// Criteria filter errors. Each names the reason a listing was dropped.
var (
	ErrBelowMinAcres        = errors.New("acreage below minimum")
	ErrAboveMaxAcres        = errors.New("acreage above maximum")
	ErrAboveMaxPricePerAcre = errors.New("price per acre above maximum")
	ErrNoPowerNearby        = errors.New("listing reports no power nearby")
	ErrHighRiskFloodZone    = errors.New("listing is in a high-risk flood zone")
	ErrZoningNotAllowed     = errors.New("zoning not in whitelist")
)

// FloodZoneRisk reports whether a flood-zone designation is high risk.
type FloodZoneRisk func(zone string) bool

// ZoningAllowed reports whether a zoning code passes the whitelist.
type ZoningAllowed func(code string, whitelist []string) bool

// highRiskFloodTokens match FEMA special flood hazard designations.
var highRiskFloodTokens = []string{"AE", "A ", " VE", "V "}

// DefaultFloodZoneRisk flags zones containing a FEMA high-risk token.
func DefaultFloodZoneRisk(zone string) bool {
	upper := strings.ToUpper(zone)

	for _, tok := range highRiskFloodTokens {
		if strings.Contains(upper, tok) {
			return true
		}
	}

	return false
}

// DefaultZoningAllowed accepts a code containing any whitelist entry, ignoring case.
func DefaultZoningAllowed(code string, whitelist []string) bool {
	upper := strings.ToUpper(code)

	for _, w := range whitelist {
		if w = strings.ToUpper(strings.TrimSpace(w)); w != "" && strings.Contains(upper, w) {
			return true
		}
	}

	return false
}

// Validator applies the numeric criteria filter. Unknown values and missing
// hints never cause a drop.
type Validator struct {
	floodRisk     FloodZoneRisk
	zoningAllowed ZoningAllowed
}

// NewValidator creates a validator with the default flood and zoning rules.
func NewValidator() *Validator {
	return NewValidatorWithPredicates(DefaultFloodZoneRisk, DefaultZoningAllowed)
}

// NewValidatorWithPredicates creates a validator with region-specific rules.
func NewValidatorWithPredicates(floodRisk FloodZoneRisk, zoningAllowed ZoningAllowed) *Validator {
	if floodRisk == nil {
		floodRisk = DefaultFloodZoneRisk
	}

	if zoningAllowed == nil {
		zoningAllowed = DefaultZoningAllowed
	}

	return &Validator{floodRisk: floodRisk, zoningAllowed: zoningAllowed}
}

// Validate returns nil when l satisfies c.
func (v *Validator) Validate(l *models.Listing, c models.Criteria) error {
	if l.Acres != nil {
		if c.HasMinAcres() && *l.Acres < c.MinAcres {
			return fmt.Errorf("%w: %.2f < %.2f", ErrBelowMinAcres, *l.Acres, c.MinAcres)
		}

		if c.HasMaxAcres() && *l.Acres > c.MaxAcres {
			return fmt.Errorf("%w: %.2f > %.2f", ErrAboveMaxAcres, *l.Acres, c.MaxAcres)
		}
	}

	if c.HasMaxPricePerAcre() {
		ppa := l.PricePerAcre
		if ppa == nil {
			ppa = extract.PricePerAcre(l.Price, l.Acres)
		}

		if ppa != nil && *ppa > c.MaxPricePerAcre {
			return fmt.Errorf("%w: %.2f > %.2f", ErrAboveMaxPricePerAcre, *ppa, c.MaxPricePerAcre)
		}
	}

	if c.PowerNearby {
		if power, ok := l.BoolExtra(models.ExtraPowerHint); ok && !power {
			return ErrNoPowerNearby
		}
	}

	if c.ExcludeFloodZone {
		if zone, ok := l.StringExtra(models.ExtraFloodZone); ok && strings.TrimSpace(zone) != "" && v.floodRisk(zone) {
			return fmt.Errorf("%w: %s", ErrHighRiskFloodZone, zone)
		}
	}

	if len(c.ZoningWhitelist) > 0 {
		if code, ok := l.StringExtra(models.ExtraZoning); ok && !v.zoningAllowed(code, c.ZoningWhitelist) {
			return fmt.Errorf("%w: %s", ErrZoningNotAllowed, code)
		}
	}

	return nil
}

// Keep reports whether l passes the filter.
func (v *Validator) Keep(l *models.Listing, c models.Criteria) bool {
	return v.Validate(l, c) == nil
}

// DropReason returns a short label for a filter error, for run statistics.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrBelowMinAcres):
		return "below-min-acres"
	case errors.Is(err, ErrAboveMaxAcres):
		return "above-max-acres"
	case errors.Is(err, ErrAboveMaxPricePerAcre):
		return "above-max-price-per-acre"
	case errors.Is(err, ErrNoPowerNearby):
		return "no-power"
	case errors.Is(err, ErrHighRiskFloodZone):
		return "flood-zone"
	case errors.Is(err, ErrZoningNotAllowed):
		return "zoning"
	default:
		return "other"
	}
}
