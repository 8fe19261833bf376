package normalizer

import (
	"errors"
	"testing"

	"landscout/internal/models"
)

func TestValidator_Validate(t *testing.T) {
	criteria := models.Criteria{
		State:            "Indiana",
		MinAcres:         5,
		MaxAcres:         100,
		MaxPricePerAcre:  8000,
		PowerNearby:      true,
		ExcludeFloodZone: true,
		ZoningWhitelist:  []string{"ag", "A-1"},
	}

	tests := []struct {
		want    error
		listing *models.Listing
		name    string
	}{
		{name: "all unknown kept", listing: &models.Listing{}},
		{name: "within bounds", listing: &models.Listing{Acres: ptr(40), Price: ptr(180000)}},
		{name: "below min", listing: &models.Listing{Acres: ptr(2)}, want: ErrBelowMinAcres},
		{name: "above max", listing: &models.Listing{Acres: ptr(500)}, want: ErrAboveMaxAcres},
		{name: "quoted ppa too high", listing: &models.Listing{PricePerAcre: ptr(9000)}, want: ErrAboveMaxPricePerAcre},
		{name: "computed ppa too high", listing: &models.Listing{Price: ptr(900000), Acres: ptr(50)}, want: ErrAboveMaxPricePerAcre},
		{name: "price without acres kept", listing: &models.Listing{Price: ptr(9_000_000)}},
		{name: "explicit no power", listing: &models.Listing{Extras: map[string]any{models.ExtraPowerHint: false}}, want: ErrNoPowerNearby},
		{name: "power present", listing: &models.Listing{Extras: map[string]any{models.ExtraPowerHint: true}}},
		{name: "flood AE", listing: &models.Listing{Extras: map[string]any{models.ExtraFloodZone: "Zone AE"}}, want: ErrHighRiskFloodZone},
		{name: "flood X", listing: &models.Listing{Extras: map[string]any{models.ExtraFloodZone: "X"}}},
		{name: "zoning match", listing: &models.Listing{Extras: map[string]any{models.ExtraZoning: "AG-2"}}},
		{name: "zoning miss", listing: &models.Listing{Extras: map[string]any{models.ExtraZoning: "R-3"}}, want: ErrZoningNotAllowed},
	}

	v := NewValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.listing, criteria)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Expected keep, got %v", err)
				}

				return
			}

			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidator_UnconfiguredFiltersIgnoreHints(t *testing.T) {
	l := &models.Listing{
		Acres: ptr(1),
		Extras: map[string]any{
			models.ExtraPowerHint: false,
			models.ExtraFloodZone: "AE",
			models.ExtraZoning:    "R-1",
		},
	}

	if !NewValidator().Keep(l, models.Criteria{State: "Ohio"}) {
		t.Error("Expected listing kept when no filter is configured")
	}
}

func TestValidator_CustomPredicates(t *testing.T) {
	v := NewValidatorWithPredicates(
		func(zone string) bool { return zone == "coastal" },
		func(code string, _ []string) bool { return code == "rural" },
	)

	c := models.Criteria{State: "Maine", ExcludeFloodZone: true, ZoningWhitelist: []string{"anything"}}

	if v.Keep(&models.Listing{Extras: map[string]any{models.ExtraFloodZone: "coastal"}}, c) {
		t.Error("Expected custom flood predicate to drop")
	}

	if !v.Keep(&models.Listing{Extras: map[string]any{models.ExtraZoning: "rural"}}, c) {
		t.Error("Expected custom zoning predicate to keep")
	}
}

func TestDefaultFloodZoneRisk(t *testing.T) {
	cases := map[string]bool{
		"AE":       true,
		"zone ve":  true,
		"A 1":      true,
		"X":        false,
		"Shaded X": false,
		"V zone":   true,
	}

	for zone, want := range cases {
		if got := DefaultFloodZoneRisk(zone); got != want {
			t.Errorf("DefaultFloodZoneRisk(%q): expected %v, got %v", zone, want, got)
		}
	}
}

func TestPricePerAcreRoundTrip(t *testing.T) {
	// 40 acres at 200000 must give exactly 5000 in both the transformer and the filter.
	cand := models.ScoredCandidate{Item: models.RawItem{Title: "Tract"}, URL: "https://a.example/"}
	res := models.VerificationResult{OK: true, Price: ptr(200000), Acres: ptr(40)}

	l := NewTransformer("websearch").Transform(cand, res, "")
	if l.PricePerAcre == nil || *l.PricePerAcre != 5000.0 {
		t.Fatalf("Expected 5000.0, got %v", l.PricePerAcre)
	}

	c := models.Criteria{State: "Ohio", MaxPricePerAcre: 5000}
	if !NewValidator().Keep(&models.Listing{Price: ptr(200000), Acres: ptr(40)}, c) {
		t.Error("Expected filter to compute 5000 and keep at the boundary")
	}
}

func TestDropReason(t *testing.T) {
	if DropReason(ErrZoningNotAllowed) != "zoning" {
		t.Error("Expected zoning label")
	}

	if DropReason(errors.New("x")) != "other" {
		t.Error("Expected other label")
	}
}
