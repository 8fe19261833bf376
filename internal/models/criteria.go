// Package models defines the data types shared across the discovery pipeline.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Criteria validation errors.
var (
	ErrMissingState     = errors.New("criteria.state is required")
	ErrNegativeBound    = errors.New("criteria numeric bounds must be non-negative")
	ErrMinAcresAboveMax = errors.New("criteria.min_acres cannot exceed criteria.max_acres")
)

// anyCounty is the placeholder the criteria editor stores for "no county".
const anyCounty = "(Any)"

// Criteria describes the location and constraints of one discovery run.
// Zero numeric bounds mean the bound is not configured.
type Criteria struct {
	State            string   `json:"state"`
	County           string   `json:"county,omitempty"`
	ReportEmail      string   `json:"report_email,omitempty"`
	ZoningWhitelist  []string `json:"zoning_whitelist,omitempty"`
	MaxPricePerAcre  float64  `json:"max_price_per_acre,omitempty"`
	MinAcres         float64  `json:"min_acres,omitempty"`
	MaxAcres         float64  `json:"max_acres,omitempty"`
	PowerNearby      bool     `json:"power_nearby,omitempty"`
	ExcludeFloodZone bool     `json:"exclude_flood_zone,omitempty"`
}

// LoadCriteria reads criteria from a JSON file and normalizes them.
func LoadCriteria(path string) (Criteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Criteria{}, fmt.Errorf("failed to read criteria file: %w", err)
	}

	var c Criteria
	if err := json.Unmarshal(data, &c); err != nil {
		return Criteria{}, fmt.Errorf("failed to parse criteria: %w", err)
	}

	c = c.Normalized()
	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}

	return c, nil
}

// Normalized returns a copy with trimmed names and the county placeholder removed.
func (c Criteria) Normalized() Criteria {
	c.State = strings.TrimSpace(c.State)
	c.County = CountyName(c.County)

	var zoning []string

	for _, z := range c.ZoningWhitelist {
		if z = strings.TrimSpace(z); z != "" {
			zoning = append(zoning, z)
		}
	}

	c.ZoningWhitelist = zoning

	return c
}

// Validate checks the criteria for a usable run.
func (c Criteria) Validate() error {
	if strings.TrimSpace(c.State) == "" {
		return ErrMissingState
	}

	if c.MinAcres < 0 || c.MaxAcres < 0 || c.MaxPricePerAcre < 0 {
		return ErrNegativeBound
	}

	if c.HasMinAcres() && c.HasMaxAcres() && c.MinAcres > c.MaxAcres {
		return fmt.Errorf("%w: %.2f > %.2f", ErrMinAcresAboveMax, c.MinAcres, c.MaxAcres)
	}

	return nil
}

// HasCounty reports whether the run is scoped to a county.
func (c Criteria) HasCounty() bool {
	return CountyName(c.County) != ""
}

// HasMinAcres reports whether a minimum acreage is configured.
func (c Criteria) HasMinAcres() bool { return c.MinAcres > 0 }

// HasMaxAcres reports whether a maximum acreage is configured.
func (c Criteria) HasMaxAcres() bool { return c.MaxAcres > 0 }

// HasMaxPricePerAcre reports whether a price-per-acre ceiling is configured.
func (c Criteria) HasMaxPricePerAcre() bool { return c.MaxPricePerAcre > 0 }

// Location returns a display name like "Tippecanoe County, Indiana".
func (c Criteria) Location() string {
	if county := CountyName(c.County); county != "" {
		return fmt.Sprintf("%s County, %s", county, c.State)
	}

	return c.State
}

// CountyName strips the placeholder and a trailing " County" from a county value.
func CountyName(county string) string {
	county = strings.TrimSpace(county)
	if county == anyCounty {
		return ""
	}

	return strings.TrimSpace(strings.TrimSuffix(county, " County"))
}
