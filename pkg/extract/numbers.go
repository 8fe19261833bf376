// Package extract parses price and acreage hints out of free listing text.
//
// Every parser returns nil when nothing recognizable is found; a missing value
// is "unknown", never an error.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyRe   = regexp.MustCompile(`(?i)\$\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?\s*(million|thousand|mm|k|m)?\b`)
	perAcreRe = regexp.MustCompile(`(?i)^\s*(?:/|per|an|a)\s*(?:acre|ac)\b`)
	acresRe   = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+)[\s-]*(?:\+/-|\+-|±)?[\s-]*(?:acres?|ac)\b`)

	// fractionRe matches the "1/" or "2 1/" before a fraction's denominator.
	fractionRe = regexp.MustCompile(`(?:(\d+)[\s-]+)?(\d+)/$`)
)

type moneyMatch struct {
	value   float64
	perAcre bool
}

// Price returns the first dollar amount in text that is not quoted per acre.
func Price(text string) *float64 {
	for _, m := range moneyMatches(text) {
		if !m.perAcre {
			return floatPtr(m.value)
		}
	}

	return nil
}

// PricePerAcreText returns the first dollar amount in text quoted per acre,
// such as "$4,500/acre" or "$4.5k per acre".
func PricePerAcreText(text string) *float64 {
	for _, m := range moneyMatches(text) {
		if m.perAcre {
			return floatPtr(m.value)
		}
	}

	return nil
}

// Acres returns the first acreage figure in text.
func Acres(text string) *float64 {
	for _, loc := range acresRe.FindAllStringSubmatchIndex(text, -1) {
		start := loc[2]
		if start > 0 && strings.HasSuffix(strings.TrimRight(text[:start], " "), "$") {
			continue
		}

		digits := text[loc[2]:loc[3]]

		if m := fractionRe.FindStringSubmatch(text[:start]); m != nil {
			if v, ok := fraction(m[1], m[2], digits); ok {
				return floatPtr(v)
			}

			continue
		}

		v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
		if err != nil || v <= 0 {
			continue
		}

		return floatPtr(v)
	}

	return nil
}

// fraction evaluates "whole num/den" as in "2 1/2 acres". whole may be empty.
func fraction(whole, num, den string) (float64, bool) {
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, false
	}

	d, err := strconv.Atoi(den)
	if err != nil || d == 0 {
		return 0, false
	}

	v := float64(n) / float64(d)

	if whole != "" {
		w, err := strconv.Atoi(whole)
		if err != nil {
			return 0, false
		}

		v += float64(w)
	}

	if v <= 0 {
		return 0, false
	}

	return Round2(v), true
}

// PricePerAcre divides price by acres rounded to cents.
// It returns nil when either value is unknown or acres is not positive.
func PricePerAcre(price, acres *float64) *float64 {
	if price == nil || acres == nil || *acres <= 0 {
		return nil
	}

	return floatPtr(Round2(*price / *acres))
}

// Hints bundles the three values extracted from one text.
type Hints struct {
	Price        *float64
	Acres        *float64
	PricePerAcre *float64
}

// FromText extracts all hints from text. PricePerAcre is only the explicitly
// quoted figure; callers derive it from price and acres when they need to.
func FromText(text string) Hints {
	return Hints{
		Price:        Price(text),
		Acres:        Acres(text),
		PricePerAcre: PricePerAcreText(text),
	}
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func moneyMatches(text string) []moneyMatch {
	var out []moneyMatch

	for _, loc := range moneyRe.FindAllStringSubmatchIndex(text, -1) {
		digits := strings.ReplaceAll(text[loc[2]:loc[3]], ",", "")
		if loc[4] >= 0 {
			digits += "." + text[loc[4]:loc[5]]
		}

		v, err := strconv.ParseFloat(digits, 64)
		if err != nil || v <= 0 {
			continue
		}

		if loc[6] >= 0 {
			switch strings.ToLower(text[loc[6]:loc[7]]) {
			case "k", "thousand":
				v *= 1_000
			case "m", "mm", "million":
				v *= 1_000_000
			}
		}

		out = append(out, moneyMatch{
			value:   v,
			perAcre: perAcreRe.MatchString(text[loc[1]:]),
		})
	}

	return out
}

func floatPtr(v float64) *float64 {
	return &v
}
