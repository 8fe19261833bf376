package extract

import "strings"

// ParcelTerms are words that mark listing or parcel identifiers.
var ParcelTerms = []string{"mls", "apn", "parcel", "lot size"}

// HasParcelVocabulary reports whether text mentions a parcel identifier term.
func HasParcelVocabulary(text string) bool {
	lower := strings.ToLower(text)

	for _, term := range ParcelTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}

	return false
}

// IsTopical reports whether text carries any land-listing signal: an acreage
// unit, a dollar price, or parcel vocabulary.
func IsTopical(text string) bool {
	if strings.Contains(strings.ToLower(text), "acre") {
		return true
	}

	if Price(text) != nil || PricePerAcreText(text) != nil {
		return true
	}

	return HasParcelVocabulary(text)
}
