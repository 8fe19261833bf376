package normalizer

import (
	"strings"
	"time"

	"landscout/internal/models"
	"landscout/pkg/extract"
	"landscout/pkg/utils"
)

// Transformer builds listings from verified candidates.
type Transformer struct {
	now    func() time.Time
	source string
}

// NewTransformer creates a transformer that stamps listings with source.
func NewTransformer(source string) *Transformer {
	return &Transformer{
		now:    time.Now,
		source: source,
	}
}

// Transform merges the verifier's hints with values read from the search
// result text. Verifier values win; text fills the gaps; price per acre is
// derived from the merged price and acreage when neither side quoted it.
func (t *Transformer) Transform(cand models.ScoredCandidate, res models.VerificationResult, runID string) *models.Listing {
	text := strings.TrimSpace(cand.Item.Title + "\n" + cand.Item.Snippet)
	fromText := extract.FromText(text)

	price := firstKnown(res.Price, fromText.Price)
	acres := firstKnown(res.Acres, fromText.Acres)

	ppa := firstKnown(res.PricePerAcre, fromText.PricePerAcre)
	if ppa == nil {
		ppa = extract.PricePerAcre(price, acres)
	}

	url := res.CanonicalURL
	if url == "" {
		url = cand.URL
	}

	title := utils.NormalizeWhitespace(cand.Item.Title)
	if title == "" {
		title = res.Title
	}

	extras := map[string]any{
		models.ExtraQuery:    cand.Query,
		models.ExtraScore:    extract.Round2(cand.Score),
		models.ExtraExplored: cand.Explored,
		models.ExtraStatus:   res.Status,
	}

	if res.ContentType != "" {
		extras[models.ExtraContentType] = res.ContentType
	}

	return &models.Listing{
		DiscoveredAt: t.now().UTC(),
		Source:       t.source,
		URL:          url,
		Title:        title,
		Price:        price,
		Acres:        acres,
		PricePerAcre: ppa,
		Extras:       extras,
		RunID:        runID,
	}
}

func firstKnown(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}

	return nil
}
