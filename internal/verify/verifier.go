// Package verify performs the live check that gates every candidate.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"landscout/internal/crawler"
	"landscout/internal/logger"
	"landscout/internal/models"
	"landscout/pkg/extract"
)

// Fetcher retrieves a page. *crawler.Scraper satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.Page, error)
}

// Verifier classifies a URL as a live, on-topic listing page or not.
type Verifier struct {
	fetcher Fetcher
	parser  *crawler.Parser
	policy  *Policy
	logger  *logger.Logger
}

// NewVerifier creates a verifier. A nil policy allows every http(s) URL.
func NewVerifier(fetcher Fetcher, policy *Policy, log *logger.Logger) *Verifier {
	if policy == nil {
		policy = NewPolicy(nil, true)
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Verifier{
		fetcher: fetcher,
		parser:  crawler.NewParser(),
		policy:  policy,
		logger:  log,
	}
}

// Verify fetches rawURL and classifies it. The first matching rule wins:
// policy refusal, transport failure, status >= 400, non-HTML content type,
// no listing signals in the page. Anything else is ok, with best-effort hints.
func (v *Verifier) Verify(ctx context.Context, rawURL string) (result models.VerificationResult) {
	result.URL = rawURL
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)
		v.logger.Debug(fmt.Sprintf("verify %s: ok=%t reason=%s status=%d", rawURL, result.OK, result.Reason, result.Status))
	}()

	if err := v.policy.Check(rawURL); err != nil {
		result.Reason = models.ReasonBlockedByPolicy
		result.Error = err.Error()

		return result
	}

	page, err := v.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		result.Reason = models.ReasonNetworkError
		result.Error = err.Error()

		return result
	}

	result.Status = page.Status
	result.Attempts = page.Attempts
	result.FinalURL = page.FinalURL
	result.ContentType = normalizeContentType(page.ContentType)

	if page.Status >= http.StatusBadRequest {
		result.Reason = models.ReasonDead

		return result
	}

	if result.ContentType != "" && !isHTMLContentType(result.ContentType) {
		result.Reason = models.ReasonWrongContentType

		return result
	}

	base := page.FinalURL
	if base == "" {
		base = rawURL
	}

	info, err := v.parser.ParseHTML(page.Body, base)
	if err != nil {
		result.Reason = models.ReasonOffTopic
		result.Error = err.Error()

		return result
	}

	text := info.Summary()
	if !extract.IsTopical(text) {
		result.Reason = models.ReasonOffTopic

		return result
	}

	hints := extract.FromText(text)
	if hints.PricePerAcre == nil {
		hints.PricePerAcre = extract.PricePerAcre(hints.Price, hints.Acres)
	}

	result.OK = true
	result.Title = info.Title
	result.CanonicalURL = info.CanonicalURL
	result.Price = hints.Price
	result.Acres = hints.Acres
	result.PricePerAcre = hints.PricePerAcre

	if result.CanonicalURL == "" {
		result.CanonicalURL = base
	}

	return result
}

func normalizeContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}

	return strings.ToLower(strings.TrimSpace(ct))
}

func isHTMLContentType(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml"
}
