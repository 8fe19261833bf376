package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"

	"landscout/pkg/utils"
)

// ErrUnparsableHTML is returned when a body cannot be read as HTML.
var ErrUnparsableHTML = errors.New("unparsable HTML")

// defaultMaxTextRunes caps the visible text kept per page.
const defaultMaxTextRunes = 100_000

// PageInfo is what the parser recovers from a listing page.
type PageInfo struct {
	Title        string
	Description  string
	CanonicalURL string
	SiteName     string
	Text         string
}

// Summary joins title, description and visible text, most specific first.
func (p *PageInfo) Summary() string {
	parts := make([]string, 0, 3)

	for _, s := range []string{p.Title, p.Description, p.Text} {
		if s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, "\n")
}

// Parser extracts metadata and visible text from HTML pages.
type Parser struct {
	maxTextRunes int
}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{maxTextRunes: defaultMaxTextRunes}
}

// ParseHTML reads body as HTML. baseURL resolves relative canonical links.
func (p *Parser) ParseHTML(body []byte, baseURL string) (*PageInfo, error) {
	og := opengraph.NewOpenGraph()
	// OpenGraph data is optional; goquery below covers pages without it.
	_ = og.ProcessHTML(bytes.NewReader(body))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparsableHTML, err)
	}

	info := &PageInfo{
		Title:       utils.NormalizeWhitespace(og.Title),
		Description: utils.NormalizeWhitespace(og.Description),
		SiteName:    og.SiteName,
	}

	if info.Title == "" {
		info.Title = extractTitle(doc)
	}

	if info.Description == "" {
		if desc, ok := doc.Find("meta[name='description']").First().Attr("content"); ok {
			info.Description = utils.NormalizeWhitespace(desc)
		}
	}

	canonical, _ := doc.Find("link[rel~='canonical']").First().Attr("href")
	if canonical = resolveURL(baseURL, canonical); canonical == "" {
		canonical = resolveURL(baseURL, og.URL)
	}

	info.CanonicalURL = canonical

	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	info.Text = utils.TruncateString(utils.NormalizeWhitespace(text), p.maxTextRunes)

	return info, nil
}

// extractTitle extracts a title from HTML using goquery.
func extractTitle(doc *goquery.Document) string {
	if title := utils.NormalizeWhitespace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	return utils.NormalizeWhitespace(doc.Find("h1").First().Text())
}

// resolveURL resolves ref against base and keeps only http(s) results.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	if baseURL, err := url.Parse(base); err == nil && base != "" {
		refURL = baseURL.ResolveReference(refURL)
	}

	refURL.Fragment = ""

	resolved := refURL.String()
	if !utils.IsValidURL(resolved) {
		return ""
	}

	return resolved
}
