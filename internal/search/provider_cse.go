package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"landscout/internal/config"
	"landscout/internal/models"
)

// cseProvider queries Google Programmable Search.
type cseProvider struct {
	endpoint    string
	apiKey      string
	cx          string
	timeoutSecs int
}

func (p *cseProvider) Name() string {
	return config.ProviderCSE
}

func (p *cseProvider) Search(ctx context.Context, query string, count int) ([]models.RawItem, error) {
	searchURL, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, err
	}

	values := searchURL.Query()
	values.Set("key", p.apiKey)
	values.Set("cx", p.cx)
	values.Set("q", query)
	values.Set("num", strconv.Itoa(ClampCount(count)))
	values.Set("safe", "off")
	searchURL.RawQuery = values.Encode()

	data, err := getJSON(ctx, searchURL.String(), map[string]string{"Accept": "application/json"}, p.timeoutSecs)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []struct {
			Title        string `json:"title"`
			Link         string `json:"link"`
			Snippet      string `json:"snippet"`
			FormattedURL string `json:"formattedUrl"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	items := make([]models.RawItem, 0, len(resp.Items))
	for _, entry := range resp.Items {
		items = append(items, models.RawItem{
			Title:       strings.TrimSpace(entry.Title),
			Snippet:     strings.TrimSpace(entry.Snippet),
			Link:        strings.TrimSpace(entry.Link),
			DisplayLink: strings.TrimSpace(entry.FormattedURL),
		})
	}

	return items, nil
}
