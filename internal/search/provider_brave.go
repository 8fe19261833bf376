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

type braveProvider struct {
	endpoint    string
	apiKey      string
	timeoutSecs int
}

func (p *braveProvider) Name() string {
	return config.ProviderBrave
}

func (p *braveProvider) Search(ctx context.Context, query string, count int) ([]models.RawItem, error) {
	searchURL, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, err
	}

	values := searchURL.Query()
	values.Set("q", query)
	values.Set("count", strconv.Itoa(ClampCount(count)))
	values.Set("safesearch", "off")
	searchURL.RawQuery = values.Encode()

	data, err := getJSON(ctx, searchURL.String(), map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": p.apiKey,
	}, p.timeoutSecs)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	items := make([]models.RawItem, 0, len(resp.Web.Results))
	for _, entry := range resp.Web.Results {
		items = append(items, models.RawItem{
			Title:   strings.TrimSpace(entry.Title),
			Snippet: strings.TrimSpace(entry.Description),
			Link:    strings.TrimSpace(entry.URL),
		})
	}

	return items, nil
}
