// Package search wraps third-party web search APIs behind a fail-soft client.
package search

import (
	"context"
	"errors"
	"fmt"

	"landscout/internal/config"
	"landscout/internal/models"
)

// Search errors.
var (
	ErrMissingCredentials = errors.New("search credentials are not configured")
	ErrUnknownProvider    = errors.New("unknown search provider")
	ErrUnexpectedStatus   = errors.New("unexpected status code")
	ErrMalformedResponse  = errors.New("malformed provider response")
)

// Default endpoints.
const (
	DefaultCSEEndpoint   = "https://www.googleapis.com/customsearch/v1"
	DefaultBraveEndpoint = "https://api.search.brave.com/res/v1/web/search"
)

// MaxItemsPerQuery is the largest page size the providers accept.
const MaxItemsPerQuery = 10

// Provider performs one web search against a specific backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]models.RawItem, error)
}

// NewProvider builds the provider named in cfg.
func NewProvider(cfg config.SearchConfig) (Provider, error) {
	if !cfg.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	switch cfg.Provider {
	case config.ProviderCSE, "":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultCSEEndpoint
		}

		return &cseProvider{endpoint: endpoint, apiKey: cfg.APIKey, cx: cfg.ScopeID, timeoutSecs: cfg.TimeoutSec}, nil
	case config.ProviderBrave:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultBraveEndpoint
		}

		return &braveProvider{endpoint: endpoint, apiKey: cfg.APIKey, timeoutSecs: cfg.TimeoutSec}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// ClampCount limits n to the range the providers accept.
func ClampCount(n int) int {
	if n < 1 {
		return 1
	}

	if n > MaxItemsPerQuery {
		return MaxItemsPerQuery
	}

	return n
}
