package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"landscout/internal/config"
	"landscout/internal/logger"
	"landscout/internal/models"
	"landscout/pkg/utils"
)

// Client runs discovery queries. It never returns an error: failures are
// logged and yield an empty result so the run can continue.
type Client struct {
	provider     Provider
	limiter      *rate.Limiter
	logger       *logger.Logger
	disabledOnce sync.Once
}

// NewClient creates a client for the configured provider. Missing
// credentials produce a disabled client rather than an error.
func NewClient(cfg config.SearchConfig, log *logger.Logger) *Client {
	provider, err := NewProvider(cfg)
	if err != nil && !errors.Is(err, ErrMissingCredentials) {
		log.Error(fmt.Sprintf("search provider unavailable: %v", err))
	}

	return NewClientWithProvider(provider, cfg.MaxQPS, log)
}

// NewClientWithProvider creates a client around p, allowing at most qps
// provider calls per second. A nil provider yields a disabled client.
func NewClientWithProvider(p Provider, qps float64, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}

	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}

	return &Client{
		provider: p,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   log,
	}
}

// Enabled reports whether the client can search. The first negative answer
// is logged; later ones are silent.
func (c *Client) Enabled() bool {
	if c.provider != nil {
		return true
	}

	c.disabledOnce.Do(func() {
		c.logger.Warn("⚠️  Search credentials missing; discovery is disabled")
	})

	return false
}

// Fetch runs one query and returns at most maxItems results, clamped to 1..10.
// There is a single attempt per call.
func (c *Client) Fetch(ctx context.Context, query string, maxItems int) []models.RawItem {
	if !c.Enabled() {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Debug(fmt.Sprintf("search wait aborted: %v", err))

		return nil
	}

	count := ClampCount(maxItems)

	items, err := c.provider.Search(ctx, query, count)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("❌ %s search failed for %q: %v", c.provider.Name(), utils.TruncateString(query, 120), err))

		return nil
	}

	if len(items) > count {
		items = items[:count]
	}

	c.logger.Debug(fmt.Sprintf("%s returned %d items for %q", c.provider.Name(), len(items), query))

	return items
}
