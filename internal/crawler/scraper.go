// Package crawler fetches and parses candidate listing pages.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"landscout/internal/config"
	"landscout/pkg/utils"
)

// Scraper errors.
var (
	ErrInvalidURL = errors.New("invalid URL")
)

// TurnWaiter paces requests per host. *ratelimit.Limiter satisfies it.
type TurnWaiter interface {
	WaitTurn(ctx context.Context, host string) error
}

// Page is the outcome of a fetch that reached the server.
type Page struct {
	URL         string
	FinalURL    string
	ContentType string
	Body        []byte
	Status      int
	Attempts    int
	Duration    time.Duration
}

// Scraper handles page fetches with config-driven retry logic.
type Scraper struct {
	client       *http.Client
	retryPolicy  *config.RetryPolicy
	limiter      TurnWaiter
	recorder     *URLManager
	sleep        func(ctx context.Context, d time.Duration) error
	userAgent    string
	bufferSizeKb int
}

// NewScraper creates a new scraper instance with default config and no pacing.
func NewScraper() *Scraper {
	return NewScraperWithConfig(&config.RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMs:    500,
		MaxDelayMs:        8000,
		BackoffMultiplier: 2.0,
		TimeoutSec:        15,
	}, 2048, "", nil)
}

// NewScraperWithConfig creates a new scraper with a custom retry policy.
// limiter may be nil to skip per-host pacing.
func NewScraperWithConfig(retryPolicy *config.RetryPolicy, bufferSizeKb int, userAgent string, limiter TurnWaiter) *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: retryPolicy.GetTimeout(),
		},
		retryPolicy:  retryPolicy,
		limiter:      limiter,
		sleep:        sleepCtx,
		userAgent:    userAgent,
		bufferSizeKb: bufferSizeKb,
	}
}

// SetRecorder makes the scraper log every attempt into um.
func (s *Scraper) SetRecorder(um *URLManager) {
	s.recorder = um
}

// Fetch retrieves url. The limiter is consulted before every attempt.
// Transport failures and retryable statuses are retried with backoff; any other
// response, including 4xx and 5xx, is returned as a Page with a nil error.
// A non-nil error means no usable response was received.
func (s *Scraper) Fetch(ctx context.Context, url string) (*Page, error) {
	if !utils.IsValidURL(url) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}

	host := utils.HostOf(url)

	var (
		lastErr  error
		lastPage *Page
	)

	totalDuration := time.Duration(0)

	for attempt := 1; attempt <= s.retryPolicy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.retryPolicy.GetRetryDelay(attempt)); err != nil {
				return nil, err
			}
		}

		if s.limiter != nil {
			if err := s.limiter.WaitTurn(ctx, host); err != nil {
				return nil, err
			}
		}

		startTime := time.Now()
		page, err := s.fetchOnce(ctx, url)
		duration := time.Since(startTime)
		totalDuration += duration

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			lastPage = nil
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, s.retryPolicy.MaxAttempts, err)
			s.record(url, false, lastErr, 0, duration)

			continue
		}

		page.Attempts = attempt
		page.Duration = totalDuration
		lastPage, lastErr = page, nil

		s.record(url, page.Status < http.StatusBadRequest, nil, page.Status, duration)

		// Only retry on specific status codes
		if isRetryableStatus(page.Status) && attempt < s.retryPolicy.MaxAttempts {
			continue
		}

		return page, nil
	}

	if lastPage != nil {
		return lastPage, nil
	}

	return nil, lastErr
}

func (s *Scraper) fetchOnce(ctx context.Context, url string) (page *Page, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = utils.BuildHeaders(s.userAgent, nil)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	// bufferSizeKb is in KB, convert to bytes
	limit := int64(s.bufferSizeKb) * 1024
	reader := io.LimitReader(resp.Body, limit)

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Page{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Status:      resp.StatusCode,
	}, nil
}

func (s *Scraper) record(url string, success bool, err error, status int, duration time.Duration) {
	if s.recorder != nil {
		s.recorder.RecordAttempt(url, success, err, status, duration)
	}
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	// Retry on temporary failures
	switch statusCode {
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusRequestTimeout: // 408
		return true
	}

	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
