package sink

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"landscout/internal/logger"
	"landscout/internal/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Landscout-Signature"

// Webhook POSTs each listing as JSON to a URL.
type Webhook struct {
	httpClient *http.Client
	logger     *logger.Logger
	endpoint   string
	token      string
	secret     string
}

// NewWebhook creates a webhook sink. token and secret are optional.
func NewWebhook(endpoint, token, secret string, log *logger.Logger) *Webhook {
	return &Webhook{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:   log,
		endpoint: endpoint,
		token:    token,
		secret:   secret,
	}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Emit posts l. Any non-2xx response is an error.
func (w *Webhook) Emit(ctx context.Context, l *models.Listing) (err error) {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if w.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", w.token))
	}

	if w.secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	// Limit response size to 64KB
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if w.logger != nil {
			w.logger.Error(fmt.Sprintf("Webhook failed with status %d: %s", resp.StatusCode, string(respBody)))
		}

		return fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return nil
}

// Close is a no-op.
func (w *Webhook) Close() error { return nil }
