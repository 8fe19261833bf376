// Package sink delivers emitted listings to files, databases and webhooks.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"landscout/internal/config"
	"landscout/internal/logger"
	"landscout/internal/models"
)

// Sink errors.
var (
	ErrClosed               = errors.New("sink is closed")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
)

// Sink receives listings one at a time.
type Sink interface {
	Emit(ctx context.Context, l *models.Listing) error
	Close() error
}

// Multi fans each listing out to every sink. One failing sink does not stop
// the others.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Emit writes l to every sink and joins their errors.
func (m *Multi) Emit(ctx context.Context, l *models.Listing) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Emit(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Len returns the number of combined sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Collector keeps listings in memory.
type Collector struct {
	listings []*models.Listing
	mu       sync.Mutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit appends l.
func (c *Collector) Emit(_ context.Context, l *models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listings = append(c.listings, l)

	return nil
}

// Close is a no-op.
func (c *Collector) Close() error { return nil }

// Listings returns a copy of everything emitted so far.
func (c *Collector) Listings() []*models.Listing {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*models.Listing(nil), c.listings...)
}

// Reset drops the collected listings.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listings = nil
}

// Open builds the sinks named in cfg.Sinks. Sinks opened before a failure
// are closed again.
func Open(ctx context.Context, cfg config.OutputConfig, log *logger.Logger) (*Multi, error) {
	var sinks []Sink

	fail := func(err error) (*Multi, error) {
		_ = NewMulti(sinks...).Close()

		return nil, err
	}

	for _, kind := range cfg.Sinks {
		var (
			s   Sink
			err error
		)

		switch kind {
		case config.SinkJSONL:
			s, err = NewJSONL(cfg.Path)
		case config.SinkSQLite:
			s, err = NewSQLite(ctx, cfg.SQLitePath)
		case config.SinkPostgres:
			s, err = NewPostgres(ctx, cfg.PostgresDSN, cfg.PostgresSchema)
		case config.SinkWebhook:
			s = NewWebhook(cfg.WebhookURL, cfg.WebhookToken, cfg.WebhookSecret, log)
		default:
			err = fmt.Errorf("%w: %q", config.ErrInvalidSink, kind)
		}

		if err != nil {
			return fail(fmt.Errorf("failed to open %s sink: %w", kind, err))
		}

		log.Debug(fmt.Sprintf("opened %s sink", kind))

		sinks = append(sinks, s)
	}

	return NewMulti(sinks...), nil
}
