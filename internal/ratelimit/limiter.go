// Package ratelimit spaces out requests to the same host across the whole process.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Options configures a Limiter.
type Options struct {
	MinInterval time.Duration
	JitterMin   time.Duration
	JitterMax   time.Duration
}

// Limiter grants turns per host. Each turn waits until MinInterval plus a
// random jitter has passed since the previous turn for that host. Callers for
// the same host serialize; different hosts proceed independently.
type Limiter struct {
	hosts map[string]*hostTurn
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
	opts  Options
	mu    sync.Mutex
}

type hostTurn struct {
	last time.Time
	mu   sync.Mutex
}

var (
	processOnce    sync.Once
	processLimiter *Limiter
)

// Process returns the limiter shared by the whole process. The options of the
// first call win; later calls get the same instance.
func Process(opts Options) *Limiter {
	processOnce.Do(func() {
		processLimiter = New(opts)
	})

	return processLimiter
}

// New creates a standalone limiter.
func New(opts Options) *Limiter {
	if opts.JitterMax < opts.JitterMin {
		opts.JitterMax = opts.JitterMin
	}

	return &Limiter{
		hosts: make(map[string]*hostTurn),
		now:   time.Now,
		sleep: sleepCtx,
		rand:  rand.Float64,
		opts:  opts,
	}
}

// WaitTurn blocks until host may be contacted again. On cancellation it
// returns ctx.Err() and the turn is not recorded.
func (l *Limiter) WaitTurn(ctx context.Context, host string) error {
	turn := l.turnFor(strings.ToLower(host))

	turn.mu.Lock()
	defer turn.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !turn.last.IsZero() {
		next := turn.last.Add(l.opts.MinInterval + l.jitter())
		if wait := next.Sub(l.now()); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	turn.last = l.now()

	return nil
}

// LastTurn returns when host was last granted a turn.
func (l *Limiter) LastTurn(host string) (time.Time, bool) {
	l.mu.Lock()
	turn, ok := l.hosts[strings.ToLower(host)]
	l.mu.Unlock()

	if !ok {
		return time.Time{}, false
	}

	turn.mu.Lock()
	defer turn.mu.Unlock()

	return turn.last, !turn.last.IsZero()
}

func (l *Limiter) turnFor(host string) *hostTurn {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn, ok := l.hosts[host]
	if !ok {
		turn = &hostTurn{}
		l.hosts[host] = turn
	}

	return turn
}

func (l *Limiter) jitter() time.Duration {
	span := l.opts.JitterMax - l.opts.JitterMin
	if span <= 0 {
		return l.opts.JitterMin
	}

	return l.opts.JitterMin + time.Duration(l.rand()*float64(span))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
