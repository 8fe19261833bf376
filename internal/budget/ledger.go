// Package budget tracks the consumable crawl budget of a single run.
package budget

import (
	"fmt"
	"strings"
	"sync"

	"landscout/pkg/utils"
)

// Ledger holds a global cap and a per-host cap. Units are only ever consumed;
// nothing replenishes a ledger, so a new run needs a new one.
type Ledger struct {
	hosts     map[string]int
	capacity  int
	global    int
	perHost   int
	exhausted bool
	mu        sync.Mutex
}

// Snapshot is a point-in-time copy of a ledger's counters.
type Snapshot struct {
	HostsUsed map[string]int
	Capacity  int
	PerHost   int
	Remaining int
	Exhausted bool
}

// NewLedger creates a ledger with the given caps.
func NewLedger(global, perHost int) *Ledger {
	if global < 0 {
		global = 0
	}

	if perHost < 0 {
		perHost = 0
	}

	return &Ledger{
		hosts:     make(map[string]int),
		capacity:  global,
		global:    global,
		perHost:   perHost,
		exhausted: global == 0,
	}
}

// TryConsume takes one unit for rawURL's host. It returns false without
// consuming anything when either the global or the host allowance is spent.
func (l *Ledger) TryConsume(rawURL string) bool {
	host := utils.HostOf(rawURL)
	if host == "" {
		host = utils.NormalizeURL(rawURL)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.global <= 0 {
		l.exhausted = true

		return false
	}

	if l.perHost-l.hosts[host] <= 0 {
		return false
	}

	l.global--
	l.hosts[host]++

	if l.global == 0 {
		l.exhausted = true
	}

	return true
}

// Exhausted reports whether the global allowance is spent.
func (l *Ledger) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.exhausted
}

// Remaining returns the global units left.
func (l *Ledger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.global
}

// HostRemaining returns the units left for host.
func (l *Ledger) HostRemaining(host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.perHost - l.hosts[strings.ToLower(host)]
}

// Snapshot copies the current counters.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	used := make(map[string]int, len(l.hosts))
	for h, n := range l.hosts {
		used[h] = n
	}

	return Snapshot{
		HostsUsed: used,
		Capacity:  l.capacity,
		PerHost:   l.perHost,
		Remaining: l.global,
		Exhausted: l.exhausted,
	}
}

// String returns a short description of the ledger.
func (s Snapshot) String() string {
	return fmt.Sprintf("remaining=%d hosts=%d exhausted=%t", s.Remaining, len(s.HostsUsed), s.Exhausted)
}
