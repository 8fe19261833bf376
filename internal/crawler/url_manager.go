package crawler

import (
	"fmt"
	"sync"
	"time"

	"landscout/internal/logger"
	"landscout/pkg/utils"
)

// URLManager is the per-run memory of URLs: which were seen, which were
// emitted, and every fetch attempt. It is safe for concurrent use.
type URLManager struct {
	seen       map[string]struct{}
	emitted    map[string]struct{}
	attemptLog map[string][]AttemptResult
	order      []string
	mu         sync.Mutex
}

// AttemptResult records the result of a URL fetch attempt.
type AttemptResult struct {
	Timestamp  time.Time
	URL        string
	Error      string
	Attempt    int
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// NewURLManager creates a new URL manager.
func NewURLManager() *URLManager {
	return &URLManager{
		seen:       make(map[string]struct{}),
		emitted:    make(map[string]struct{}),
		attemptLog: make(map[string][]AttemptResult),
	}
}

// MarkSeen records rawURL and reports whether it was new.
func (um *URLManager) MarkSeen(rawURL string) bool {
	um.mu.Lock()
	defer um.mu.Unlock()

	return markIn(um.seen, rawURL)
}

// Seen reports whether rawURL was already recorded.
func (um *URLManager) Seen(rawURL string) bool {
	um.mu.Lock()
	defer um.mu.Unlock()

	_, ok := um.seen[utils.NormalizeURL(rawURL)]

	return ok
}

// MarkEmitted records an emitted listing URL and reports whether it was new.
func (um *URLManager) MarkEmitted(rawURL string) bool {
	um.mu.Lock()
	defer um.mu.Unlock()

	return markIn(um.emitted, rawURL)
}

// SeenCount returns how many distinct URLs were seen.
func (um *URLManager) SeenCount() int {
	um.mu.Lock()
	defer um.mu.Unlock()

	return len(um.seen)
}

func markIn(set map[string]struct{}, rawURL string) bool {
	key := utils.NormalizeURL(rawURL)
	if key == "" {
		return false
	}

	if _, ok := set[key]; ok {
		return false
	}

	set[key] = struct{}{}

	return true
}

// RecordAttempt records the result of a fetch attempt.
func (um *URLManager) RecordAttempt(url string, success bool, err error, statusCode int, duration time.Duration) {
	um.mu.Lock()
	defer um.mu.Unlock()

	if _, ok := um.attemptLog[url]; !ok {
		um.order = append(um.order, url)
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	um.attemptLog[url] = append(um.attemptLog[url], AttemptResult{
		URL:        url,
		Attempt:    len(um.attemptLog[url]) + 1,
		Success:    success,
		Error:      errMsg,
		Timestamp:  time.Now(),
		Duration:   duration,
		StatusCode: statusCode,
	})
}

// GetAttemptLog returns the attempt log for a URL.
func (um *URLManager) GetAttemptLog(url string) []AttemptResult {
	um.mu.Lock()
	defer um.mu.Unlock()

	return append([]AttemptResult(nil), um.attemptLog[url]...)
}

// GetAttemptStats returns statistics about fetch attempts.
func (um *URLManager) GetAttemptStats() AttemptStats {
	um.mu.Lock()
	defer um.mu.Unlock()

	stats := AttemptStats{
		URLAttempts: make(map[string]int),
		TotalURLs:   len(um.attemptLog),
	}

	for url, results := range um.attemptLog {
		stats.URLAttempts[url] = len(results)
		stats.TotalAttempts += len(results)

		urlSuccess := false

		for _, result := range results {
			if result.Success {
				stats.SuccessfulAttempts++
				urlSuccess = true
			} else {
				stats.FailedAttempts++
			}
		}

		if urlSuccess {
			stats.SuccessfulURLs++
		} else {
			stats.FailedURLs++
		}
	}

	return stats
}

// AttemptStats contains statistics about fetch attempts.
type AttemptStats struct {
	URLAttempts        map[string]int
	TotalURLs          int
	SuccessfulURLs     int
	FailedURLs         int
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
}

// String returns a string representation of attempt stats.
func (s AttemptStats) String() string {
	return fmt.Sprintf(
		"URLs: %d total, %d success, %d failed | Attempts: %d total, %d success, %d failed",
		s.TotalURLs,
		s.SuccessfulURLs,
		s.FailedURLs,
		s.TotalAttempts,
		s.SuccessfulAttempts,
		s.FailedAttempts,
	)
}

// LogAttemptSummary logs a summary of fetch attempts at debug level,
// followed by the overall stats at info level.
func (um *URLManager) LogAttemptSummary(l *logger.Logger) {
	um.mu.Lock()
	order := append([]string(nil), um.order...)
	um.mu.Unlock()

	l.Debug("📊 Fetch Attempt Summary:")

	for i, url := range order {
		results := um.GetAttemptLog(url)
		if len(results) == 0 {
			continue
		}

		lastResult := results[len(results)-1]
		statusEmoji := "❌"

		if lastResult.Success {
			statusEmoji = "✅"
		}

		l.Debug(fmt.Sprintf("%d. %s %s (%d attempts, last status %d)", i+1, statusEmoji, url, len(results), lastResult.StatusCode))

		for _, result := range results {
			if !result.Success && result.Error != "" {
				l.Debug(fmt.Sprintf("     Attempt %d: ❌ %s (%.2fs)", result.Attempt, result.Error, result.Duration.Seconds()))
			}
		}
	}

	stats := um.GetAttemptStats()
	l.Info(fmt.Sprintf("Overall: %s", stats))
}
