package discovery

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"landscout/internal/models"
)

// Summary counts what happened during one run.
type Summary struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	VerifyDrops     map[models.Reason]int
	FilterDrops     map[string]int
	RunID           string
	Location        string
	Queries         int
	QueriesRun      int
	ItemsFetched    int
	Duplicates      int
	Scored          int
	BelowThreshold  int
	Explored        int
	Gated           int
	BudgetRefusals  int
	Verified        int
	Emitted         int
	DuplicateEmits  int
	SinkErrors      int
	BudgetRemaining int
	Disabled        bool
	BudgetExhausted bool
	TimedOut        bool

	mu sync.Mutex
}

func newSummary(runID string, c models.Criteria, now time.Time) *Summary {
	return &Summary{
		StartedAt:   now,
		VerifyDrops: make(map[models.Reason]int),
		FilterDrops: make(map[string]int),
		RunID:       runID,
		Location:    c.Location(),
	}
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}

	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) update(fn func(s *Summary)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s)
}

// String returns a one-line digest of the run.
func (s *Summary) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	drops := make([]string, 0, len(s.VerifyDrops))
	for reason, n := range s.VerifyDrops {
		drops = append(drops, fmt.Sprintf("%s=%d", reason, n))
	}

	sort.Strings(drops)

	return fmt.Sprintf(
		"queries %d/%d | fetched %d | scored %d | verified %d | emitted %d | drops [%s] | filtered %d | budget left %d",
		s.QueriesRun,
		s.Queries,
		s.ItemsFetched,
		s.Scored,
		s.Verified,
		s.Emitted,
		strings.Join(drops, " "),
		s.filteredLocked(),
		s.BudgetRemaining,
	)
}

// Filtered is the number of verified listings dropped by the criteria filter.
func (s *Summary) Filtered() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.filteredLocked()
}

func (s *Summary) filteredLocked() int {
	total := 0
	for _, n := range s.FilterDrops {
		total += n
	}

	return total
}
