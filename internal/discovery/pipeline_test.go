package discovery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"landscout/internal/logger"
	"landscout/internal/models"
)

// fakeSearcher returns one canned page of results per call, in call order.
type fakeSearcher struct {
	pages    [][]models.RawItem
	queries  []string
	disabled bool
	block    bool
	mu       sync.Mutex
}

func (f *fakeSearcher) Enabled() bool { return !f.disabled }

func (f *fakeSearcher) Fetch(ctx context.Context, query string, _ int) []models.RawItem {
	if f.block {
		<-ctx.Done()

		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.queries)
	f.queries = append(f.queries, query)

	if i >= len(f.pages) {
		return nil
	}

	return f.pages[i]
}

// fakeVerifier returns results by URL, defaulting to a plain ok page.
type fakeVerifier struct {
	results map[string]models.VerificationResult
	onCall  func(url string)
	calls   []string
	mu      sync.Mutex
}

func (f *fakeVerifier) Verify(_ context.Context, url string) models.VerificationResult {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(url)
	}

	if res, ok := f.results[url]; ok {
		res.URL = url

		return res
	}

	return models.VerificationResult{URL: url, OK: true, Status: 200, ContentType: "text/html"}
}

func (f *fakeVerifier) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

// collectingEmitter keeps every emitted listing.
type collectingEmitter struct {
	err      error
	listings []*models.Listing
	mu       sync.Mutex
}

func (c *collectingEmitter) Emit(_ context.Context, l *models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	c.listings = append(c.listings, l)

	return nil
}

func testOptions() Options {
	return Options{
		SourceName:      "websearch",
		ItemsPerQuery:   10,
		ScoreThreshold:  0,
		ExplorationRate: 0,
		GlobalBudget:    10,
		PerHostBudget:   10,
		Workers:         1,
	}
}

func newTestPipeline(opts Options, s Searcher, v LinkVerifier) *Pipeline {
	p := NewPipeline(opts, Deps{
		Planner:  NewPlanner(nil),
		Scorer:   NewScorer(nil),
		Searcher: s,
		Verifier: v,
	})
	p.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	p.rand = func() float64 { return 0.5 }
	p.newRunID = func() string { return "run-test" }

	return p
}

// withDomains plans one query per domain, so a state-only run issues
// len(domains) queries.
func withDomains(p *Pipeline, domains ...string) *Pipeline {
	p.deps.Planner = NewPlanner(domains)

	return p
}

func item(url, title string) models.RawItem {
	return models.RawItem{Title: title, Link: url}
}

func TestRun_TippecanoeListingEmitted(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{item("https://land.example/listing/40", tippecanoeTitle)},
	}}
	verifier := &fakeVerifier{results: map[string]models.VerificationResult{
		"https://land.example/listing/40": {OK: true, Status: 200, ContentType: "text/html", Acres: ptr(40)},
	}}
	out := &collectingEmitter{}

	opts := testOptions()
	opts.ScoreThreshold = 10.5

	summary, err := newTestPipeline(opts, searcher, verifier).Run(context.Background(), tippecanoeCriteria(), out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(out.listings) != 1 {
		t.Fatalf("Expected 1 listing, got %d", len(out.listings))
	}

	l := out.listings[0]
	if l.PricePerAcre == nil || *l.PricePerAcre != 4500 {
		t.Errorf("Expected price per acre 4500, got %v", l.PricePerAcre)
	}

	if l.RunID != "run-test" {
		t.Errorf("Expected run id run-test, got %s", l.RunID)
	}

	if summary.Queries != 1 || summary.QueriesRun != 1 {
		t.Errorf("Expected 1/1 queries, got %d/%d", summary.QueriesRun, summary.Queries)
	}

	if summary.Emitted != 1 || summary.Verified != 1 {
		t.Errorf("Expected 1 verified and emitted, got %d and %d", summary.Verified, summary.Emitted)
	}

	if summary.Location != "Tippecanoe County, Indiana" {
		t.Errorf("Expected location in summary, got %q", summary.Location)
	}
}

func TestRun_DisabledSearcher(t *testing.T) {
	verifier := &fakeVerifier{}

	summary, err := newTestPipeline(testOptions(), &fakeSearcher{disabled: true}, verifier).
		Run(context.Background(), models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Disabled {
		t.Error("Expected disabled summary")
	}

	if summary.QueriesRun != 0 || len(verifier.Calls()) != 0 {
		t.Errorf("Expected no work, got %d queries and %d verifications", summary.QueriesRun, len(verifier.Calls()))
	}
}

func TestRun_SeenURLNotVerifiedTwice(t *testing.T) {
	dup := item("https://land.example/listing/1", "10 acres land for sale")
	searcher := &fakeSearcher{pages: [][]models.RawItem{{dup}, {dup}}}
	verifier := &fakeVerifier{}

	c := models.Criteria{State: "Indiana"}

	summary, err := withDomains(newTestPipeline(testOptions(), searcher, verifier), "one.example", "two.example").
		Run(context.Background(), c, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if calls := verifier.Calls(); len(calls) != 1 {
		t.Errorf("Expected 1 verification, got %d", len(calls))
	}

	if summary.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", summary.Duplicates)
	}
}

func TestRun_GlobalBudgetStopsRun(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{
			item("https://a.example/1", "land for sale"),
			item("https://b.example/1", "land for sale"),
		},
		{item("https://c.example/1", "land for sale")},
	}}
	verifier := &fakeVerifier{}

	opts := testOptions()
	opts.GlobalBudget = 1
	opts.PerHostBudget = 1

	var buf bytes.Buffer

	p := withDomains(newTestPipeline(opts, searcher, verifier), "one.example", "two.example")
	p.deps.Logger = logger.NewLoggerWithFormat("info", "text", &buf)

	summary, err := p.Run(context.Background(), models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	calls := verifier.Calls()
	if len(calls) != 1 || calls[0] != "https://a.example/1" {
		t.Errorf("Expected only the first candidate verified, got %v", calls)
	}

	if !summary.BudgetExhausted {
		t.Error("Expected exhausted budget")
	}

	if summary.QueriesRun != 1 {
		t.Errorf("Expected run to stop after 1 query, got %d", summary.QueriesRun)
	}

	if summary.BudgetRemaining != 0 {
		t.Errorf("Expected 0 budget remaining, got %d", summary.BudgetRemaining)
	}

	if n := strings.Count(buf.String(), "Budget exhausted"); n != 1 {
		t.Errorf("Expected exhaustion logged once, got %d times", n)
	}
}

func TestRun_BudgetExhaustedInLastQueryIsLogged(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{
			item("https://a.example/1", "land for sale"),
			item("https://b.example/1", "land for sale"),
		},
	}}

	opts := testOptions()
	opts.GlobalBudget = 2

	var buf bytes.Buffer

	p := newTestPipeline(opts, searcher, &fakeVerifier{})
	p.deps.Logger = logger.NewLoggerWithFormat("info", "text", &buf)

	summary, err := p.Run(context.Background(), models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.BudgetExhausted {
		t.Fatal("Expected exhausted budget")
	}

	if n := strings.Count(buf.String(), "Budget exhausted"); n != 1 {
		t.Errorf("Expected exhaustion logged once, got %d times:\n%s", n, buf.String())
	}
}

func TestRun_InterQueryDelay(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		nil,
		{item("https://a.example/1", "land for sale")},
		{item("https://b.example/1", "land for sale")},
	}}

	opts := testOptions()
	opts.InterQueryDelay = 750 * time.Millisecond

	var sleeps []time.Duration

	p := withDomains(newTestPipeline(opts, searcher, &fakeVerifier{}), "one.example", "two.example", "three.example")
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)

		return ctx.Err()
	}

	summary, err := p.Run(context.Background(), models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.QueriesRun != 3 {
		t.Fatalf("Expected 3 queries run, got %d", summary.QueriesRun)
	}

	// The empty first page still waits before the next query; no wait after the last.
	if len(sleeps) != 2 {
		t.Fatalf("Expected 2 pauses, got %v", sleeps)
	}

	for i, d := range sleeps {
		if d != opts.InterQueryDelay {
			t.Errorf("Pause %d: expected %s, got %s", i, opts.InterQueryDelay, d)
		}
	}
}

func TestRun_RefusedConsumeAbandonsQuery(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{
			item("https://a.example/1", "land for sale"),
			item("https://a.example/2", "land for sale"),
			item("https://b.example/1", "land for sale"),
		},
	}}
	verifier := &fakeVerifier{}

	opts := testOptions()
	opts.PerHostBudget = 1

	summary, err := newTestPipeline(opts, searcher, verifier).
		Run(context.Background(), models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if calls := verifier.Calls(); len(calls) != 1 {
		t.Errorf("Expected the query to stop at the first refusal, got %v", calls)
	}

	if summary.BudgetRefusals != 1 {
		t.Errorf("Expected 1 refusal, got %d", summary.BudgetRefusals)
	}

	if summary.BudgetExhausted {
		t.Error("Expected global budget to remain")
	}
}

func TestRun_DeadLinkNotEmitted(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{item("https://land.example/gone", "20 acres land for sale")},
	}}
	verifier := &fakeVerifier{results: map[string]models.VerificationResult{
		"https://land.example/gone": {Reason: models.ReasonDead, Status: 404},
	}}
	out := &collectingEmitter{}

	summary, err := newTestPipeline(testOptions(), searcher, verifier).
		Run(context.Background(), models.Criteria{State: "Indiana"}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(out.listings) != 0 {
		t.Errorf("Expected no listings, got %d", len(out.listings))
	}

	if summary.VerifyDrops[models.ReasonDead] != 1 {
		t.Errorf("Expected 1 dead drop, got %v", summary.VerifyDrops)
	}
}

func TestRun_ExplorationGate(t *testing.T) {
	page := [][]models.RawItem{{item("https://land.example/1", "Weather forecast")}}

	tests := []struct {
		name     string
		rate     float64
		verified int
		explored int
	}{
		{name: "never explore", rate: 0, verified: 0, explored: 0},
		{name: "always explore", rate: 1, verified: 1, explored: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{}
			out := &collectingEmitter{}

			opts := testOptions()
			opts.ScoreThreshold = 5
			opts.ExplorationRate = tt.rate

			summary, err := newTestPipeline(opts, &fakeSearcher{pages: page}, verifier).
				Run(context.Background(), models.Criteria{State: "Indiana"}, out)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			if len(verifier.Calls()) != tt.verified {
				t.Errorf("Expected %d verifications, got %d", tt.verified, len(verifier.Calls()))
			}

			if summary.Explored != tt.explored {
				t.Errorf("Expected %d explored, got %d", tt.explored, summary.Explored)
			}

			if tt.explored == 1 {
				if explored, _ := out.listings[0].BoolExtra(models.ExtraExplored); !explored {
					t.Error("Expected listing marked as explored")
				}
			} else if summary.BelowThreshold != 1 {
				t.Errorf("Expected 1 below threshold, got %d", summary.BelowThreshold)
			}
		})
	}
}

func TestRun_RankOrder(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{
			item("https://a.example/low", "Weather forecast"),
			item("https://b.example/mid", "3 acres"),
			item("https://c.example/high", tippecanoeTitle),
			item("https://d.example/mid", "7 acres"),
		},
	}}
	verifier := &fakeVerifier{}

	_, err := newTestPipeline(testOptions(), searcher, verifier).
		Run(context.Background(), models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{
		"https://c.example/high",
		"https://b.example/mid",
		"https://d.example/mid",
		"https://a.example/low",
	}

	calls := verifier.Calls()
	if len(calls) != len(want) {
		t.Fatalf("Expected %d verifications, got %v", len(want), calls)
	}

	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestRun_FilterAndDuplicateEmit(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{
			item("https://a.example/small", "land for sale"),
			item("https://b.example/1", "land for sale"),
			item("https://b.example/1?ref=feed", "land for sale"),
		},
	}}
	verifier := &fakeVerifier{results: map[string]models.VerificationResult{
		"https://a.example/small":      {OK: true, Status: 200, Acres: ptr(2)},
		"https://b.example/1":          {OK: true, Status: 200, Acres: ptr(20), CanonicalURL: "https://b.example/1"},
		"https://b.example/1?ref=feed": {OK: true, Status: 200, Acres: ptr(20), CanonicalURL: "https://b.example/1"},
	}}
	out := &collectingEmitter{}

	summary, err := newTestPipeline(testOptions(), searcher, verifier).
		Run(context.Background(), models.Criteria{State: "Indiana", MinAcres: 5}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(out.listings) != 1 {
		t.Fatalf("Expected 1 listing, got %d", len(out.listings))
	}

	if summary.FilterDrops["below-min-acres"] != 1 {
		t.Errorf("Expected 1 below-min-acres drop, got %v", summary.FilterDrops)
	}

	if summary.DuplicateEmits != 1 {
		t.Errorf("Expected 1 duplicate emit, got %d", summary.DuplicateEmits)
	}

	if summary.Filtered() != 1 {
		t.Errorf("Expected Filtered() = 1, got %d", summary.Filtered())
	}
}

func TestRun_SinkErrorIsCounted(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{item("https://land.example/1", "land for sale")},
	}}
	out := &collectingEmitter{err: errors.New("disk full")}

	summary, err := newTestPipeline(testOptions(), searcher, &fakeVerifier{}).
		Run(context.Background(), models.Criteria{State: "Indiana"}, out)
	if err != nil {
		t.Fatalf("Expected sink errors not to fail the run, got %v", err)
	}

	if summary.SinkErrors != 1 || summary.Emitted != 0 {
		t.Errorf("Expected 1 sink error and 0 emitted, got %d and %d", summary.SinkErrors, summary.Emitted)
	}
}

func TestRun_Cancelled(t *testing.T) {
	searcher := &fakeSearcher{pages: [][]models.RawItem{
		{
			item("https://a.example/1", "land for sale"),
			item("https://b.example/1", "land for sale"),
			item("https://c.example/1", "land for sale"),
		},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	verifier := &fakeVerifier{onCall: func(string) { cancel() }}

	summary, err := newTestPipeline(testOptions(), searcher, verifier).
		Run(ctx, models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	if summary == nil {
		t.Fatal("Expected a summary on cancellation")
	}

	if calls := verifier.Calls(); len(calls) != 1 {
		t.Errorf("Expected verification to stop after cancel, got %v", calls)
	}

	if summary.BudgetRemaining != 10-summary.Gated {
		t.Errorf("Expected consumed budget to stay consumed, got %d left after %d gated", summary.BudgetRemaining, summary.Gated)
	}
}

func TestRun_Timeout(t *testing.T) {
	opts := testOptions()
	opts.RunTimeout = 20 * time.Millisecond

	summary, err := newTestPipeline(opts, &fakeSearcher{block: true}, &fakeVerifier{}).
		Run(context.Background(), models.Criteria{State: "Indiana"}, &collectingEmitter{})
	if err != nil {
		t.Fatalf("Expected deadline not to be an error, got %v", err)
	}

	if !summary.TimedOut {
		t.Error("Expected timed out summary")
	}
}

func TestRun_ParallelWorkers(t *testing.T) {
	var items []models.RawItem
	for _, host := range []string{"a", "b", "c", "d", "e", "f"} {
		items = append(items, item("https://"+host+".example/1", "land for sale"))
	}

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	verifier := &fakeVerifier{onCall: func(string) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
	}}
	out := &collectingEmitter{}

	opts := testOptions()
	opts.Workers = 3
	opts.GlobalBudget = 5

	summary, err := newTestPipeline(opts, &fakeSearcher{pages: [][]models.RawItem{items}}, verifier).
		Run(context.Background(), models.Criteria{State: "Indiana"}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(out.listings) != 5 || summary.Emitted != 5 {
		t.Errorf("Expected 5 emitted within budget, got %d (%d)", len(out.listings), summary.Emitted)
	}

	if maxSeen > 3 {
		t.Errorf("Expected at most 3 concurrent verifications, got %d", maxSeen)
	}
}

func ptr(v float64) *float64 { return &v }
