package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"landscout/internal/config"
	"landscout/internal/crawler"
	"landscout/internal/discovery"
	"landscout/internal/logger"
	"landscout/internal/models"
	"landscout/internal/ratelimit"
	"landscout/internal/report"
	"landscout/internal/search"
	"landscout/internal/sink"
	"landscout/internal/verify"
)

const listingHTML = `<!doctype html>
<html>
<head>
  <title>40 acres land for sale Tippecanoe County Indiana $180,000</title>
  <link rel="canonical" href="/listing/40">
</head>
<body>
  <h1>Rolling farmland</h1>
  <p>Parcel ID 79-07-12. Tillable ground with road frontage.</p>
  <script>var tracking = "$1";</script>
</body>
</html>`

const aboutHTML = `<html><head><title>About us</title></head><body>Our team has served the region since 1990.</body></html>`

// newPageServer serves one good listing and three pages that must be dropped.
func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/listing/40", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingHTML))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(aboutHTML))
	})
	mux.HandleFunc("/brochure.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 40 acres"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

// newSearchServer answers every query with the same result page, the way a
// search API returns overlapping results for similar queries.
func newSearchServer(t *testing.T, pages string) *httptest.Server {
	t.Helper()

	type item struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	}

	items := []item{
		{Title: "40 acres land for sale Tippecanoe County Indiana $180,000", Link: pages + "/listing/40", Snippet: "Tillable farmland"},
		{Title: "Land brochure", Link: pages + "/brochure.pdf", Snippet: "40 acres"},
		{Title: "Sold: 12 acres", Link: pages + "/gone", Snippet: "land for sale"},
		{Title: "About", Link: pages + "/about", Snippet: "acre"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "test-key" || q.Get("cx") != "test-cx" {
			http.Error(w, "bad credentials", http.StatusForbidden)

			return
		}

		if !strings.HasPrefix(q.Get("q"), "site:") || !strings.Contains(q.Get("q"), `"Tippecanoe County, Indiana" "Tippecanoe, Indiana"`) {
			http.Error(w, "unexpected query", http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	t.Cleanup(server.Close)

	return server
}

func testConfig(searchURL string) *config.Config {
	cfg := config.Default()
	cfg.Search.APIKey = "test-key"
	cfg.Search.ScopeID = "test-cx"
	cfg.Search.Endpoint = searchURL
	cfg.Search.MaxQPS = 1000
	cfg.Pipeline.InterQueryDelayMs = 0
	cfg.Pipeline.ScoreThreshold = 0
	cfg.Pipeline.Workers = 2
	cfg.Politeness.RequestsPerSecond = 1000
	cfg.Politeness.JitterMinMs = 0
	cfg.Politeness.JitterMaxMs = 0
	cfg.Crawler.Retry.MaxAttempts = 1
	cfg.Crawler.AllowPrivateHosts = true

	return cfg
}

func TestDiscoveryFlow_TippecanoeRun(t *testing.T) {
	pages := newPageServer(t)
	searchServer := newSearchServer(t, pages.URL)

	cfg := testConfig(searchServer.URL)
	cfg.Search.PreferredSources = []string{"landwatch.com", "landsearch.com"}
	log := logger.Discard()

	jitterMin, jitterMax := cfg.Politeness.JitterRange()
	limiter := ratelimit.New(ratelimit.Options{
		MinInterval: cfg.Politeness.MinInterval(),
		JitterMin:   jitterMin,
		JitterMax:   jitterMax,
	})

	recorder := crawler.NewURLManager()
	scraper := crawler.NewScraperWithConfig(&cfg.Crawler.Retry, cfg.Crawler.BufferSizeKb, "", limiter)
	scraper.SetRecorder(recorder)

	verifier := verify.NewVerifier(scraper, verify.NewPolicy(nil, cfg.Crawler.AllowPrivateHosts), log)

	pipeline := discovery.NewPipeline(discovery.OptionsFromConfig(cfg), discovery.Deps{
		Planner:  discovery.NewPlanner(cfg.Search.PreferredSources),
		Scorer:   discovery.NewScorer(nil),
		Searcher: search.NewClient(cfg.Search, log),
		Verifier: verifier,
		Recorder: recorder,
		Logger:   log,
	})

	dir := t.TempDir()

	store, err := sink.NewSQLite(context.Background(), filepath.Join(dir, "listings.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer store.Close()

	collector := sink.NewCollector()

	criteria := models.Criteria{
		State:           "Indiana",
		County:          "Tippecanoe",
		MaxPricePerAcre: 8000,
		MinAcres:        5,
	}

	summary, err := pipeline.Run(context.Background(), criteria, sink.NewMulti(store, collector))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 1. Plan and dedup: one query per preferred domain, the second returns only repeats.
	if summary.QueriesRun != 2 {
		t.Errorf("Expected 2 queries run, got %d", summary.QueriesRun)
	}

	if summary.Duplicates != 4 {
		t.Errorf("Expected 4 duplicates from the second query, got %d", summary.Duplicates)
	}

	// 2. Verification classified every page.
	want := map[models.Reason]int{
		models.ReasonDead:             1,
		models.ReasonWrongContentType: 1,
		models.ReasonOffTopic:         1,
	}

	for reason, n := range want {
		if summary.VerifyDrops[reason] != n {
			t.Errorf("Expected %d %s drops, got %d", n, reason, summary.VerifyDrops[reason])
		}
	}

	// 3. The listing was emitted with its derived price per acre.
	listings := collector.Listings()
	if len(listings) != 1 {
		t.Fatalf("Expected 1 listing, got %d", len(listings))
	}

	l := listings[0]
	if l.URL != pages.URL+"/listing/40" {
		t.Errorf("Expected canonical listing URL, got %s", l.URL)
	}

	if l.PricePerAcre == nil || *l.PricePerAcre != 4500 {
		t.Errorf("Expected price per acre 4500, got %v", l.PricePerAcre)
	}

	if l.RunID != summary.RunID {
		t.Errorf("Expected run id %s on listing, got %s", summary.RunID, l.RunID)
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	if n != 1 {
		t.Errorf("Expected 1 stored listing, got %d", n)
	}

	// 4. Budget: four verifications, nothing more.
	if summary.BudgetRemaining != cfg.Budget.Global-4 {
		t.Errorf("Expected %d budget left, got %d", cfg.Budget.Global-4, summary.BudgetRemaining)
	}

	if stats := recorder.GetAttemptStats(); stats.TotalURLs != 4 {
		t.Errorf("Expected 4 fetched URLs in the attempt log, got %d", stats.TotalURLs)
	}

	// 5. Report.
	reportPath := filepath.Join(dir, "report.md")
	if err := report.Write(reportPath, summary, listings); err != nil {
		t.Fatalf("report.Write failed: %v", err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}

	if !strings.Contains(string(data), "$4,500") {
		t.Errorf("Expected price per acre in report:\n%s", data)
	}
}

func TestDiscoveryFlow_NoCredentialsDisablesRun(t *testing.T) {
	cfg := config.Default()

	pipeline := discovery.NewPipeline(discovery.OptionsFromConfig(cfg), discovery.Deps{
		Planner:  discovery.NewPlanner(nil),
		Scorer:   discovery.NewScorer(nil),
		Searcher: search.NewClient(cfg.Search, logger.Discard()),
		Verifier: verify.NewVerifier(crawler.NewScraper(), nil, nil),
	})

	summary, err := pipeline.Run(context.Background(), models.Criteria{State: "Indiana"}, sink.NewCollector())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Disabled {
		t.Error("Expected the run to be disabled without credentials")
	}
}
