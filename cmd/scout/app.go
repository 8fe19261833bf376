package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

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
	"landscout/pkg/utils"
)

// app holds what survives between scheduled runs: the search client and the
// process-wide host limiter behind the scraper.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	searcher discovery.Searcher
	scraper  *crawler.Scraper
	verifier *verify.Verifier
}

func newApp(cfg *config.Config, log *logger.Logger) *app {
	jitterMin, jitterMax := cfg.Politeness.JitterRange()

	limiter := ratelimit.Process(ratelimit.Options{
		MinInterval: cfg.Politeness.MinInterval(),
		JitterMin:   jitterMin,
		JitterMax:   jitterMax,
	})

	scraper := crawler.NewScraperWithConfig(&cfg.Crawler.Retry, cfg.Crawler.BufferSizeKb, cfg.Crawler.UserAgent, limiter)
	policy := verify.NewPolicy(cfg.Crawler.BlockedDomains, cfg.Crawler.AllowPrivateHosts)

	return &app{
		cfg:      cfg,
		log:      log,
		searcher: search.NewClient(cfg.Search, log),
		scraper:  scraper,
		verifier: verify.NewVerifier(scraper, policy, log),
	}
}

// runOnce performs one run with fresh sinks, attempt log and budget.
func (a *app) runOnce(ctx context.Context, c models.Criteria) (*discovery.Summary, error) {
	sinks, err := sink.Open(ctx, a.cfg.Output, a.log)
	if err != nil {
		return nil, err
	}

	collector := sink.NewCollector()
	out := sink.NewMulti(sinks, collector)

	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			a.log.Error(fmt.Sprintf("❌ Failed to close sinks: %v", closeErr))
		}
	}()

	recorder := crawler.NewURLManager()
	a.scraper.SetRecorder(recorder)

	preferred := a.cfg.Search.PreferredSources

	pipeline := discovery.NewPipeline(discovery.OptionsFromConfig(a.cfg), discovery.Deps{
		Planner:  discovery.NewPlanner(preferred),
		Scorer:   discovery.NewScorer(preferred),
		Searcher: a.searcher,
		Verifier: a.verifier,
		Recorder: recorder,
		Logger:   a.log,
	})

	summary, runErr := pipeline.Run(ctx, c, out)

	printSummary(summary)

	if path := a.cfg.Output.ReportPath; path != "" {
		path = strings.ReplaceAll(path, "{run_id}", summary.RunID)

		if err := report.Write(path, summary, collector.Listings()); err != nil {
			a.log.Error(fmt.Sprintf("❌ %v", err))
		} else {
			a.log.Info(fmt.Sprintf("📝 Report written to %s", path))
		}
	}

	return summary, runErr
}

func printSummary(s *discovery.Summary) {
	fmt.Println("\n------------------------------------------------")
	fmt.Printf("📊 Run %s: %s\n", s.RunID, s.Location)
	fmt.Println("------------------------------------------------")

	if s.Disabled {
		fmt.Println("⚠️  Search disabled: set the provider API key (and CSE id) to run discovery")
	}

	fmt.Printf("Queries:   %d / %d\n", s.QueriesRun, s.Queries)
	fmt.Printf("Fetched:   %d results (%d duplicates)\n", s.ItemsFetched, s.Duplicates)
	fmt.Printf("Verified:  %d of %d gated (%d explored)\n", s.Verified, s.Gated, s.Explored)
	fmt.Printf("Filtered:  %d\n", s.Filtered())
	fmt.Printf("Emitted:   %d\n", s.Emitted)
	fmt.Printf("Budget:    %d left, exhausted: %t\n", s.BudgetRemaining, s.BudgetExhausted)
	fmt.Printf("Duration:  %v\n", s.Duration().Round(time.Millisecond))

	if s.SinkErrors > 0 {
		fmt.Printf("⚠️  Sink errors: %d\n", s.SinkErrors)
	}

	fmt.Println("------------------------------------------------")
}

// criteriaFlags are the command-line criteria overrides.
type criteriaFlags struct {
	state        string
	county       string
	zoning       string
	minAcres     float64
	maxAcres     float64
	maxPPA       float64
	power        bool
	excludeFlood bool
}

func (cf *criteriaFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&cf.state, "state", "", "State to search, e.g. Indiana")
	fs.StringVar(&cf.county, "county", "", "County to search (optional)")
	fs.StringVar(&cf.zoning, "zoning", "", "Comma-separated zoning whitelist")
	fs.Float64Var(&cf.minAcres, "min-acres", 0, "Minimum acreage (0 = unset)")
	fs.Float64Var(&cf.maxAcres, "max-acres", 0, "Maximum acreage (0 = unset)")
	fs.Float64Var(&cf.maxPPA, "max-ppa", 0, "Maximum price per acre (0 = unset)")
	fs.BoolVar(&cf.power, "power", false, "Require power nearby")
	fs.BoolVar(&cf.excludeFlood, "exclude-flood", false, "Exclude high-risk flood zones")
}

// buildCriteria loads the criteria file, if any, and applies every flag the
// user set explicitly on top of it.
func buildCriteria(path string, cf *criteriaFlags, fs *flag.FlagSet) (models.Criteria, error) {
	var c models.Criteria

	if path != "" {
		loaded, err := models.LoadCriteria(path)
		if err != nil {
			return models.Criteria{}, err
		}

		c = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "state":
			c.State = cf.state
		case "county":
			c.County = cf.county
		case "zoning":
			c.ZoningWhitelist = utils.SplitList(cf.zoning)
		case "min-acres":
			c.MinAcres = cf.minAcres
		case "max-acres":
			c.MaxAcres = cf.maxAcres
		case "max-ppa":
			c.MaxPricePerAcre = cf.maxPPA
		case "power":
			c.PowerNearby = cf.power
		case "exclude-flood":
			c.ExcludeFloodZone = cf.excludeFlood
		}
	})

	c = c.Normalized()
	if err := c.Validate(); err != nil {
		return models.Criteria{}, err
	}

	return c, nil
}
