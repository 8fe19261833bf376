package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"landscout/internal/budget"
	"landscout/internal/config"
	"landscout/internal/crawler"
	"landscout/internal/logger"
	"landscout/internal/models"
	"landscout/internal/normalizer"
	"landscout/pkg/utils"
)

// Searcher fetches raw results for a query. *search.Client satisfies it.
type Searcher interface {
	Enabled() bool
	Fetch(ctx context.Context, query string, maxItems int) []models.RawItem
}

// LinkVerifier checks a candidate URL. *verify.Verifier satisfies it.
type LinkVerifier interface {
	Verify(ctx context.Context, url string) models.VerificationResult
}

// Emitter receives accepted listings one at a time. Every sink satisfies it.
type Emitter interface {
	Emit(ctx context.Context, l *models.Listing) error
}

// Options are the run parameters of a pipeline.
type Options struct {
	SourceName      string
	ItemsPerQuery   int
	InterQueryDelay time.Duration
	ScoreThreshold  float64
	ExplorationRate float64
	GlobalBudget    int
	PerHostBudget   int
	Workers         int
	RunTimeout      time.Duration
}

// OptionsFromConfig maps the configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SourceName:      cfg.Pipeline.SourceName,
		ItemsPerQuery:   cfg.Search.ItemsPerQuery,
		InterQueryDelay: cfg.Pipeline.InterQueryDelay(),
		ScoreThreshold:  cfg.Pipeline.ScoreThreshold,
		ExplorationRate: cfg.Pipeline.ExplorationRate,
		GlobalBudget:    cfg.Budget.Global,
		PerHostBudget:   cfg.Budget.PerHost,
		Workers:         cfg.Pipeline.Workers,
		RunTimeout:      cfg.Pipeline.RunTimeout(),
	}
}

// Deps are the collaborators of a pipeline.
type Deps struct {
	Planner   *Planner
	Scorer    *Scorer
	Processor *normalizer.Processor
	Searcher  Searcher
	Verifier  LinkVerifier
	Recorder  *crawler.URLManager
	Logger    *logger.Logger
}

// Pipeline runs discovery for one location at a time: plan, fetch, score,
// rank, gate, consume budget, verify, filter, emit.
type Pipeline struct {
	deps     Deps
	opts     Options
	rand     func() float64
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	newRunID func() string
}

// NewPipeline creates a pipeline.
func NewPipeline(opts Options, deps Deps) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	if deps.Processor == nil {
		deps.Processor = normalizer.NewProcessor(opts.SourceName)
	}

	return &Pipeline{
		deps:     deps,
		opts:     opts,
		rand:     rand.Float64,
		sleep:    sleepCtx,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// run is the per-run mutable state.
type run struct {
	criteria models.Criteria
	ledger   *budget.Ledger
	urls     *crawler.URLManager
	summary  *Summary
	out      Emitter
	log      *logger.Logger
	emitMu   sync.Mutex
}

// Run discovers listings matching c and hands each accepted one to out.
// Transport failures never abort a run. The returned error is non-nil only
// when ctx itself is cancelled; the summary is always returned.
func (p *Pipeline) Run(ctx context.Context, c models.Criteria, out Emitter) (*Summary, error) {
	runID := p.newRunID()
	summary := newSummary(runID, c, p.now())
	log := p.deps.Logger.With("run_id", runID, "location", c.Location())

	defer func() {
		summary.FinishedAt = p.now()
	}()

	if !p.deps.Searcher.Enabled() {
		summary.Disabled = true

		return summary, nil
	}

	runCtx := ctx

	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	queries := p.deps.Planner.Plan(c)
	summary.Queries = len(queries)

	r := &run{
		criteria: c,
		ledger:   budget.NewLedger(p.opts.GlobalBudget, p.opts.PerHostBudget),
		urls:     crawler.NewURLManager(),
		summary:  summary,
		out:      out,
		log:      log,
	}

	log.Info(fmt.Sprintf("🔎 Run started: %d queries, budget %d (per host %d)",
		len(queries), p.opts.GlobalBudget, p.opts.PerHostBudget))

	for i, q := range queries {
		if runCtx.Err() != nil {
			break
		}

		if r.ledger.Exhausted() {
			break
		}

		p.runQuery(runCtx, r, q)
		summary.QueriesRun++

		if i < len(queries)-1 {
			if err := p.sleep(runCtx, p.opts.InterQueryDelay); err != nil {
				break
			}
		}
	}

	summary.BudgetRemaining = r.ledger.Remaining()
	if r.ledger.Exhausted() {
		summary.BudgetExhausted = true

		log.Info(fmt.Sprintf("💰 Budget exhausted after %d/%d queries", summary.QueriesRun, len(queries)))
	}

	if p.deps.Recorder != nil {
		p.deps.Recorder.LogAttemptSummary(log)
	}

	if err := ctx.Err(); err != nil {
		log.Warn(fmt.Sprintf("⚠️  Run cancelled: %v", err))

		return summary, err
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		summary.TimedOut = true

		log.Warn(fmt.Sprintf("⏱️  Run deadline of %s reached", p.opts.RunTimeout))
	}

	log.Info(fmt.Sprintf("✅ Run finished: %s", summary))

	return summary, nil
}

// runQuery processes one query to completion.
func (p *Pipeline) runQuery(ctx context.Context, r *run, q models.Query) {
	items := p.deps.Searcher.Fetch(ctx, q.Text, p.opts.ItemsPerQuery)
	r.summary.update(func(s *Summary) { s.ItemsFetched += len(items) })

	if len(items) == 0 {
		r.log.Debug(fmt.Sprintf("no results for %q", q.Text))

		return
	}

	candidates := p.scoreItems(r, q, items)

	// Highest score first; ties keep discovery order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var g errgroup.Group

	g.SetLimit(p.opts.Workers)

	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}

		if cand.Score < p.opts.ScoreThreshold {
			if p.rand() >= p.opts.ExplorationRate {
				r.summary.update(func(s *Summary) { s.BelowThreshold++ })

				continue
			}

			cand.Explored = true
		}

		if !r.ledger.TryConsume(cand.URL) {
			r.summary.update(func(s *Summary) { s.BudgetRefusals++ })
			r.log.Debug(fmt.Sprintf("budget refused %s; skipping rest of query", cand.URL))

			break
		}

		r.summary.update(func(s *Summary) {
			s.Gated++
			if cand.Explored {
				s.Explored++
			}
		})

		g.Go(func() error {
			p.verifyAndEmit(ctx, r, cand)

			return nil
		})
	}

	_ = g.Wait()
}

// scoreItems scores every result whose URL was not seen earlier in the run.
// URLs are marked seen here, before budget or verification.
func (p *Pipeline) scoreItems(r *run, q models.Query, items []models.RawItem) []models.ScoredCandidate {
	candidates := make([]models.ScoredCandidate, 0, len(items))

	for i, item := range items {
		url := utils.NormalizeWhitespace(item.URL())
		if url == "" {
			continue
		}

		if !r.urls.MarkSeen(url) {
			r.summary.update(func(s *Summary) { s.Duplicates++ })

			continue
		}

		domain := utils.HostOf(url)
		score := p.deps.Scorer.Score(item.Title, item.Snippet, domain, r.criteria)

		candidates = append(candidates, models.ScoredCandidate{
			Item:   item,
			URL:    url,
			Domain: domain,
			Query:  q.Text,
			Score:  score,
			Order:  i,
		})
	}

	r.summary.update(func(s *Summary) { s.Scored += len(candidates) })

	return candidates
}

func (p *Pipeline) verifyAndEmit(ctx context.Context, r *run, cand models.ScoredCandidate) {
	// Budget already taken for cand stays consumed.
	if ctx.Err() != nil {
		return
	}

	res := p.deps.Verifier.Verify(ctx, cand.URL)
	if !res.OK {
		r.summary.update(func(s *Summary) { s.VerifyDrops[res.Reason]++ })
		r.log.Debug(fmt.Sprintf("dropped %s: %s", cand.URL, res.Reason))

		return
	}

	r.summary.update(func(s *Summary) { s.Verified++ })

	listing, err := p.deps.Processor.Process(cand, res, r.criteria, r.summary.RunID)
	if err != nil {
		r.summary.update(func(s *Summary) { s.FilterDrops[normalizer.DropReason(err)]++ })
		r.log.Debug(fmt.Sprintf("filtered %s: %v", cand.URL, err))

		return
	}

	if !r.urls.MarkEmitted(listing.URL) {
		r.summary.update(func(s *Summary) { s.DuplicateEmits++ })

		return
	}

	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	if err := r.out.Emit(ctx, listing); err != nil {
		r.summary.update(func(s *Summary) { s.SinkErrors++ })
		r.log.Error(fmt.Sprintf("❌ Failed to emit %s: %v", listing.URL, err))

		return
	}

	r.summary.update(func(s *Summary) { s.Emitted++ })
	r.log.Info(fmt.Sprintf("📍 %s (score %.1f)", listing.URL, cand.Score))
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
