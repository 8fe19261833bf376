// Package main provides the scout command: discover land listings for one
// location, once or on a cron schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"landscout/internal/config"
	"landscout/internal/discovery"
	"landscout/internal/logger"
	"landscout/internal/models"
)

const defaultConfigPath = "configs/scout.yaml"

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (default configs/scout.yaml if present)")
	criteriaFile := flag.String("criteria", "", "Path to criteria JSON file")
	schedule := flag.String("schedule", "", "Cron expression for recurring runs (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Print the planned queries and exit")

	var cf criteriaFlags
	cf.register(flag.CommandLine)

	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLoggerWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	criteria, err := buildCriteria(*criteriaFile, &cf, flag.CommandLine)
	if err != nil {
		log.Error(fmt.Sprintf("❌ Invalid criteria: %v", err))
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *dryRun {
		printPlan(cfg, criteria)

		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(cfg, log)

	log.Info("🚀 Starting landscout")
	log.Info(fmt.Sprintf("📍 Location: %s", criteria.Location()))
	log.Info(fmt.Sprintf("⚙️  %s", cfg))

	expr := cfg.Schedule.Cron
	if *schedule != "" {
		expr = *schedule
	}

	if expr == "" {
		if _, err := app.runOnce(ctx, criteria); err != nil {
			log.Error(fmt.Sprintf("❌ Run aborted: %v", err))
			os.Exit(1)
		}

		return
	}

	if err := runScheduled(ctx, app, expr, criteria); err != nil {
		log.Error(fmt.Sprintf("❌ Scheduler failed: %v", err))
		os.Exit(1)
	}
}

// loadConfig reads path, or the default config file when it exists, or
// falls back to defaults plus environment.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	return config.LoadConfig(path)
}

func printPlan(cfg *config.Config, c models.Criteria) {
	queries := discovery.NewPlanner(cfg.Search.PreferredSources).Plan(c)

	fmt.Printf("🔍 %d planned queries for %s\n", len(queries), c.Location())

	for i, q := range queries {
		fmt.Printf("%2d. %s\n", i+1, q.Text)
	}
}

// runScheduled runs on every tick of expr until ctx is cancelled. A tick that
// arrives while the previous run is still going is skipped.
func runScheduled(ctx context.Context, a *app, expr string, c models.Criteria) error {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	id, err := scheduler.AddFunc(expr, func() {
		if _, runErr := a.runOnce(ctx, c); runErr != nil {
			a.log.Warn(fmt.Sprintf("⚠️  Run aborted: %v", runErr))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	scheduler.Start()
	a.log.Info(fmt.Sprintf("⏰ Scheduled %q, next run at %s", expr, scheduler.Entry(id).Next.Format("2006-01-02 15:04:05")))

	<-ctx.Done()

	a.log.Info("🛑 Shutting down, waiting for the current run to finish...")
	<-scheduler.Stop().Done()

	return nil
}
