// Package main provides the linkcheck command: run the listing verifier
// against URLs given on the command line or in a file.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"landscout/internal/config"
	"landscout/internal/crawler"
	"landscout/internal/logger"
	"landscout/internal/models"
	"landscout/internal/ratelimit"
	"landscout/internal/verify"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	listFile := flag.String("file", "", "File with one URL per line (# starts a comment)")
	allowPrivate := flag.Bool("allow-private", false, "Allow loopback and private network hosts")
	strict := flag.Bool("strict", false, "Exit with status 2 when any URL fails verification")
	verbose := flag.Bool("v", false, "Log every fetch attempt")

	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if *verbose {
		level = "debug"
	}

	log := logger.NewLoggerWithFormat(level, cfg.Logging.Format, os.Stderr)

	urls := flag.Args()

	if *listFile != "" {
		fromFile, readErr := readURLList(*listFile)
		if readErr != nil {
			log.Error(fmt.Sprintf("❌ %v", readErr))
			os.Exit(1)
		}

		urls = append(urls, fromFile...)
	}

	if len(urls) == 0 {
		fmt.Println("Usage: linkcheck [-config file] [-file urls.txt] <url>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jitterMin, jitterMax := cfg.Politeness.JitterRange()
	limiter := ratelimit.New(ratelimit.Options{
		MinInterval: cfg.Politeness.MinInterval(),
		JitterMin:   jitterMin,
		JitterMax:   jitterMax,
	})

	recorder := crawler.NewURLManager()
	scraper := crawler.NewScraperWithConfig(&cfg.Crawler.Retry, cfg.Crawler.BufferSizeKb, cfg.Crawler.UserAgent, limiter)
	scraper.SetRecorder(recorder)

	policy := verify.NewPolicy(cfg.Crawler.BlockedDomains, *allowPrivate || cfg.Crawler.AllowPrivateHosts)
	verifier := verify.NewVerifier(scraper, policy, log)

	failed := 0

	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}

		res := verifier.Verify(ctx, url)
		if !res.OK {
			failed++
		}

		printResult(os.Stdout, res)
	}

	recorder.LogAttemptSummary(log)

	fmt.Printf("\n✨ Checked %d URLs: %d ok, %d failed\n", len(urls), len(urls)-failed, failed)

	if *strict && failed > 0 {
		os.Exit(2)
	}
}

func printResult(w io.Writer, res models.VerificationResult) {
	if !res.OK {
		fmt.Fprintf(w, "❌ %s  %s (status %d)", res.URL, res.Reason, res.Status)

		if res.Error != "" {
			fmt.Fprintf(w, ": %s", res.Error)
		}

		fmt.Fprintln(w)

		return
	}

	fmt.Fprintf(w, "✅ %s  %q", res.URL, res.Title)

	if res.CanonicalURL != "" && res.CanonicalURL != res.URL {
		fmt.Fprintf(w, " -> %s", res.CanonicalURL)
	}

	fmt.Fprintf(w, " [acres %s, price %s, $/acre %s]\n",
		formatValue(res.Acres), formatValue(res.Price), formatValue(res.PricePerAcre))
}

func formatValue(v *float64) string {
	if v == nil {
		return "?"
	}

	return fmt.Sprintf("%.2f", *v)
}

// readURLList returns the non-empty, non-comment lines of path.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	var urls []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}

	return urls, nil
}
