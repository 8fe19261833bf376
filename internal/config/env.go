package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"landscout/pkg/utils"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables on the configuration.
// Unset or blank variables leave the current value untouched.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("SEARCH_PROVIDER", &c.Search.Provider)

	switch c.Search.Provider {
	case ProviderBrave:
		e.str("BRAVE_API_KEY", &c.Search.APIKey)
	default:
		e.str("GOOGLE_API_KEY", &c.Search.APIKey)
		e.str("GOOGLE_CSE_ID", &c.Search.ScopeID)
	}

	if v, ok := e.get("CSE_SOURCES"); ok {
		c.Search.PreferredSources = utils.SplitList(v)
	}

	if _, ok := e.get("CSE_PER_QUERY"); ok {
		e.integer("CSE_PER_QUERY", &c.Search.ItemsPerQuery)
		c.Search.ItemsPerQuery = min(max(c.Search.ItemsPerQuery, 1), 10)
	}

	if v, ok := e.get("CSE_SLEEP_SEC"); ok {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail("CSE_SLEEP_SEC", err)
		} else {
			c.Pipeline.InterQueryDelayMs = int(math.Round(sec * 1000))
		}
	}

	e.float("RS_SCORE_THRESHOLD", &c.Pipeline.ScoreThreshold)
	e.float("RS_EXPLORATION_RATE", &c.Pipeline.ExplorationRate)
	e.integer("BUDGET_GLOBAL", &c.Budget.Global)
	e.integer("BUDGET_PER_HOST", &c.Budget.PerHost)
	e.float("PER_HOST_RPS", &c.Politeness.RequestsPerSecond)
	e.integer("REQUEST_TIMEOUT", &c.Crawler.Retry.TimeoutSec)

	if v, ok := e.get("CONNECT_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail("CONNECT_RETRIES", err)
		} else {
			c.Crawler.Retry.MaxAttempts = n + 1
		}
	}

	e.str("BASE_USER_AGENT", &c.Crawler.UserAgent)
	e.str("PG_DSN", &c.Output.PostgresDSN)
	e.str("LOG_LEVEL", &c.Logging.Level)

	return e.err
}

type envReader struct {
	err    error
	lookup LookupFunc
}

func (e *envReader) get(key string) (string, bool) {
	if e.lookup == nil {
		return "", false
	}

	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)

	return v, ok && v != ""
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)

		return
	}

	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)

		return
	}

	*dst = f
}
