package cmd

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/momentum/config"
	"github.com/rustyeddy/momentum/feed"
	"github.com/rustyeddy/momentum/journal"
	"github.com/rustyeddy/momentum/metrics"
	"github.com/rustyeddy/momentum/portfolio"
	"github.com/rustyeddy/momentum/scoring"
)

// buildFeed opens the configured data feed, wrapped in the Redis cache
// when one is configured. The returned func releases the cache client.
func buildFeed(c *config.Config, log zerolog.Logger) (feed.DataFeed, func() error, error) {
	fc := c.Feed
	noop := func() error { return nil }

	var base feed.DataFeed
	switch fc.Type {
	case "", "csv":
		if fc.Path == "" {
			return nil, noop, fmt.Errorf("feed.path is required for csv feed")
		}
		mem, err := feed.LoadSnapshotsFile(fc.Path, fc.MaxStaleDays)
		if err != nil {
			return nil, noop, err
		}
		base = mem
	case "bars":
		if fc.Path == "" {
			return nil, noop, fmt.Errorf("feed.path is required for bars feed")
		}
		mem, err := feed.LoadBarsDir(fc.Path, fc.MaxStaleDays)
		if err != nil {
			return nil, noop, err
		}
		base = mem
	case "http":
		timeout, err := fc.ParseTimeout()
		if err != nil {
			return nil, noop, err
		}
		h, err := feed.NewHTTP(fc.URL, feed.HTTPOptions{
			Timeout:       timeout,
			RatePerSecond: fc.RatePerSecond,
			Burst:         fc.Burst,
			MaxRetries:    fc.MaxRetries,
			MaxStaleDays:  fc.MaxStaleDays,
			Logger:        log,
		})
		if err != nil {
			return nil, noop, err
		}
		base = h
	default:
		return nil, noop, fmt.Errorf("unknown feed type %q", fc.Type)
	}

	if fc.Redis.Addr == "" {
		return base, noop, nil
	}
	ttl, err := fc.Redis.ParseTTL()
	if err != nil {
		return nil, noop, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fc.Redis.Addr,
		Password: fc.Redis.Password,
		DB:       fc.Redis.DB,
	})
	log.Info().Str("addr", fc.Redis.Addr).Msg("feed cache enabled")
	return feed.NewCache(rdb, base, ttl, fc.Redis.Prefix, log), rdb.Close, nil
}

// buildScorer returns the configured scorer, reporting to m when set.
func buildScorer(c *config.Config, m *metrics.Metrics, log zerolog.Logger) (*scoring.Scorer, error) {
	opts := []scoring.Option{scoring.WithLogger(log)}
	if m != nil {
		opts = append(opts, scoring.WithObserver(m.ObserveScoring))
	}
	return scoring.NewScorer(c.Scoring, opts...)
}

// buildRecorder opens the configured journal and the Org report. The
// result is empty when nothing is configured.
func buildRecorder(ctx context.Context, c *config.Config) (journal.Multi, error) {
	var m journal.Multi
	jc := c.Journal
	switch jc.Type {
	case "", "none":
	case "csv":
		j, err := journal.NewCSV(jc.Dir)
		if err != nil {
			return nil, err
		}
		m = append(m, j)
	case "sqlite":
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, err
		}
		m = append(m, j)
	case "postgres":
		j, err := journal.NewPostgres(ctx, jc.DSN)
		if err != nil {
			return nil, err
		}
		m = append(m, j)
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
	if jc.Report != "" {
		m = append(m, journal.OrgReport{Path: jc.Report})
	}
	return m, nil
}

// openDB opens the SQL journal for queries.
func openDB(ctx context.Context, c *config.Config) (*journal.DB, error) {
	switch c.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(c.Journal.DBPath)
	case "postgres":
		return journal.NewPostgres(ctx, c.Journal.DSN)
	default:
		return nil, fmt.Errorf("journal type %q cannot be queried; use sqlite or postgres", c.Journal.Type)
	}
}

// simulatorOptions assembles the cost, tax, recorder and observer options.
func simulatorOptions(c *config.Config, rec journal.Multi, m *metrics.Metrics, log zerolog.Logger) []portfolio.Option {
	opts := []portfolio.Option{
		portfolio.WithLogger(log),
		portfolio.WithCostModel(c.Costs),
		portfolio.WithTaxModel(c.Tax),
	}
	if len(rec) > 0 {
		opts = append(opts, portfolio.WithRecorder(rec))
	}
	if m != nil {
		opts = append(opts, portfolio.WithObserver(m))
	}
	return opts
}
