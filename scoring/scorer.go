package scoring

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/momentum/market"
)

// GroupScores are the five weighted sub-scores, each in [0,100].
type GroupScores struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Efficiency float64 `json:"efficiency"`
	Conviction float64 `json:"conviction"`
	Structure  float64 `json:"structure"`
}

// Result is the composite score of one symbol on one date.
type Result struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	// Composite is the weighted score before the penalty filter.
	Composite float64     `json:"composite"`
	Score     float64     `json:"score"`
	Groups    GroupScores `json:"groups"`
	Verdict   Verdict     `json:"verdict"`
	Rank      int         `json:"rank"`
}

// Scorer turns a universe of snapshots into ranked composite scores.
type Scorer struct {
	cfg     Config
	log     zerolog.Logger
	workers int
	observe func(symbols int, took time.Duration)
}

type Option func(*Scorer)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scorer) { s.log = l }
}

// WithObserver is called after every Score with the universe size and
// elapsed time.
func WithObserver(fn func(symbols int, took time.Duration)) Option {
	return func(s *Scorer) { s.observe = fn }
}

// NewScorer validates cfg and returns a scorer bound to it.
func NewScorer(cfg Config, opts ...Option) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	cfg.Penalty.MinHistory = cfg.MinHistoryEMA200

	s := &Scorer{cfg: cfg, log: zerolog.Nop(), workers: cfg.Workers}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score ranks the universe. Results are sorted by final score descending,
// ties by symbol. Duplicate symbols keep their first snapshot.
func (s *Scorer) Score(snaps []market.Snapshot) []Result {
	start := time.Now()

	seen := make(map[string]bool, len(snaps))
	uniq := make([]market.Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		if seen[snap.Symbol] {
			s.log.Warn().Str("symbol", snap.Symbol).Msg("duplicate snapshot ignored")
			continue
		}
		seen[snap.Symbol] = true
		uniq = append(uniq, snap)
	}

	raw := s.extractAll(uniq)

	// Every raw factor is known past this point, so ranks can be finalized.
	ranks := make([]map[string]float64, numFactors)
	for _, f := range rankedFactors {
		vals := make(map[string]float64, len(uniq))
		for i, snap := range uniq {
			if raw[i].ok[f] {
				vals[snap.Symbol] = raw[i].vals[f]
			}
		}
		ranks[f] = PercentileRanks(vals, s.cfg.RankTies)
	}

	results := make([]Result, len(uniq))
	for i, snap := range uniq {
		var scores [numFactors]float64
		for _, f := range rankedFactors {
			scores[f] = ranks[f][snap.Symbol]
		}
		s.cfg.zoneScores(raw[i], &scores)

		g := s.cfg.groups(scores)
		w := s.cfg.Weights
		composite := clamp(w.Trend*g.Trend +
			w.Momentum*g.Momentum +
			w.Efficiency*g.Efficiency +
			w.Conviction*g.Conviction +
			w.Structure*g.Structure)

		verdict := s.cfg.Penalty.Evaluate(snap)
		final := composite
		if verdict.Penalized() {
			final = 0
		}

		results[i] = Result{
			Symbol:    snap.Symbol,
			Date:      snap.Date,
			Composite: composite,
			Score:     final,
			Groups:    g,
			Verdict:   verdict,
		}
	}

	Sort(results)

	took := time.Since(start)
	s.log.Debug().Int("symbols", len(results)).Dur("took", took).Msg("universe scored")
	if s.observe != nil {
		s.observe(len(results), took)
	}
	return results
}

// extractAll computes raw factors for every snapshot on a bounded pool.
func (s *Scorer) extractAll(snaps []market.Snapshot) []rawFactors {
	raw := make([]rawFactors, len(snaps))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				raw[i] = s.cfg.extract(snaps[i])
			}
		}()
	}
	for i := range snaps {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return raw
}

// Sort orders results by score descending then symbol and assigns ranks.
func Sort(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Symbol < results[j].Symbol
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}

// Top returns at most n results with a positive score.
func Top(results []Result, n int) []Result {
	out := make([]Result, 0, n)
	for _, r := range results {
		if len(out) == n {
			break
		}
		if r.Score > 0 {
			out = append(out, r)
		}
	}
	return out
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
