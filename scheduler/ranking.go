package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/momentum/feed"
	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/portfolio"
	"github.com/rustyeddy/momentum/scoring"
)

// Ranking is the scored universe of one date.
type Ranking struct {
	Date time.Time `json:"date"`
	// Results is the full ranked universe.
	Results []scoring.Result `json:"results"`
	// Candidates are the positive-score leaders, at most TopN.
	Candidates []scoring.Result `json:"candidates"`
	// Gaps lists universe symbols without a usable snapshot.
	Gaps []string `json:"gaps,omitempty"`
}

// Ranker scores the feed's universe on a date.
type Ranker struct {
	Feed   feed.DataFeed
	Scorer portfolio.Scorer
	TopN   int
	Log    zerolog.Logger
}

// Rank fetches every snapshot of the universe on date and scores them.
func (r *Ranker) Rank(ctx context.Context, date time.Time) (Ranking, error) {
	if r.Feed == nil || r.Scorer == nil {
		return Ranking{}, fmt.Errorf("scheduler: Feed and Scorer are required")
	}
	date = market.Day(date)
	out := Ranking{Date: date}

	symbols, err := r.Feed.Universe(ctx, date)
	if err != nil {
		return out, fmt.Errorf("universe %s: %w", date.Format(market.DateLayout), err)
	}

	snaps := make([]market.Snapshot, 0, len(symbols))
	for _, sym := range symbols {
		snap, ok, err := r.Feed.Snapshot(ctx, sym, date)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			r.Log.Warn().Err(err).Str("symbol", sym).Msg("snapshot failed")
			out.Gaps = append(out.Gaps, sym)
			continue
		}
		if !ok {
			out.Gaps = append(out.Gaps, sym)
			continue
		}
		snaps = append(snaps, snap)
	}

	out.Results = r.Scorer.Score(snaps)
	out.Candidates = scoring.Top(out.Results, r.TopN)
	r.Log.Info().
		Str("date", date.Format(market.DateLayout)).
		Int("universe", len(symbols)).
		Int("scored", len(out.Results)).
		Int("candidates", len(out.Candidates)).
		Int("gaps", len(out.Gaps)).
		Msg("ranking complete")
	return out, nil
}
