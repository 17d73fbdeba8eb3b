// Package feed supplies indicator snapshots and reference prices by date.
//
// Every lookup resolves "as of" the requested date: the latest observation
// on or before it, provided it is no older than the feed's staleness
// bound. A false ok is a data gap, not an error; errors are reserved for
// transport and decoding failures.
package feed

import (
	"context"
	"time"

	"github.com/rustyeddy/momentum/market"
)

// DefaultMaxStaleDays bounds as-of lookups when a feed is not told
// otherwise.
const DefaultMaxStaleDays = 7

// DataFeed is the simulator's view of market data.
type DataFeed interface {
	Universe(ctx context.Context, date time.Time) ([]string, error)
	Snapshot(ctx context.Context, symbol string, date time.Time) (market.Snapshot, bool, error)
	Price(ctx context.Context, symbol string, date time.Time) (float64, bool, error)
}

func staleness(days int) time.Duration {
	if days == 0 {
		days = DefaultMaxStaleDays
	}
	if days < 0 {
		return -1
	}
	return time.Duration(days) * 24 * time.Hour
}
