package portfolio

import (
	"context"
	"time"

	"github.com/rustyeddy/momentum/costs"
	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/scoring"
)

// Scorer ranks a universe of snapshots. *scoring.Scorer implements it.
type Scorer interface {
	Score(snaps []market.Snapshot) []scoring.Result
}

// CostModel prices the transaction costs of a trade.
type CostModel interface {
	TransactionCost(value float64, side market.Side) float64
}

// TaxModel computes capital gains tax on a sale.
type TaxModel interface {
	CapitalGainsTax(entryPrice, exitPrice float64, entryDate, exitDate time.Time, units int64) costs.Tax
}

// LTCGAdvisor is implemented by tax models that can ask for a holding to
// be kept until it qualifies for long-term treatment.
type LTCGAdvisor interface {
	HoldForLTCG(entryDate, now time.Time, score float64) bool
}

// Recorder persists a run. A Recorder error aborts the run.
type Recorder interface {
	RecordWeek(ctx context.Context, runID string, w WeeklySummary) error
	RecordResult(ctx context.Context, r BacktestResult) error
}

// Observer is told about every committed week.
type Observer interface {
	ObserveWeek(w WeeklySummary)
}
