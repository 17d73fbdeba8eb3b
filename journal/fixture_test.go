package journal

import (
	"time"

	"github.com/rustyeddy/momentum/config"
	"github.com/rustyeddy/momentum/portfolio"
	"github.com/rustyeddy/momentum/risk"
	"github.com/rustyeddy/momentum/scoring"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sampleResult is a two week run: a buy in week one, a stop-loss exit and
// a rejected entry in week two.
func sampleResult() portfolio.BacktestResult {
	s := config.DefaultStrategy()
	s.Name = "test"

	w1 := portfolio.WeeklySummary{
		Week:           1,
		Date:           day(2024, 1, 1),
		PortfolioValue: 100000,
		Ledger: portfolio.Ledger{
			Starting:    100000,
			Bought:      10000,
			CapitalRisk: 1000,
			Remaining:   90000,
		},
		Actions: []portfolio.Action{{
			ID:     "A1",
			Date:   day(2024, 1, 1),
			Type:   portfolio.Buy,
			Symbol: "AAA",
			Units:  100,
			Price:  100,
			Reason: portfolio.ReasonEntry,
			Status: portfolio.Approved,
			Score:  80,
		}},
		Holdings: []portfolio.Position{{
			Symbol:      "AAA",
			Units:       100,
			EntryPrice:  100,
			EntryDate:   day(2024, 1, 1),
			InitialStop: 90,
			CurrentStop: 90,
			LastPrice:   100,
			LastScore:   80,
		}},
		Rankings: []scoring.Result{
			{Symbol: "AAA", Score: 80, Composite: 80, Rank: 1},
			{Symbol: "BBB", Score: 0, Composite: 55, Rank: 2, Verdict: scoring.Verdict{Reasons: []scoring.Reason{scoring.BelowEMA200, scoring.Illiquid}}},
		},
		Drawdown: risk.Decision{Allowed: true, State: risk.Normal, ExposureFactor: 1},
	}

	w2 := portfolio.WeeklySummary{
		Week:           2,
		Date:           day(2024, 1, 8),
		PortfolioValue: 98500,
		Ledger: portfolio.Ledger{
			Starting:  90000,
			Sold:      8500,
			Remaining: 98500,
		},
		Actions: []portfolio.Action{
			{
				ID:     "A2",
				Date:   day(2024, 1, 8),
				Type:   portfolio.Sell,
				Symbol: "AAA",
				Units:  100,
				Price:  85,
				Reason: portfolio.ReasonStopLoss,
				Status: portfolio.Approved,
				PnL:    -1500,
			},
			{
				ID:     "A3",
				Date:   day(2024, 1, 8),
				Type:   portfolio.Buy,
				Symbol: "CCC",
				Units:  5000,
				Price:  50,
				Reason: portfolio.ReasonInsufficientCapital,
				Status: portfolio.Rejected,
				Score:  70,
			},
		},
		Anomalies:          []portfolio.Anomaly{{Kind: portfolio.AnomalyDataGap, Symbol: "DDD", Message: "no snapshot"}},
		Drawdown:           risk.Decision{Allowed: true, State: risk.Normal, ExposureFactor: 1, DrawdownPct: 1.5},
		TotalReturnPercent: -1.5,
		MaxDrawdownPercent: 1.5,
	}

	return portfolio.BacktestResult{
		RunID:    "run_01HTEST0000000000000000000",
		Strategy: s,
		Start:    day(2024, 1, 1),
		End:      day(2024, 1, 12),
		Created:  time.Date(2024, 1, 13, 9, 30, 0, 0, time.UTC),
		Weeks:    []portfolio.WeeklySummary{w1, w2},
		Summary: risk.Summary{
			InitialCapital:     100000,
			FinalValue:         98500,
			TotalReturnPercent: -1.5,
			MaxDrawdownPercent: 1.5,
			TotalTrades:        1,
		},
		Trades: []risk.Trade{{
			Symbol:     "AAA",
			Reason:     string(portfolio.ReasonStopLoss),
			Units:      100,
			EntryPrice: 100,
			ExitPrice:  85,
			EntryDate:  day(2024, 1, 1),
			ExitDate:   day(2024, 1, 8),
			PnL:        -1500,
		}},
	}
}
