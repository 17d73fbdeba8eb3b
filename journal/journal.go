// Package journal persists backtest runs: weekly summaries, actions,
// holdings, rankings and closed trades. Recorders here implement
// portfolio.Recorder.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rustyeddy/momentum/portfolio"
	"github.com/rustyeddy/momentum/risk"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("journal: not found")

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID          string    `db:"run_id"`
	Strategy       string    `db:"strategy"`
	Config         string    `db:"config"`
	Start          time.Time `db:"start_date"`
	End            time.Time `db:"end_date"`
	Created        time.Time `db:"created"`
	Weeks          int       `db:"weeks"`
	InitialCapital float64   `db:"initial_capital"`
	FinalValue     float64   `db:"final_value"`
	ReturnPct      float64   `db:"return_pct"`
	MaxDDPct       float64   `db:"max_dd_pct"`
	Trades         int       `db:"trades"`
	Wins           int       `db:"wins"`
	HitRatePct     float64   `db:"hit_rate_pct"`
	CAGRPct        float64   `db:"cagr_pct"`
	Sharpe         float64   `db:"sharpe"`
	Sortino        float64   `db:"sortino"`
	Calmar         float64   `db:"calmar"`
	ProfitFactor   float64   `db:"profit_factor"`
	Costs          float64   `db:"costs"`
	Taxes          float64   `db:"taxes"`
}

// WeekRecord is one row of the weeks table.
type WeekRecord struct {
	RunID          string    `db:"run_id"`
	Week           int       `db:"week"`
	Date           time.Time `db:"date"`
	PortfolioValue float64   `db:"portfolio_value"`
	Starting       float64   `db:"starting_capital"`
	Bought         float64   `db:"bought"`
	Sold           float64   `db:"sold"`
	Costs          float64   `db:"costs"`
	Taxes          float64   `db:"taxes"`
	CapitalRisk    float64   `db:"capital_risk"`
	Remaining      float64   `db:"remaining_capital"`
	DrawdownState  string    `db:"drawdown_state"`
	DrawdownPct    float64   `db:"drawdown_pct"`
	ReturnPct      float64   `db:"return_pct"`
	Anomalies      int       `db:"anomalies"`
}

// ActionRecord is one row of the actions table. Seq keeps the order the
// actions were taken within a week.
type ActionRecord struct {
	RunID      string    `db:"run_id"`
	ActionID   string    `db:"action_id"`
	Week       int       `db:"week"`
	Seq        int       `db:"seq"`
	Date       time.Time `db:"date"`
	Type       string    `db:"type"`
	Symbol     string    `db:"symbol"`
	Units      int64     `db:"units"`
	Price      float64   `db:"price"`
	Reason     string    `db:"reason"`
	Status     string    `db:"status"`
	Score      float64   `db:"score"`
	SwapSymbol string    `db:"swap_symbol"`
	SwapUnits  int64     `db:"swap_units"`
	SwapPrice  float64   `db:"swap_price"`
	SwapScore  float64   `db:"swap_score"`
	PnL        float64   `db:"pnl"`
	Costs      float64   `db:"costs"`
	Tax        float64   `db:"tax"`
}

// HoldingRecord is one open position at the end of a week.
type HoldingRecord struct {
	RunID       string    `db:"run_id"`
	Week        int       `db:"week"`
	Symbol      string    `db:"symbol"`
	Units       int64     `db:"units"`
	EntryPrice  float64   `db:"entry_price"`
	EntryDate   time.Time `db:"entry_date"`
	CurrentStop float64   `db:"current_stop"`
	LastPrice   float64   `db:"last_price"`
	LastScore   float64   `db:"last_score"`
	Value       float64   `db:"value"`
}

// RankingRecord is one scored symbol in a week's ranking.
type RankingRecord struct {
	RunID     string  `db:"run_id"`
	Week      int     `db:"week"`
	Rank      int     `db:"rank"`
	Symbol    string  `db:"symbol"`
	Score     float64 `db:"score"`
	Composite float64 `db:"composite"`
	Penalties string  `db:"penalties"`
}

// TradeRecord is a closed round trip.
type TradeRecord struct {
	RunID      string    `db:"run_id"`
	Seq        int       `db:"seq"`
	Symbol     string    `db:"symbol"`
	Reason     string    `db:"reason"`
	Units      int64     `db:"units"`
	EntryPrice float64   `db:"entry_price"`
	ExitPrice  float64   `db:"exit_price"`
	EntryDate  time.Time `db:"entry_date"`
	ExitDate   time.Time `db:"exit_date"`
	PnL        float64   `db:"pnl"`
	Costs      float64   `db:"costs"`
	Tax        float64   `db:"tax"`
}

// Trade converts the row back to the trade it was recorded from.
func (t TradeRecord) Trade() risk.Trade {
	return risk.Trade{
		Symbol:     t.Symbol,
		Reason:     t.Reason,
		Units:      t.Units,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		EntryDate:  t.EntryDate,
		ExitDate:   t.ExitDate,
		PnL:        t.PnL,
		Costs:      t.Costs,
		Tax:        t.Tax,
	}
}

// Journal is a Recorder backed by a resource that must be closed.
type Journal interface {
	portfolio.Recorder
	io.Closer
}

// RunFromResult flattens a finished run.
func RunFromResult(r portfolio.BacktestResult) (RunRecord, error) {
	cfg, err := json.Marshal(r.Strategy)
	if err != nil {
		return RunRecord{}, err
	}
	totals := r.Totals()
	return RunRecord{
		RunID:          r.RunID,
		Strategy:       r.Strategy.Name,
		Config:         string(cfg),
		Start:          r.Start,
		End:            r.End,
		Created:        r.Created,
		Weeks:          len(r.Weeks),
		InitialCapital: r.Summary.InitialCapital,
		FinalValue:     r.Summary.FinalValue,
		ReturnPct:      r.Summary.TotalReturnPercent,
		MaxDDPct:       r.Summary.MaxDrawdownPercent,
		Trades:         r.Summary.TotalTrades,
		Wins:           r.Summary.SuccessfulTrades,
		HitRatePct:     r.Summary.HitRatePercent,
		CAGRPct:        r.Performance.CAGRPercent,
		Sharpe:         r.Performance.Sharpe,
		Sortino:        r.Performance.Sortino,
		Calmar:         r.Performance.Calmar,
		ProfitFactor:   r.Performance.ProfitFactor,
		Costs:          totals.Costs,
		Taxes:          totals.Taxes,
	}, nil
}

// WeekFromSummary flattens the header of a weekly summary.
func WeekFromSummary(runID string, w portfolio.WeeklySummary) WeekRecord {
	return WeekRecord{
		RunID:          runID,
		Week:           w.Week,
		Date:           w.Date,
		PortfolioValue: w.PortfolioValue,
		Starting:       w.Ledger.Starting,
		Bought:         w.Ledger.Bought,
		Sold:           w.Ledger.Sold,
		Costs:          w.Ledger.Costs,
		Taxes:          w.Ledger.Taxes,
		CapitalRisk:    w.Ledger.CapitalRisk,
		Remaining:      w.Ledger.Remaining,
		DrawdownState:  w.Drawdown.State.String(),
		DrawdownPct:    w.Drawdown.DrawdownPct,
		ReturnPct:      w.TotalReturnPercent,
		Anomalies:      len(w.Anomalies),
	}
}

func actionRecords(runID string, w portfolio.WeeklySummary) []ActionRecord {
	out := make([]ActionRecord, 0, len(w.Actions))
	for i, a := range w.Actions {
		out = append(out, ActionRecord{
			RunID:      runID,
			ActionID:   a.ID,
			Week:       w.Week,
			Seq:        i,
			Date:       a.Date,
			Type:       a.Type.String(),
			Symbol:     a.Symbol,
			Units:      a.Units,
			Price:      a.Price,
			Reason:     string(a.Reason),
			Status:     a.Status.String(),
			Score:      a.Score,
			SwapSymbol: a.SwapSymbol,
			SwapUnits:  a.SwapUnits,
			SwapPrice:  a.SwapPrice,
			SwapScore:  a.SwapScore,
			PnL:        a.PnL,
			Costs:      a.Costs,
			Tax:        a.Tax,
		})
	}
	return out
}

func holdingRecords(runID string, w portfolio.WeeklySummary) []HoldingRecord {
	out := make([]HoldingRecord, 0, len(w.Holdings))
	for _, p := range w.Holdings {
		out = append(out, HoldingRecord{
			RunID:       runID,
			Week:        w.Week,
			Symbol:      p.Symbol,
			Units:       p.Units,
			EntryPrice:  p.EntryPrice,
			EntryDate:   p.EntryDate,
			CurrentStop: p.CurrentStop,
			LastPrice:   p.LastPrice,
			LastScore:   p.LastScore,
			Value:       p.Value(),
		})
	}
	return out
}

func rankingRecords(runID string, w portfolio.WeeklySummary) []RankingRecord {
	out := make([]RankingRecord, 0, len(w.Rankings))
	for _, r := range w.Rankings {
		reasons := make([]string, len(r.Verdict.Reasons))
		for i, p := range r.Verdict.Reasons {
			reasons[i] = string(p)
		}
		out = append(out, RankingRecord{
			RunID:     runID,
			Week:      w.Week,
			Rank:      r.Rank,
			Symbol:    r.Symbol,
			Score:     r.Score,
			Composite: r.Composite,
			Penalties: strings.Join(reasons, ","),
		})
	}
	return out
}

func tradeRecords(r portfolio.BacktestResult) []TradeRecord {
	out := make([]TradeRecord, 0, len(r.Trades))
	for i, t := range r.Trades {
		out = append(out, TradeRecord{
			RunID:      r.RunID,
			Seq:        i,
			Symbol:     t.Symbol,
			Reason:     t.Reason,
			Units:      t.Units,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			EntryDate:  t.EntryDate,
			ExitDate:   t.ExitDate,
			PnL:        t.PnL,
			Costs:      t.Costs,
			Tax:        t.Tax,
		})
	}
	return out
}

// Multi fans a run out to several recorders. Every recorder sees every
// call; errors are joined.
type Multi []portfolio.Recorder

func (m Multi) RecordWeek(ctx context.Context, runID string, w portfolio.WeeklySummary) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordWeek(ctx, runID, w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RecordResult(ctx context.Context, res portfolio.BacktestResult) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordResult(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every recorder that is an io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
