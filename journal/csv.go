package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/portfolio"
)

var (
	weekHeader   = []string{"run_id", "week", "date", "portfolio_value", "starting_capital", "bought", "sold", "costs", "taxes", "capital_risk", "remaining_capital", "drawdown_state", "drawdown_pct", "return_pct", "anomalies"}
	actionHeader = []string{"run_id", "action_id", "week", "seq", "date", "type", "symbol", "units", "price", "reason", "status", "score", "swap_symbol", "swap_units", "swap_price", "swap_score", "pnl", "costs", "tax"}
	tradeHeader  = []string{"run_id", "symbol", "reason", "units", "entry_price", "exit_price", "entry_date", "exit_date", "pnl", "costs", "tax"}
)

// CSVJournal writes weeks.csv, actions.csv and trades.csv into a directory.
type CSVJournal struct {
	mu      sync.Mutex
	weeks   *csv.Writer
	actions *csv.Writer
	trades  *csv.Writer
	files   []*os.File
}

// NewCSV creates dir if needed and truncates the three files.
func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.weeks, err = open("weeks.csv", weekHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.actions, err = open("actions.csv", actionHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.trades, err = open("trades.csv", tradeHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordWeek(_ context.Context, runID string, w portfolio.WeeklySummary) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	wr := WeekFromSummary(runID, w)
	err := j.weeks.Write([]string{
		wr.RunID,
		strconv.Itoa(wr.Week),
		wr.Date.Format(market.DateLayout),
		f(wr.PortfolioValue),
		f(wr.Starting),
		f(wr.Bought),
		f(wr.Sold),
		f(wr.Costs),
		f(wr.Taxes),
		f(wr.CapitalRisk),
		f(wr.Remaining),
		wr.DrawdownState,
		f(wr.DrawdownPct),
		f(wr.ReturnPct),
		strconv.Itoa(wr.Anomalies),
	})
	if err != nil {
		return err
	}

	for _, a := range actionRecords(runID, w) {
		err := j.actions.Write([]string{
			a.RunID,
			a.ActionID,
			strconv.Itoa(a.Week),
			strconv.Itoa(a.Seq),
			a.Date.Format(market.DateLayout),
			a.Type,
			a.Symbol,
			strconv.FormatInt(a.Units, 10),
			f(a.Price),
			a.Reason,
			a.Status,
			f(a.Score),
			a.SwapSymbol,
			strconv.FormatInt(a.SwapUnits, 10),
			f(a.SwapPrice),
			f(a.SwapScore),
			f(a.PnL),
			f(a.Costs),
			f(a.Tax),
		})
		if err != nil {
			return err
		}
	}

	j.weeks.Flush()
	j.actions.Flush()
	if err := j.weeks.Error(); err != nil {
		return err
	}
	return j.actions.Error()
}

func (j *CSVJournal) RecordResult(_ context.Context, r portfolio.BacktestResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, t := range tradeRecords(r) {
		err := j.trades.Write([]string{
			t.RunID,
			t.Symbol,
			t.Reason,
			strconv.FormatInt(t.Units, 10),
			f(t.EntryPrice),
			f(t.ExitPrice),
			t.EntryDate.Format(market.DateLayout),
			t.ExitDate.Format(market.DateLayout),
			f(t.PnL),
			f(t.Costs),
			f(t.Tax),
		})
		if err != nil {
			return err
		}
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, w := range []*csv.Writer{j.weeks, j.actions, j.trades} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", fh.Name(), err)
		}
	}
	j.files = nil
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
