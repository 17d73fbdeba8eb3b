package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/momentum/portfolio"
)

const (
	insertRun = `INSERT INTO runs
		(run_id, strategy, config, start_date, end_date, created, weeks,
		 initial_capital, final_value, return_pct, max_dd_pct, trades, wins,
		 hit_rate_pct, cagr_pct, sharpe, sortino, calmar, profit_factor, costs, taxes)
		VALUES
		(:run_id, :strategy, :config, :start_date, :end_date, :created, :weeks,
		 :initial_capital, :final_value, :return_pct, :max_dd_pct, :trades, :wins,
		 :hit_rate_pct, :cagr_pct, :sharpe, :sortino, :calmar, :profit_factor, :costs, :taxes)`

	insertWeek = `INSERT INTO weeks
		(run_id, week, date, portfolio_value, starting_capital, bought, sold, costs, taxes,
		 capital_risk, remaining_capital, drawdown_state, drawdown_pct, return_pct, anomalies)
		VALUES
		(:run_id, :week, :date, :portfolio_value, :starting_capital, :bought, :sold, :costs, :taxes,
		 :capital_risk, :remaining_capital, :drawdown_state, :drawdown_pct, :return_pct, :anomalies)`

	insertAction = `INSERT INTO actions
		(run_id, action_id, week, seq, date, type, symbol, units, price, reason, status, score,
		 swap_symbol, swap_units, swap_price, swap_score, pnl, costs, tax)
		VALUES
		(:run_id, :action_id, :week, :seq, :date, :type, :symbol, :units, :price, :reason, :status, :score,
		 :swap_symbol, :swap_units, :swap_price, :swap_score, :pnl, :costs, :tax)`

	insertHolding = `INSERT INTO holdings
		(run_id, week, symbol, units, entry_price, entry_date, current_stop, last_price, last_score, value)
		VALUES
		(:run_id, :week, :symbol, :units, :entry_price, :entry_date, :current_stop, :last_price, :last_score, :value)`

	insertRanking = `INSERT INTO rankings
		(run_id, week, rank, symbol, score, composite, penalties)
		VALUES
		(:run_id, :week, :rank, :symbol, :score, :composite, :penalties)`

	insertTrade = `INSERT INTO trades
		(run_id, seq, symbol, reason, units, entry_price, exit_price, entry_date, exit_date, pnl, costs, tax)
		VALUES
		(:run_id, :seq, :symbol, :reason, :units, :entry_price, :exit_price, :entry_date, :exit_date, :pnl, :costs, :tax)`
)

// ErrDuplicate is returned when a week or run is recorded twice.
var ErrDuplicate = errors.New("journal: duplicate record")

// duplicate maps unique-key violations of either driver to ErrDuplicate.
func duplicate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// DB is a SQL journal. The same queries run on SQLite and Postgres; sqlx
// binds the named parameters in the driver's placeholder style.
type DB struct {
	db *sqlx.DB
}

// New wraps an open connection. It does not create the schema; call
// Migrate for that.
func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// Open connects with the named driver and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal open %s: %w", driver, err)
	}
	j := New(db)
	if err := j.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Migrate creates any missing tables.
func (j *DB) Migrate(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}
	return nil
}

// RecordWeek writes the week header with its actions, holdings and
// rankings in one transaction.
func (j *DB) RecordWeek(ctx context.Context, runID string, w portfolio.WeeklySummary) error {
	return j.tx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertWeek, WeekFromSummary(runID, w)); err != nil {
			return fmt.Errorf("insert week %d: %w", w.Week, err)
		}
		for _, a := range actionRecords(runID, w) {
			if _, err := tx.NamedExecContext(ctx, insertAction, a); err != nil {
				return fmt.Errorf("insert action %s: %w", a.ActionID, err)
			}
		}
		for _, h := range holdingRecords(runID, w) {
			if _, err := tx.NamedExecContext(ctx, insertHolding, h); err != nil {
				return fmt.Errorf("insert holding %s: %w", h.Symbol, err)
			}
		}
		for _, r := range rankingRecords(runID, w) {
			if _, err := tx.NamedExecContext(ctx, insertRanking, r); err != nil {
				return fmt.Errorf("insert ranking %s: %w", r.Symbol, err)
			}
		}
		return nil
	})
}

// RecordResult writes the run row and its closed trades.
func (j *DB) RecordResult(ctx context.Context, r portfolio.BacktestResult) error {
	run, err := RunFromResult(r)
	if err != nil {
		return err
	}
	return j.tx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
			return fmt.Errorf("insert run %s: %w", run.RunID, err)
		}
		for _, t := range tradeRecords(r) {
			if _, err := tx.NamedExecContext(ctx, insertTrade, t); err != nil {
				return fmt.Errorf("insert trade %s: %w", t.Symbol, err)
			}
		}
		return nil
	})
}

func (j *DB) tx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return duplicate(err)
	}
	return tx.Commit()
}

// GetRun returns the run row for runID.
func (j *DB) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	var rec RunRecord
	err := j.db.GetContext(ctx, &rec, j.db.Rebind(`SELECT * FROM runs WHERE run_id = ?`), runID)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return rec, err
}

// ListRuns returns every run, newest first.
func (j *DB) ListRuns(ctx context.Context) ([]RunRecord, error) {
	var out []RunRecord
	err := j.db.SelectContext(ctx, &out, `SELECT * FROM runs ORDER BY created DESC, run_id DESC`)
	return out, err
}

// ListWeeks returns the weeks of a run in order.
func (j *DB) ListWeeks(ctx context.Context, runID string) ([]WeekRecord, error) {
	var out []WeekRecord
	err := j.db.SelectContext(ctx, &out,
		j.db.Rebind(`SELECT * FROM weeks WHERE run_id = ? ORDER BY week`), runID)
	return out, err
}

// ListActions returns every action of a run in the order taken.
func (j *DB) ListActions(ctx context.Context, runID string) ([]ActionRecord, error) {
	var out []ActionRecord
	err := j.db.SelectContext(ctx, &out,
		j.db.Rebind(`SELECT * FROM actions WHERE run_id = ? ORDER BY week, seq`), runID)
	return out, err
}

// ListActionsBySymbol returns the actions touching symbol on either leg.
func (j *DB) ListActionsBySymbol(ctx context.Context, runID, symbol string) ([]ActionRecord, error) {
	var out []ActionRecord
	err := j.db.SelectContext(ctx, &out, j.db.Rebind(`
		SELECT * FROM actions
		WHERE run_id = ? AND (symbol = ? OR swap_symbol = ?)
		ORDER BY week, seq`), runID, symbol, symbol)
	return out, err
}

// ListHoldings returns the positions held at the end of week.
func (j *DB) ListHoldings(ctx context.Context, runID string, week int) ([]HoldingRecord, error) {
	var out []HoldingRecord
	err := j.db.SelectContext(ctx, &out,
		j.db.Rebind(`SELECT * FROM holdings WHERE run_id = ? AND week = ? ORDER BY symbol`), runID, week)
	return out, err
}

// ListRankings returns the ranking of week, best first.
func (j *DB) ListRankings(ctx context.Context, runID string, week int) ([]RankingRecord, error) {
	var out []RankingRecord
	err := j.db.SelectContext(ctx, &out,
		j.db.Rebind(`SELECT * FROM rankings WHERE run_id = ? AND week = ? ORDER BY rank, symbol`), runID, week)
	return out, err
}

// ListTrades returns the closed trades of a run in closing order.
func (j *DB) ListTrades(ctx context.Context, runID string) ([]TradeRecord, error) {
	var out []TradeRecord
	err := j.db.SelectContext(ctx, &out,
		j.db.Rebind(`SELECT * FROM trades WHERE run_id = ? ORDER BY seq`), runID)
	return out, err
}

// Close closes the connection.
func (j *DB) Close() error {
	return j.db.Close()
}
