package journal

// Schema creates the journal tables. It sticks to types both SQLite and
// Postgres accept so one schema serves either driver.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	config TEXT NOT NULL,
	start_date TIMESTAMP NOT NULL,
	end_date TIMESTAMP NOT NULL,
	created TIMESTAMP NOT NULL,
	weeks INTEGER NOT NULL,
	initial_capital DOUBLE PRECISION NOT NULL,
	final_value DOUBLE PRECISION NOT NULL,
	return_pct DOUBLE PRECISION NOT NULL,
	max_dd_pct DOUBLE PRECISION NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	hit_rate_pct DOUBLE PRECISION NOT NULL,
	cagr_pct DOUBLE PRECISION NOT NULL,
	sharpe DOUBLE PRECISION NOT NULL,
	sortino DOUBLE PRECISION NOT NULL,
	calmar DOUBLE PRECISION NOT NULL,
	profit_factor DOUBLE PRECISION NOT NULL,
	costs DOUBLE PRECISION NOT NULL,
	taxes DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS weeks (
	run_id TEXT NOT NULL,
	week INTEGER NOT NULL,
	date TIMESTAMP NOT NULL,
	portfolio_value DOUBLE PRECISION NOT NULL,
	starting_capital DOUBLE PRECISION NOT NULL,
	bought DOUBLE PRECISION NOT NULL,
	sold DOUBLE PRECISION NOT NULL,
	costs DOUBLE PRECISION NOT NULL,
	taxes DOUBLE PRECISION NOT NULL,
	capital_risk DOUBLE PRECISION NOT NULL,
	remaining_capital DOUBLE PRECISION NOT NULL,
	drawdown_state TEXT NOT NULL,
	drawdown_pct DOUBLE PRECISION NOT NULL,
	return_pct DOUBLE PRECISION NOT NULL,
	anomalies INTEGER NOT NULL,
	PRIMARY KEY (run_id, week)
);

CREATE TABLE IF NOT EXISTS actions (
	run_id TEXT NOT NULL,
	action_id TEXT NOT NULL,
	week INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	date TIMESTAMP NOT NULL,
	type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	units BIGINT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	reason TEXT NOT NULL,
	status TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	swap_symbol TEXT NOT NULL,
	swap_units BIGINT NOT NULL,
	swap_price DOUBLE PRECISION NOT NULL,
	swap_score DOUBLE PRECISION NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	costs DOUBLE PRECISION NOT NULL,
	tax DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, action_id)
);

CREATE TABLE IF NOT EXISTS holdings (
	run_id TEXT NOT NULL,
	week INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	units BIGINT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	entry_date TIMESTAMP NOT NULL,
	current_stop DOUBLE PRECISION NOT NULL,
	last_price DOUBLE PRECISION NOT NULL,
	last_score DOUBLE PRECISION NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, week, symbol)
);

CREATE TABLE IF NOT EXISTS rankings (
	run_id TEXT NOT NULL,
	week INTEGER NOT NULL,
	rank INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	composite DOUBLE PRECISION NOT NULL,
	penalties TEXT NOT NULL,
	PRIMARY KEY (run_id, week, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	reason TEXT NOT NULL,
	units BIGINT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price DOUBLE PRECISION NOT NULL,
	entry_date TIMESTAMP NOT NULL,
	exit_date TIMESTAMP NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	costs DOUBLE PRECISION NOT NULL,
	tax DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_actions_symbol ON actions(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
`
