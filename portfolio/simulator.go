// Package portfolio simulates a weekly-rebalanced momentum portfolio.
//
// Each week the simulator scores the universe, exits positions whose
// stop was hit or whose score decayed, optionally rotates weak holdings
// into stronger candidates, and fills open slots with risk-parity sized
// entries. Weeks are strictly sequential: week n+1 sizes against the
// exact holdings and cash committed by week n.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/momentum/config"
	"github.com/rustyeddy/momentum/costs"
	"github.com/rustyeddy/momentum/feed"
	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/pkg/id"
	"github.com/rustyeddy/momentum/risk"
	"github.com/rustyeddy/momentum/scoring"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("portfolio: simulator has already run")

// capitalEpsilon is the cash shortfall tolerated as rounding.
const capitalEpsilon = 1e-6

type Option func(*Simulator)

func WithLogger(l zerolog.Logger) Option { return func(s *Simulator) { s.log = l } }

func WithRecorder(r Recorder) Option { return func(s *Simulator) { s.recorder = r } }

func WithCostModel(m CostModel) Option { return func(s *Simulator) { s.costs = m } }

func WithTaxModel(m TaxModel) Option { return func(s *Simulator) { s.tax = m } }

// WithObserver adds an observer; it may be given more than once.
func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// WithClock sets the wall clock used to stamp the run.
func WithClock(now func() time.Time) Option { return func(s *Simulator) { s.now = now } }

// Simulator is one backtest run. It is not safe for concurrent use.
type Simulator struct {
	strategy  config.Strategy
	feed      feed.DataFeed
	scorer    Scorer
	stops     risk.StopTracker
	costs     CostModel
	tax       TaxModel
	recorder  Recorder
	observers []Observer
	log       zerolog.Logger
	now       func() time.Time

	runID    string
	holdings map[string]*Position
	cash     float64
	monitor  *risk.Monitor
	weeks    []WeeklySummary
	ran      bool
}

// New builds a simulator for strategy. Cost and tax default to zero.
func New(strategy config.Strategy, f feed.DataFeed, scorer Scorer, opts ...Option) (*Simulator, error) {
	if f == nil {
		return nil, fmt.Errorf("portfolio: Feed is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("portfolio: Scorer is required")
	}
	if err := strategy.Validate("strategy"); err != nil {
		return nil, err
	}

	s := &Simulator{
		strategy: strategy,
		feed:     f,
		scorer:   scorer,
		stops:    strategy.Stops(),
		costs:    costs.Zero{},
		tax:      costs.Zero{},
		log:      zerolog.Nop(),
		now:      time.Now,
		holdings: make(map[string]*Position),
		cash:     strategy.InitialCapital,
		monitor:  risk.NewMonitor(strategy.InitialCapital),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runID = id.Run(s.now())
	return s, nil
}

func (s *Simulator) RunID() string             { return s.runID }
func (s *Simulator) Cash() float64             { return s.cash }
func (s *Simulator) Strategy() config.Strategy { return s.strategy }

// Weeks returns the committed summaries so far.
func (s *Simulator) Weeks() []WeeklySummary {
	return append([]WeeklySummary(nil), s.weeks...)
}

// Holdings returns copies of the open positions sorted by symbol.
func (s *Simulator) Holdings() []Position {
	out := make([]Position, 0, len(s.holdings))
	for _, sym := range s.symbols() {
		out = append(out, *s.holdings[sym])
	}
	return out
}

func (s *Simulator) symbols() []string {
	syms := make([]string, 0, len(s.holdings))
	for sym := range s.holdings {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Value marks the holdings to their last price and adds cash.
func (s *Simulator) Value() float64 {
	v := s.cash
	for _, p := range s.holdings {
		v += p.Value()
	}
	return v
}

func (s *Simulator) capitalRisk() float64 {
	r := 0.0
	for _, p := range s.holdings {
		r += p.OpenRisk()
	}
	return r
}

// Run steps every Monday in [start, end]. Cancellation is honored
// between weeks; the partial result is returned with the context error.
func (s *Simulator) Run(ctx context.Context, start, end time.Time) (BacktestResult, error) {
	if s.ran {
		return BacktestResult{}, ErrAlreadyRun
	}
	s.ran = true

	mondays := market.WeekMondays(start, end)
	s.log.Info().
		Str("run", s.runID).
		Str("strategy", s.strategy.Name).
		Time("start", start).
		Time("end", end).
		Int("weeks", len(mondays)).
		Float64("capital", s.strategy.InitialCapital).
		Msg("backtest started")

	for _, d := range mondays {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Err(err).Int("committed", len(s.weeks)).Msg("backtest cancelled")
			return s.result(start, end), err
		}
		if _, err := s.Step(ctx, d); err != nil {
			return s.result(start, end), err
		}
	}

	res := s.result(start, end)
	if s.recorder != nil {
		if err := s.recorder.RecordResult(ctx, res); err != nil {
			return res, fmt.Errorf("record result: %w", err)
		}
	}

	s.log.Info().
		Str("run", s.runID).
		Float64("final_value", res.Summary.FinalValue).
		Float64("return_pct", res.Summary.TotalReturnPercent).
		Float64("max_dd_pct", res.Summary.MaxDrawdownPercent).
		Int("trades", res.Summary.TotalTrades).
		Msg("backtest finished")
	return res, nil
}

func (s *Simulator) result(start, end time.Time) BacktestResult {
	return BacktestResult{
		RunID:       s.runID,
		Strategy:    s.strategy,
		Start:       market.Day(start),
		End:         market.Day(end),
		Created:     s.now().UTC(),
		Weeks:       s.Weeks(),
		Summary:     s.monitor.Summary(),
		Performance: s.monitor.Performance(start, end, risk.DefaultRiskFree, risk.WeeksPerYear),
		Trades:      s.monitor.Trades(),
	}
}

// week is the scratch state of one Step.
type week struct {
	date       time.Time
	snaps      map[string]market.Snapshot
	scores     map[string]scoring.Result
	results    []scoring.Result
	candidates []scoring.Result
	prices     map[string]float64
	// used holds symbols exited or entered this week.
	used    map[string]bool
	summary *WeeklySummary
}

func (w *week) anomaly(kind AnomalyKind, symbol, msg string) {
	w.summary.Anomalies = append(w.summary.Anomalies, Anomaly{Kind: kind, Symbol: symbol, Message: msg})
}

// atr returns this week's ATR for symbol, or 0 when unavailable.
func (w *week) atr(symbol string) float64 {
	v, _ := w.snaps[symbol].Positive(market.ATR14)
	return v
}

// Step runs one week. All market data is fetched before any state
// changes, so a feed error leaves the simulator as it was. A recorder
// error is returned after the week has been applied.
func (s *Simulator) Step(ctx context.Context, date time.Time) (WeeklySummary, error) {
	date = market.Day(date)
	w := &WeeklySummary{
		Week:   len(s.weeks) + 1,
		Date:   date,
		Ledger: Ledger{Starting: s.cash},
	}
	wk := &week{
		date:    date,
		snaps:   make(map[string]market.Snapshot),
		scores:  make(map[string]scoring.Result),
		prices:  make(map[string]float64),
		used:    make(map[string]bool),
		summary: w,
	}
	if err := s.gather(ctx, wk); err != nil {
		return WeeklySummary{}, err
	}
	w.Candidates = wk.candidates
	w.Rankings = wk.results

	s.exitStops(wk)
	w.Drawdown = risk.Evaluate(s.strategy.Drawdown, s.monitor.Peak(), s.Value())
	if !w.Drawdown.Allowed {
		s.log.Info().Time("date", date).Float64("drawdown_pct", w.Drawdown.DrawdownPct).Msg("entries paused by drawdown controls")
	}
	s.exitDecayed(wk)
	if s.strategy.RotationSwaps {
		s.rotate(wk)
	}
	s.enter(wk)

	return s.commit(ctx, wk)
}

// feedErr records a feed failure as an anomaly. Context errors abort the
// week instead.
func (s *Simulator) feedErr(ctx context.Context, wk *week, symbol string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.log.Warn().Err(err).Str("symbol", symbol).Time("date", wk.date).Msg("feed error, treating as data gap")
	wk.anomaly(AnomalyFeedError, symbol, err.Error())
	return nil
}

func (s *Simulator) gather(ctx context.Context, wk *week) error {
	universe, err := s.feed.Universe(ctx, wk.date)
	if err != nil {
		if err := s.feedErr(ctx, wk, "", err); err != nil {
			return err
		}
	}
	if len(universe) == 0 {
		wk.anomaly(AnomalyNoData, "", "empty universe")
	}

	snaps := make([]market.Snapshot, 0, len(universe))
	for _, sym := range universe {
		snap, ok, err := s.feed.Snapshot(ctx, sym, wk.date)
		if err != nil {
			if err := s.feedErr(ctx, wk, sym, err); err != nil {
				return err
			}
			continue
		}
		if !ok {
			wk.anomaly(AnomalyDataGap, sym, "no snapshot")
			continue
		}
		wk.snaps[sym] = snap
		snaps = append(snaps, snap)
	}

	wk.results = s.scorer.Score(snaps)
	for _, r := range wk.results {
		wk.scores[r.Symbol] = r
	}
	wk.candidates = scoring.Top(wk.results, s.strategy.Pool())

	// Held symbols outside the universe still need an ATR to trail.
	for _, sym := range s.symbols() {
		if _, ok := wk.snaps[sym]; ok {
			continue
		}
		snap, ok, err := s.feed.Snapshot(ctx, sym, wk.date)
		if err != nil {
			if err := s.feedErr(ctx, wk, sym, err); err != nil {
				return err
			}
			continue
		}
		if ok {
			wk.snaps[sym] = snap
		}
	}

	need := s.symbols()
	for _, c := range wk.candidates {
		if _, held := s.holdings[c.Symbol]; !held {
			need = append(need, c.Symbol)
		}
	}
	for _, sym := range need {
		price, ok, err := s.feed.Price(ctx, sym, wk.date)
		if err != nil {
			if err := s.feedErr(ctx, wk, sym, err); err != nil {
				return err
			}
			continue
		}
		if !ok || price <= 0 {
			msg := "no price"
			if _, held := s.holdings[sym]; held {
				msg = "no price, valued at last price"
			}
			wk.anomaly(AnomalyDataGap, sym, msg)
			continue
		}
		wk.prices[sym] = price
	}
	return nil
}

func (s *Simulator) exitStops(wk *week) {
	for _, sym := range s.symbols() {
		pos := s.holdings[sym]
		price, ok := wk.prices[sym]
		if !ok {
			continue
		}
		pos.LastPrice = price

		if risk.Hit(price, pos.CurrentStop) {
			s.log.Debug().Str("symbol", sym).Float64("price", price).Float64("stop", pos.CurrentStop).Msg("stop loss hit")
			s.sell(wk, pos, price, ReasonStopLoss)
			continue
		}
		pos.CurrentStop = s.stops.Trail(pos.CurrentStop, pos.EntryPrice, pos.InitialStop, price, wk.atr(sym))
	}
}

func (s *Simulator) exitDecayed(wk *week) {
	for _, sym := range s.symbols() {
		pos := s.holdings[sym]
		res, scored := wk.scores[sym]
		price, priced := wk.prices[sym]
		if !scored || !priced {
			continue
		}
		pos.LastScore = res.Score
		if res.Score >= s.strategy.ExitThreshold {
			continue
		}

		full := len(s.holdings) >= s.strategy.MaxPositions
		if full && wk.summary.Drawdown.Allowed && s.swap(wk, pos, ReasonScoreDecay) {
			continue
		}
		s.sell(wk, pos, price, ReasonScoreDecay)
	}
}

// rotate replaces the weakest holding outside the candidate pool with a
// clearly stronger challenger until no such swap exists.
func (s *Simulator) rotate(wk *week) {
	if !wk.summary.Drawdown.Allowed {
		return
	}
	pool := make(map[string]bool, len(wk.candidates))
	for _, c := range wk.candidates {
		pool[c.Symbol] = true
	}
	advisor, _ := s.tax.(LTCGAdvisor)

	for len(s.holdings) >= s.strategy.MaxPositions {
		var weakest *Position
		for _, sym := range s.symbols() {
			pos := s.holdings[sym]
			if pool[sym] || wk.used[sym] {
				continue
			}
			if _, ok := wk.scores[sym]; !ok {
				continue
			}
			if _, ok := wk.prices[sym]; !ok {
				continue
			}
			if advisor != nil && advisor.HoldForLTCG(pos.EntryDate, wk.date, pos.LastScore) {
				continue
			}
			if weakest == nil || pos.LastScore < weakest.LastScore {
				weakest = pos
			}
		}
		if weakest == nil || !s.swap(wk, weakest, ReasonRotation) {
			return
		}
	}
}

func (s *Simulator) enter(wk *week) {
	if !wk.summary.Drawdown.Allowed {
		return
	}
	open := s.strategy.MaxPositions - len(s.holdings)
	for _, c := range wk.candidates {
		if open <= 0 {
			return
		}
		if _, held := s.holdings[c.Symbol]; held || wk.used[c.Symbol] {
			continue
		}
		e, ok := s.size(wk, c, s.cash)
		if !ok {
			continue
		}
		if e.value+e.cost > s.cash {
			a := s.action(wk, Buy, c.Symbol, e.shares, e.price, ReasonInsufficientCapital, c.Score)
			a.Costs = e.cost
			a.Status = Rejected
			wk.summary.Actions = append(wk.summary.Actions, a)
			s.log.Debug().Str("symbol", c.Symbol).Float64("needed", e.value+e.cost).Float64("cash", s.cash).Msg("entry rejected, insufficient capital")
			continue
		}

		a := s.action(wk, Buy, c.Symbol, e.shares, e.price, ReasonEntry, c.Score)
		a.Costs = e.cost
		s.open(wk, e)
		s.approve(wk, a)
		open--
	}
}

// entry is a sized, not yet executed purchase.
type entry struct {
	symbol string
	score  float64
	price  float64
	atr    float64
	shares int64
	value  float64
	cost   float64
}

// size sizes candidate c against available cash.
func (s *Simulator) size(wk *week, c scoring.Result, available float64) (entry, bool) {
	price, ok := wk.prices[c.Symbol]
	if !ok {
		return entry{}, false
	}
	limit := available * (1 - s.strategy.BufferPercent) * wk.summary.Drawdown.ExposureFactor
	if limit <= 0 {
		s.log.Debug().Str("symbol", c.Symbol).Float64("cash", available).Msg("no capital to size entry")
		return entry{}, false
	}

	atr := wk.atr(c.Symbol)
	res, err := risk.Calculate(risk.Inputs{
		RiskAmount:       s.strategy.RiskAmount(),
		ATR:              atr,
		StopMultiplier:   s.strategy.SLMultiplier,
		Price:            price,
		MaxPositionValue: limit,
		FallbackPercent:  s.strategy.SLFallbackPercent,
		MinOneShare:      s.strategy.MinOneShare,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", c.Symbol).Float64("price", price).Msg("position sizing failed")
		return entry{}, false
	}
	if res.Shares < 1 {
		s.log.Debug().Str("symbol", c.Symbol).Float64("limit", limit).Msg("position sizes to zero shares")
		return entry{}, false
	}

	value := float64(res.Shares) * price
	return entry{
		symbol: c.Symbol,
		score:  c.Score,
		price:  price,
		atr:    atr,
		shares: res.Shares,
		value:  value,
		cost:   s.costs.TransactionCost(value, market.Buy),
	}, true
}

// sale is the priced outcome of closing a position.
type sale struct {
	price float64
	cost  float64
	tax   costs.Tax
	net   float64
	pnl   float64
}

func (s *Simulator) saleOf(pos *Position, price float64, date time.Time) sale {
	value := float64(pos.Units) * price
	sl := sale{
		price: price,
		cost:  s.costs.TransactionCost(value, market.Sell),
		tax:   s.tax.CapitalGainsTax(pos.EntryPrice, price, pos.EntryDate, date, pos.Units),
	}
	sl.net = value - sl.cost - sl.tax.Tax
	sl.pnl = sl.net - (float64(pos.Units)*pos.EntryPrice + pos.BuyCosts)
	return sl
}

// swap sells pos and buys the strongest unused challenger that beats it
// by the swap buffer. It reports false, changing nothing, when no
// challenger qualifies and fits the post-sale cash.
func (s *Simulator) swap(wk *week, pos *Position, reason Reason) bool {
	price, ok := wk.prices[pos.Symbol]
	if !ok {
		return false
	}
	sl := s.saleOf(pos, price, wk.date)
	available := s.cash + sl.net
	bar := (1 + s.strategy.Swap()) * pos.LastScore

	for _, c := range wk.candidates {
		if c.Score < s.strategy.ExitThreshold || c.Score <= bar {
			break
		}
		if _, held := s.holdings[c.Symbol]; held || wk.used[c.Symbol] {
			continue
		}
		e, ok := s.size(wk, c, available)
		if !ok || e.value+e.cost > available {
			continue
		}

		a := s.action(wk, Swap, pos.Symbol, pos.Units, price, reason, pos.LastScore)
		a.SwapSymbol = e.symbol
		a.SwapUnits = e.shares
		a.SwapPrice = e.price
		a.SwapScore = e.score
		a.PnL = sl.pnl
		a.Tax = sl.tax.Tax
		a.Costs = sl.cost + e.cost

		s.close(wk, pos, sl, reason)
		s.open(wk, e)
		s.approve(wk, a)
		s.log.Debug().Str("out", pos.Symbol).Str("in", e.symbol).Str("reason", string(reason)).Msg("swap")
		return true
	}
	return false
}

func (s *Simulator) sell(wk *week, pos *Position, price float64, reason Reason) {
	sl := s.saleOf(pos, price, wk.date)
	a := s.action(wk, Sell, pos.Symbol, pos.Units, price, reason, pos.LastScore)
	a.PnL = sl.pnl
	a.Tax = sl.tax.Tax
	a.Costs = sl.cost
	s.close(wk, pos, sl, reason)
	s.approve(wk, a)
}

func (s *Simulator) action(wk *week, typ ActionType, symbol string, units int64, price float64, reason Reason, score float64) Action {
	return Action{
		ID:     id.At(wk.date),
		Date:   wk.date,
		Type:   typ,
		Symbol: symbol,
		Units:  units,
		Price:  price,
		Reason: reason,
		Status: Pending,
		Score:  score,
	}
}

func (s *Simulator) approve(wk *week, a Action) {
	a.Status = Approved
	wk.summary.Actions = append(wk.summary.Actions, a)
}

func (s *Simulator) close(wk *week, pos *Position, sl sale, reason Reason) {
	s.cash += sl.net
	wk.summary.Ledger.Sold += sl.net
	wk.summary.Ledger.Costs += sl.cost
	wk.summary.Ledger.Taxes += sl.tax.Tax

	delete(s.holdings, pos.Symbol)
	wk.used[pos.Symbol] = true

	s.monitor.RecordTrade(risk.Trade{
		Symbol:     pos.Symbol,
		Reason:     string(reason),
		Units:      pos.Units,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  sl.price,
		EntryDate:  pos.EntryDate,
		ExitDate:   wk.date,
		PnL:        sl.pnl,
		Costs:      pos.BuyCosts + sl.cost,
		Tax:        sl.tax.Tax,
	})
}

func (s *Simulator) open(wk *week, e entry) {
	s.cash -= e.value + e.cost
	wk.summary.Ledger.Bought += e.value + e.cost
	wk.summary.Ledger.Costs += e.cost

	stop := s.stops.Initial(e.price, e.atr)
	s.holdings[e.symbol] = &Position{
		Symbol:      e.symbol,
		Units:       e.shares,
		EntryPrice:  e.price,
		EntryDate:   wk.date,
		EntryScore:  e.score,
		EntryATR:    e.atr,
		InitialStop: stop,
		CurrentStop: stop,
		LastPrice:   e.price,
		LastScore:   e.score,
		BuyCosts:    e.cost,
	}
	wk.used[e.symbol] = true
}

func (s *Simulator) commit(ctx context.Context, wk *week) (WeeklySummary, error) {
	w := wk.summary
	value := s.Value()

	w.Ledger.Remaining = s.cash
	w.Ledger.CapitalRisk = s.capitalRisk()
	if s.cash < -capitalEpsilon {
		wk.anomaly(AnomalyCapitalIntegrity, "", fmt.Sprintf("remaining capital %.2f is negative", s.cash))
		s.log.Warn().Time("date", wk.date).Float64("remaining", s.cash).Msg("capital integrity warning")
	}

	s.monitor.Update(value)
	w.PortfolioValue = value
	w.Holdings = s.Holdings()
	w.TotalReturnPercent = risk.ReturnPct(s.strategy.InitialCapital, value)
	w.MaxDrawdownPercent = s.monitor.MaxDrawdown()
	s.weeks = append(s.weeks, *w)

	s.log.Info().
		Int("week", w.Week).
		Time("date", w.Date).
		Float64("value", value).
		Float64("cash", s.cash).
		Int("holdings", len(w.Holdings)).
		Int("actions", len(w.Actions)).
		Int("anomalies", len(w.Anomalies)).
		Msg("week committed")

	if s.recorder != nil {
		if err := s.recorder.RecordWeek(ctx, s.runID, *w); err != nil {
			return *w, fmt.Errorf("record week %s: %w", w.Date.Format(market.DateLayout), err)
		}
	}
	for _, o := range s.observers {
		o.ObserveWeek(*w)
	}
	return *w, nil
}
