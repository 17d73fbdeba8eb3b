package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/momentum/config"
	"github.com/rustyeddy/momentum/costs"
	"github.com/rustyeddy/momentum/feed"
	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/scoring"
)

const scoreKey = "test_score"

// valueScorer scores each snapshot with its test_score value.
type valueScorer struct{}

func (valueScorer) Score(snaps []market.Snapshot) []scoring.Result {
	out := make([]scoring.Result, 0, len(snaps))
	for _, s := range snaps {
		v := s.Values[scoreKey]
		out = append(out, scoring.Result{Symbol: s.Symbol, Date: s.Date, Composite: v, Score: v})
	}
	scoring.Sort(out)
	return out
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday

func monday(i int) time.Time { return epoch.AddDate(0, 0, 7*i) }

type fixture struct {
	mem *feed.Memory
}

func newFixture() *fixture {
	return &fixture{mem: feed.NewMemory(3)}
}

func (f *fixture) add(week int, sym string, price, atr, score float64) *fixture {
	f.mem.Add(market.Snapshot{
		Symbol:  sym,
		Date:    monday(week),
		Close:   price,
		History: 300,
		Values:  map[string]float64{market.ATR14: atr, scoreKey: score},
	})
	return f
}

func testStrategy() config.Strategy {
	s := config.DefaultStrategy()
	s.MaxPositions = 2
	return s
}

func newSim(t *testing.T, f *fixture, s config.Strategy, opts ...Option) *Simulator {
	t.Helper()
	sim, err := New(s, f.mem, valueScorer{}, opts...)
	require.NoError(t, err)
	return sim
}

func step(t *testing.T, sim *Simulator, week int) WeeklySummary {
	t.Helper()
	w, err := sim.Step(context.Background(), monday(week))
	require.NoError(t, err)
	require.True(t, w.Ledger.Balanced(1e-6), "ledger out of balance: %+v", w.Ledger)
	require.InDelta(t, w.PortfolioValue, markedValue(w), 1e-6, "holdings plus cash")
	return w
}

// markedValue is the holdings at their last price plus remaining cash.
func markedValue(w WeeklySummary) float64 {
	v := w.Ledger.Remaining
	for _, h := range w.Holdings {
		v += float64(h.Units) * h.LastPrice
	}
	return v
}

func actionsOf(w WeeklySummary, typ ActionType) []Action {
	var out []Action
	for _, a := range w.Actions {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()
	_, err := New(testStrategy(), nil, valueScorer{})
	assert.Error(t, err)
	_, err = New(testStrategy(), feed.NewMemory(0), nil)
	assert.Error(t, err)

	bad := testStrategy()
	bad.MaxPositions = 0
	_, err = New(bad, feed.NewMemory(0), valueScorer{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEntriesRiskParity(t *testing.T) {
	t.Parallel()
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(0, "BBB", 200, 5, 80).
		add(0, "CCC", 50, 1, 70)
	sim := newSim(t, f, testStrategy())

	w := step(t, sim, 0)
	buys := actionsOf(w, Buy)
	require.Len(t, buys, 2)
	assert.Equal(t, "AAA", buys[0].Symbol)
	assert.Equal(t, int64(50), buys[0].Units) // 1000 / (2 * 10)
	assert.Equal(t, ReasonEntry, buys[0].Reason)
	assert.Equal(t, Approved, buys[0].Status)
	assert.Equal(t, "BBB", buys[1].Symbol)
	assert.Equal(t, int64(100), buys[1].Units) // 1000 / (2 * 5)

	require.Len(t, w.Holdings, 2)
	assert.InDelta(t, 80.0, w.Holdings[0].InitialStop, 1e-9)
	assert.InDelta(t, 190.0, w.Holdings[1].InitialStop, 1e-9)
	assert.InDelta(t, 100000-5000-20000, sim.Cash(), 1e-9)
	assert.InDelta(t, 100000.0, w.PortfolioValue, 1e-9)
	assert.InDelta(t, 50*20+100*10, w.Ledger.CapitalRisk, 1e-9)
	assert.Len(t, w.Candidates, 2)
	assert.Len(t, w.Rankings, 3)
}

func TestStopLossExit(t *testing.T) {
	t.Parallel()
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "AAA", 79, 10, 90)
	sim := newSim(t, f, testStrategy())

	step(t, sim, 0)
	w := step(t, sim, 1)

	sells := actionsOf(w, Sell)
	require.Len(t, sells, 1)
	assert.Equal(t, ReasonStopLoss, sells[0].Reason)
	assert.InDelta(t, -1050.0, sells[0].PnL, 1e-9)
	assert.Empty(t, actionsOf(w, Buy), "a symbol exited this week is not re-entered")
	assert.Empty(t, w.Holdings)
	assert.InDelta(t, 100000-1050.0, sim.Cash(), 1e-9)

	res, err := sim.Run(context.Background(), monday(2), monday(1))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "stoploss", res.Trades[0].Reason)
	assert.Equal(t, 0, res.Summary.SuccessfulTrades)
}

func TestTrailingStopMonotonic(t *testing.T) {
	t.Parallel()
	prices := []float64{100, 120, 110, 130, 125, 128}
	f := newFixture()
	for i, p := range prices {
		f.add(i, "AAA", p, 5, 90)
	}
	sim := newSim(t, f, testStrategy())

	prev := 0.0
	want := []float64{90, 110, 110, 120, 120, 120}
	for i := range prices {
		w := step(t, sim, i)
		require.Len(t, w.Holdings, 1, "week %d", i)
		stop := w.Holdings[0].CurrentStop
		assert.GreaterOrEqual(t, stop, prev)
		assert.InDelta(t, want[i], stop, 1e-9, "week %d", i)
		prev = stop
	}
}

func TestScoreDecaySell(t *testing.T) {
	t.Parallel()
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "AAA", 101, 10, 35)
	sim := newSim(t, f, testStrategy())

	step(t, sim, 0)
	w := step(t, sim, 1)
	sells := actionsOf(w, Sell)
	require.Len(t, sells, 1)
	assert.Equal(t, ReasonScoreDecay, sells[0].Reason)
	assert.Equal(t, 35.0, sells[0].Score)
	assert.InDelta(t, 50.0, sells[0].PnL, 1e-9)
}

func TestScoreDecaySwap(t *testing.T) {
	t.Parallel()
	s := testStrategy()
	s.MaxPositions = 1
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "AAA", 100, 10, 30).
		add(1, "BBB", 50, 2.5, 80)
	sim := newSim(t, f, s)

	step(t, sim, 0)
	w := step(t, sim, 1)

	require.Len(t, w.Actions, 1)
	a := w.Actions[0]
	assert.Equal(t, Swap, a.Type)
	assert.Equal(t, ReasonScoreDecay, a.Reason)
	assert.Equal(t, "AAA", a.Symbol)
	assert.Equal(t, "BBB", a.SwapSymbol)
	assert.Equal(t, int64(200), a.SwapUnits)
	assert.Equal(t, 50.0, a.SwapPrice)
	require.Len(t, w.Holdings, 1)
	assert.Equal(t, "BBB", w.Holdings[0].Symbol)
}

func TestScoreDecayNoQualifiedChallenger(t *testing.T) {
	t.Parallel()
	s := testStrategy()
	s.MaxPositions = 1
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "AAA", 100, 10, 35).
		add(1, "BBB", 50, 2.5, 39) // below exit threshold
	sim := newSim(t, f, s)

	step(t, sim, 0)
	w := step(t, sim, 1)
	require.Len(t, w.Actions, 2)
	assert.Equal(t, Sell, w.Actions[0].Type)
	assert.Equal(t, ReasonScoreDecay, w.Actions[0].Reason)
	// The freed slot is filled as an ordinary entry.
	assert.Equal(t, Buy, w.Actions[1].Type)
	assert.Equal(t, "BBB", w.Actions[1].Symbol)
	require.Len(t, w.Holdings, 1)
	assert.Equal(t, "BBB", w.Holdings[0].Symbol)
}

func TestRotationSwap(t *testing.T) {
	t.Parallel()
	s := testStrategy()
	s.MaxPositions = 1
	s.RotationSwaps = true
	f := newFixture().
		add(0, "AAA", 100, 10, 60).
		add(1, "AAA", 100, 10, 60).
		add(1, "BBB", 50, 2.5, 90)
	sim := newSim(t, f, s)

	step(t, sim, 0)
	w := step(t, sim, 1)
	require.Len(t, w.Actions, 1)
	assert.Equal(t, Swap, w.Actions[0].Type)
	assert.Equal(t, ReasonRotation, w.Actions[0].Reason)
	assert.Equal(t, "BBB", w.Holdings[0].Symbol)
}

func TestRotationNeedsSwapBuffer(t *testing.T) {
	t.Parallel()
	s := testStrategy()
	s.MaxPositions = 1
	s.RotationSwaps = true
	f := newFixture().
		add(0, "AAA", 100, 10, 60).
		add(1, "AAA", 100, 10, 60).
		add(1, "BBB", 50, 2.5, 74) // 74 <= 1.25 * 60
	sim := newSim(t, f, s)

	step(t, sim, 0)
	w := step(t, sim, 1)
	assert.Empty(t, w.Actions)
	assert.Equal(t, "AAA", w.Holdings[0].Symbol)
}

func TestDataGapKeepsPosition(t *testing.T) {
	t.Parallel()
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "BBB", 100, 10, 0).
		add(2, "AAA", 110, 10, 90)
	sim := newSim(t, f, testStrategy())

	step(t, sim, 0)
	w := step(t, sim, 1)
	require.Len(t, w.Holdings, 1)
	assert.Equal(t, "AAA", w.Holdings[0].Symbol)
	assert.Equal(t, 100.0, w.Holdings[0].LastPrice)
	assert.Empty(t, actionsOf(w, Sell))

	var gaps []Anomaly
	for _, a := range w.Anomalies {
		if a.Kind == AnomalyDataGap {
			gaps = append(gaps, a)
		}
	}
	require.Len(t, gaps, 1)
	assert.Equal(t, "AAA", gaps[0].Symbol)

	w = step(t, sim, 2)
	assert.Equal(t, 110.0, w.Holdings[0].LastPrice)
}

func TestEmptyUniverse(t *testing.T) {
	t.Parallel()
	sim := newSim(t, newFixture(), testStrategy())
	w := step(t, sim, 0)
	assert.Empty(t, w.Candidates)
	assert.Empty(t, w.Actions)
	require.Len(t, w.Anomalies, 1)
	assert.Equal(t, AnomalyNoData, w.Anomalies[0].Kind)
	assert.Equal(t, 100000.0, w.PortfolioValue)
}

func TestDrawdownPausesEntries(t *testing.T) {
	t.Parallel()
	s := testStrategy()
	s.RiskThreshold = 10
	s.Drawdown.Enabled = true
	s.Drawdown.ReduceAt = 3
	s.Drawdown.PauseAt = 5
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "AAA", 85, 10, 90).
		add(1, "CCC", 10, 1, 80)
	sim := newSim(t, f, s)

	w := step(t, sim, 0)
	require.Len(t, w.Holdings, 1)
	assert.Equal(t, int64(500), w.Holdings[0].Units)

	w = step(t, sim, 1)
	assert.Equal(t, "paused", w.Drawdown.State.String())
	assert.False(t, w.Drawdown.Allowed)
	assert.Empty(t, actionsOf(w, Buy))
	assert.InDelta(t, 7.5, w.MaxDrawdownPercent, 1e-9)
}

type fixedCosts struct{ buy, sell float64 }

func (c fixedCosts) TransactionCost(_ float64, side market.Side) float64 {
	if side == market.Buy {
		return c.buy
	}
	return c.sell
}

func TestInsufficientCapitalRejected(t *testing.T) {
	t.Parallel()
	s := testStrategy()
	s.InitialCapital = 10000
	s.RiskThreshold = 50
	s.BufferPercent = 0
	f := newFixture().add(0, "AAA", 100, 0.5, 90)
	sim := newSim(t, f, s, WithCostModel(fixedCosts{buy: 25}))

	w := step(t, sim, 0)
	require.Len(t, w.Actions, 1)
	a := w.Actions[0]
	assert.Equal(t, Buy, a.Type)
	assert.Equal(t, Rejected, a.Status)
	assert.Equal(t, ReasonInsufficientCapital, a.Reason)
	assert.Empty(t, w.Holdings)
	assert.Equal(t, 10000.0, sim.Cash())
	assert.Empty(t, w.Approved())
}

func TestNegativeCapitalIsAnomaly(t *testing.T) {
	t.Parallel()
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "AAA", 70, 10, 90).
		add(2, "BBB", 100, 10, 90)
	sim := newSim(t, f, testStrategy(), WithCostModel(fixedCosts{sell: 200000}))

	step(t, sim, 0)
	w := step(t, sim, 1)
	require.Len(t, w.Anomalies, 1)
	assert.Equal(t, AnomalyCapitalIntegrity, w.Anomalies[0].Kind)
	assert.Less(t, w.Ledger.Remaining, 0.0)

	// The run carries on; a negative balance cannot size entries.
	w = step(t, sim, 2)
	assert.Empty(t, w.Actions)
	assert.Equal(t, AnomalyCapitalIntegrity, w.Anomalies[len(w.Anomalies)-1].Kind)
}

func TestCostsAndTaxOnSale(t *testing.T) {
	t.Parallel()
	f := newFixture().
		add(0, "AAA", 100, 10, 90).
		add(1, "AAA", 120, 10, 30)
	sim := newSim(t, f, testStrategy(),
		WithCostModel(costs.DefaultDelivery()),
		WithTaxModel(costs.DefaultCapitalGains()))

	w := step(t, sim, 0)
	buyCost := costs.DefaultDelivery().TransactionCost(5000, market.Buy)
	assert.InDelta(t, 5000+buyCost, w.Ledger.Bought, 1e-9)

	w = step(t, sim, 1)
	sells := actionsOf(w, Sell)
	require.Len(t, sells, 1)
	sellCost := costs.DefaultDelivery().TransactionCost(6000, market.Sell)
	tax := 1000 * 0.20
	assert.InDelta(t, tax, sells[0].Tax, 1e-9)
	assert.InDelta(t, 6000-sellCost-tax, w.Ledger.Sold, 1e-9)
	assert.InDelta(t, 6000-sellCost-tax-5000-buyCost, sells[0].PnL, 1e-9)
}

type memRecorder struct {
	weeks   []WeeklySummary
	results []BacktestResult
	failAt  int
}

func (r *memRecorder) RecordWeek(_ context.Context, _ string, w WeeklySummary) error {
	if r.failAt > 0 && w.Week == r.failAt {
		return errors.New("disk full")
	}
	r.weeks = append(r.weeks, w)
	return nil
}

func (r *memRecorder) RecordResult(_ context.Context, res BacktestResult) error {
	r.results = append(r.results, res)
	return nil
}

type observerFunc func(WeeklySummary)

func (f observerFunc) ObserveWeek(w WeeklySummary) { f(w) }

func trendingFixture(weeks int) *fixture {
	f := newFixture()
	syms := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	for i := 0; i < weeks; i++ {
		for j, sym := range syms {
			price := 100 + float64(i*(j+1)) - float64((i%3)*(5-j))
			score := float64((i*7+j*13)%100) + 1
			f.add(i, sym, price, 2+float64(j), score)
		}
	}
	return f
}

func TestRunLedgerChain(t *testing.T) {
	t.Parallel()
	s := testStrategy()
	s.MaxPositions = 3
	s.RotationSwaps = true
	rec := &memRecorder{}
	sim := newSim(t, trendingFixture(20), s,
		WithCostModel(costs.DefaultDelivery()),
		WithTaxModel(costs.DefaultCapitalGains()),
		WithRecorder(rec))

	res, err := sim.Run(context.Background(), monday(0), monday(19))
	require.NoError(t, err)
	require.Len(t, res.Weeks, 20)
	require.Len(t, rec.weeks, 20)
	require.Len(t, rec.results, 1)

	for i, w := range res.Weeks {
		assert.True(t, w.Ledger.Balanced(1e-6), "week %d", i)
		assert.InDelta(t, w.PortfolioValue, markedValue(w), 1e-6, "week %d", i)
		if i > 0 {
			assert.InDelta(t, res.Weeks[i-1].Ledger.Remaining, w.Ledger.Starting, 1e-9)
		}
		assert.LessOrEqual(t, len(w.Holdings), 3)
	}
	tot := res.Totals()
	assert.True(t, tot.Balanced(1e-6))
	assert.Equal(t, res.Summary.TotalTrades, len(res.Trades))

	_, err = sim.Run(context.Background(), monday(0), monday(1))
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()
	run := func() BacktestResult {
		s := testStrategy()
		s.MaxPositions = 3
		clock := func() time.Time { return epoch }
		sim := newSim(t, trendingFixture(15), s, WithClock(clock), WithCostModel(costs.DefaultDelivery()))
		res, err := sim.Run(context.Background(), monday(0), monday(14))
		require.NoError(t, err)
		return res
	}
	strip := func(r BacktestResult) BacktestResult {
		r.RunID = ""
		for i := range r.Weeks {
			acts := append([]Action(nil), r.Weeks[i].Actions...)
			for j := range acts {
				acts[j].ID = ""
			}
			r.Weeks[i].Actions = acts
		}
		return r
	}

	a, b := strip(run()), strip(run())
	assert.Equal(t, a, b)
}

func TestRunCancelledBetweenWeeks(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := newSim(t, trendingFixture(5), testStrategy(),
		WithObserver(observerFunc(func(w WeeklySummary) {
			if w.Week == 2 {
				cancel()
			}
		})))

	res, err := sim.Run(ctx, monday(0), monday(4))
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Weeks, 2)
}

func TestRecorderFailureAborts(t *testing.T) {
	t.Parallel()
	rec := &memRecorder{failAt: 3}
	sim := newSim(t, trendingFixture(5), testStrategy(), WithRecorder(rec))

	res, err := sim.Run(context.Background(), monday(0), monday(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, res.Weeks, 3)
	assert.Len(t, rec.weeks, 2)
	assert.Empty(t, rec.results)
}
