package scoring

import (
	"testing"
	"time"

	"github.com/rustyeddy/momentum/indicators"
	"github.com/rustyeddy/momentum/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy() market.Snapshot {
	return market.Snapshot{
		Symbol:  "OK",
		Close:   120,
		History: 400,
		Values: map[string]float64{
			market.EMA200:    100,
			market.EMA50:     110,
			market.ATR14:     3,
			market.ATR14Lag2: 2.5,
			market.Turnover:  80_000_000,
		},
	}
}

func TestPenaltyChecks(t *testing.T) {
	t.Parallel()
	p := DefaultPenalty()

	tests := []struct {
		name string
		snap market.Snapshot
		want []Reason
	}{
		{"healthy", healthy(), nil},
		{"broken trend", healthy().With(market.EMA200, 130), []Reason{BelowEMA200}},
		{"atr spike", healthy().With(market.ATR14, 5.1), []Reason{ATRSpike}},
		{"atr exactly double", healthy().With(market.ATR14, 5), nil},
		{"illiquid", healthy().With(market.Turnover, 1_000_000), []Reason{Illiquid}},
		{
			"all at once",
			healthy().With(market.EMA200, 130).With(market.ATR14, 9).With(market.Turnover, 10),
			[]Reason{BelowEMA200, ATRSpike, Illiquid},
		},
		{"missing inputs never fire", market.Snapshot{Symbol: "BARE", Close: 10}, nil},
		{"zero lag ignored", healthy().With(market.ATR14Lag2, 0), nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := p.Evaluate(tt.snap)
			assert.Equal(t, tt.want, v.Reasons)
			assert.Equal(t, len(tt.want) > 0, v.Penalized())
		})
	}
}

func TestPenaltyEMA50Optional(t *testing.T) {
	t.Parallel()

	snap := healthy().With(market.EMA50, 125)
	assert.False(t, DefaultPenalty().Evaluate(snap).Penalized())

	p := DefaultPenalty()
	p.CheckEMA50 = true
	assert.Equal(t, []Reason{BelowEMA50}, p.Evaluate(snap).Reasons)
}

func TestPenaltyHistoryGate(t *testing.T) {
	t.Parallel()

	p := DefaultPenalty()
	p.MinHistory = 200
	snap := healthy().With(market.EMA200, 130)
	snap.History = 150
	assert.False(t, p.Evaluate(snap).Penalized())
}

func TestPenaltyIdempotent(t *testing.T) {
	t.Parallel()
	p := DefaultPenalty()

	for _, snap := range []market.Snapshot{healthy(), healthy().With(market.EMA200, 500)} {
		for _, score := range []float64{0, 12.5, 73, 100} {
			once := p.Apply(score, snap)
			twice := p.Apply(once, snap)
			assert.Equal(t, once, twice)
			assert.GreaterOrEqual(t, once, 0.0)
			assert.LessOrEqual(t, once, 100.0)
		}
	}
}

// A long flat series that collapses on the last bar must be zeroed.
func TestPenaltyBoxCollapse(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, 0, 211)
	for i := 0; i < 210; i++ {
		candles = append(candles, market.Candle{
			Symbol: "FLAT", Time: start.AddDate(0, 0, i),
			Open: 100, High: 100, Low: 100, Close: 100, Volume: 1_000_000,
		})
	}
	candles = append(candles, market.Candle{
		Symbol: "FLAT", Time: start.AddDate(0, 0, 210),
		Open: 100, High: 100, Low: 50, Close: 50, Volume: 1_000_000,
	})

	snaps := indicators.Snapshots("FLAT", candles)
	final := snaps[len(snaps)-1]

	ema, ok := final.Get(market.EMA200)
	require.True(t, ok)
	assert.InDelta(t, 100, ema, 1)

	p := DefaultPenalty()
	p.MinHistory = 200
	assert.Contains(t, p.Evaluate(final).Reasons, BelowEMA200)
	assert.Equal(t, 0.0, p.Apply(87, final))

	cfg := DefaultConfig()
	s, err := NewScorer(cfg)
	require.NoError(t, err)
	results := s.Score([]market.Snapshot{final})
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestPenaltyValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultPenalty().Validate())
	assert.Error(t, Penalty{ATRSpikeRatio: 0}.Validate())
	assert.Error(t, Penalty{ATRSpikeRatio: 2, MinTurnover: -1}.Validate())
}
