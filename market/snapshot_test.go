package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotGet(t *testing.T) {
	t.Parallel()

	s := Snapshot{
		Symbol: "INFY",
		Close:  1500,
		Values: map[string]float64{
			EMA200: 1400,
			RSI14:  math.NaN(),
			ATR14:  math.Inf(1),
			PPO:    -0.5,
		},
	}

	v, ok := s.Get(Close)
	assert.True(t, ok)
	assert.Equal(t, 1500.0, v)

	v, ok = s.Get(EMA200)
	assert.True(t, ok)
	assert.Equal(t, 1400.0, v)

	_, ok = s.Get(RSI14)
	assert.False(t, ok, "NaN is missing")
	_, ok = s.Get(ATR14)
	assert.False(t, ok, "Inf is missing")
	_, ok = s.Get(MACD)
	assert.False(t, ok)

	_, ok = s.Positive(PPO)
	assert.False(t, ok)
}

func TestSnapshotWithCopies(t *testing.T) {
	t.Parallel()

	s := Snapshot{Symbol: "TCS", Values: map[string]float64{PPO: 1}}
	s2 := s.With(PPO, 2)

	assert.Equal(t, 1.0, s.Values[PPO])
	assert.Equal(t, 2.0, s2.Values[PPO])
}

func TestCandleTurnoverAndSide(t *testing.T) {
	t.Parallel()

	c := Candle{Close: 100, Volume: 2500}
	assert.Equal(t, 250000.0, c.Turnover())
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
}
