package market

import (
	"math"
	"time"
)

// Indicator names carried in a Snapshot.
const (
	Close        = "close"
	Volume       = "volume"
	EMA50        = "ema_50"
	EMA200       = "ema_200"
	EMA50Slope   = "ema_50_slope"
	RSI14        = "rsi_14"
	RSISignal    = "rsi_signal"
	ROC10        = "roc_10"
	ROC20        = "roc_20"
	ROC60        = "roc_60"
	ROC125       = "roc_125"
	StochK       = "stoch_k"
	StochD       = "stoch_d"
	PPO          = "ppo"
	PPOHist      = "ppo_hist"
	MACD         = "macd"
	MACDSignal   = "macd_signal"
	BBUpper      = "bb_upper"
	BBMiddle     = "bb_middle"
	BBLower      = "bb_lower"
	PercentB     = "percent_b"
	Bandwidth    = "bandwidth"
	ATR14        = "atr_14"
	ATR14Lag2    = "atr_14_lag2"
	VolumeSMA20  = "volume_sma_20"
	PriceVolCorr = "price_vol_corr"
	Turnover     = "turnover"
)

// Snapshot holds the indicator values of one symbol on one trading day.
// Treat it as immutable once built.
type Snapshot struct {
	Symbol  string             `json:"symbol"`
	Date    time.Time          `json:"date"`
	Close   float64            `json:"close"`
	History int                `json:"history"`
	Values  map[string]float64 `json:"values"`
}

// Get returns the named value and whether it is usable. NaN and infinite
// values are reported as missing.
func (s Snapshot) Get(name string) (float64, bool) {
	if name == Close && s.Close != 0 {
		return s.Close, valid(s.Close)
	}
	v, ok := s.Values[name]
	if !ok {
		return 0, false
	}
	return v, valid(v)
}

// Positive is Get restricted to values greater than zero.
func (s Snapshot) Positive(name string) (float64, bool) {
	v, ok := s.Get(name)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// With returns a copy of s with name set to v.
func (s Snapshot) With(name string, v float64) Snapshot {
	values := make(map[string]float64, len(s.Values)+1)
	for k, x := range s.Values {
		values[k] = x
	}
	values[name] = v
	s.Values = values
	return s
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
