package scoring

import (
	"fmt"

	"github.com/rustyeddy/momentum/market"
)

// Reason names a toxic condition.
type Reason string

const (
	BelowEMA200 Reason = "below_ema200"
	ATRSpike    Reason = "atr_spike"
	Illiquid    Reason = "illiquid"
	BelowEMA50  Reason = "below_ema50"
)

// Verdict lists every condition that fired for a snapshot.
type Verdict struct {
	Reasons []Reason
}

func (v Verdict) Penalized() bool { return len(v.Reasons) > 0 }

func (v *Verdict) add(r Reason) {
	v.Reasons = append(v.Reasons, r)
}

// Penalty zeroes scores of symbols in a broken trend, a volatility spike or
// too thin to trade.
type Penalty struct {
	// ATRSpikeRatio trips when ATR exceeds this multiple of ATR two bars ago.
	ATRSpikeRatio float64 `json:"atr_spike_ratio" yaml:"atr_spike_ratio"`
	// MinTurnover is the minimum average daily traded value; 0 disables it.
	MinTurnover float64 `json:"min_turnover" yaml:"min_turnover"`
	// CheckEMA50 also penalizes closes below the 50-EMA.
	CheckEMA50 bool `json:"check_ema50" yaml:"check_ema50"`
	// MinHistory is the bar count below which the 200-EMA is ignored.
	MinHistory int `json:"-" yaml:"-"`
}

// DefaultPenalty trips at a doubled ATR or under 5 crore turnover.
func DefaultPenalty() Penalty {
	return Penalty{
		ATRSpikeRatio: 2.0,
		MinTurnover:   50_000_000,
	}
}

func (p Penalty) Validate() error {
	if p.ATRSpikeRatio <= 0 {
		return fmt.Errorf("penalty.atr_spike_ratio must be positive")
	}
	if p.MinTurnover < 0 {
		return fmt.Errorf("penalty.min_turnover must not be negative")
	}
	return nil
}

// Evaluate runs every check against s. Checks whose inputs are missing do
// not fire.
func (p Penalty) Evaluate(s market.Snapshot) Verdict {
	var v Verdict
	closePx, hasClose := s.Positive(market.Close)

	if ema, ok := s.Positive(market.EMA200); ok && hasClose && s.History >= p.MinHistory {
		if closePx < ema {
			v.add(BelowEMA200)
		}
	}

	atr, okATR := s.Positive(market.ATR14)
	lag, okLag := s.Positive(market.ATR14Lag2)
	if okATR && okLag && atr > p.ATRSpikeRatio*lag {
		v.add(ATRSpike)
	}

	if p.MinTurnover > 0 {
		if t, ok := s.Get(market.Turnover); ok && t < p.MinTurnover {
			v.add(Illiquid)
		}
	}

	if p.CheckEMA50 {
		if ema, ok := s.Positive(market.EMA50); ok && hasClose && closePx < ema {
			v.add(BelowEMA50)
		}
	}
	return v
}

// Apply returns 0 when s is penalized and score otherwise.
func (p Penalty) Apply(score float64, s market.Snapshot) float64 {
	if p.Evaluate(s).Penalized() {
		return 0
	}
	return score
}
