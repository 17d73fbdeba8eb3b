package indicators

import (
	"fmt"

	"github.com/rustyeddy/momentum/market"
)

// SimpleMA is a streaming simple moving average over a candle field.
type SimpleMA struct {
	period int
	field  func(market.Candle) float64
	win    *window
}

// NewMA averages closing prices over period candles.
func NewMA(period int) *SimpleMA {
	return NewMAOf(period, closeOf)
}

// NewMAOf averages an arbitrary candle field, e.g. volume or turnover.
func NewMAOf(period int, field func(market.Candle) float64) *SimpleMA {
	return &SimpleMA{period: period, field: field, win: newWindow(period)}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("MA(%d)", m.period) }
func (m *SimpleMA) Warmup() int { return m.period }
func (m *SimpleMA) Reset() { m.win.reset() }

func (m *SimpleMA) Update(c market.Candle) {
	m.win.push(m.field(c))
}

func (m *SimpleMA) Ready() bool { return m.win.len() >= m.period }

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.win.mean()
}

// ExponentialMA is a streaming exponential moving average seeded with the
// simple average of the first period values.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }
func (e *ExponentialMA) Warmup() int { return e.period }

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(c market.Candle) {
	e.Add(c.Close)
}

// Add consumes a raw value. PPO signal lines smooth values that are not
// candle prices.
func (e *ExponentialMA) Add(v float64) {
	if e.count < e.period {
		e.warmupSum += v
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (v-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool { return e.count >= e.period }

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

func closeOf(c market.Candle) float64 { return c.Close }
