// Package indicators derives the daily indicator values a Snapshot needs
// from raw OHLCV candles.
package indicators

import (
	"math"

	"github.com/rustyeddy/momentum/market"
)

// Indicator computes a single streaming value from candles.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value, or 0 before Ready.
	Value() float64
}

// Series feeds every candle through ind and returns one value per candle,
// NaN until the indicator is ready. ind is reset first.
func Series(ind Indicator, candles []market.Candle) []float64 {
	ind.Reset()
	out := make([]float64, len(candles))
	for i, c := range candles {
		ind.Update(c)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// window is a fixed-size ring of the most recent values.
type window struct {
	vals []float64
	next int
	full bool
}

func newWindow(n int) *window {
	return &window{vals: make([]float64, n)}
}

func (w *window) push(v float64) {
	w.vals[w.next] = v
	w.next = (w.next + 1) % len(w.vals)
	if w.next == 0 {
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.vals)
	}
	return w.next
}

// oldest returns the value that will be overwritten next.
func (w *window) oldest() float64 {
	if !w.full {
		return w.vals[0]
	}
	return w.vals[w.next]
}

func (w *window) reset() {
	for i := range w.vals {
		w.vals[i] = 0
	}
	w.next = 0
	w.full = false
}

func (w *window) mean() float64 {
	n := w.len()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += w.vals[i]
	}
	return sum / float64(n)
}

func (w *window) stddev() float64 {
	n := w.len()
	if n < 2 {
		return 0
	}
	m := w.mean()
	ss := 0.0
	for i := 0; i < n; i++ {
		d := w.vals[i] - m
		ss += d * d
	}
	// Sample standard deviation, matching the usual Bollinger definition.
	return math.Sqrt(ss / float64(n-1))
}
