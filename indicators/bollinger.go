package indicators

import (
	"fmt"

	"github.com/rustyeddy/momentum/market"
)

// Bollinger tracks a simple-average band of k standard deviations.
type Bollinger struct {
	period int
	k      float64
	win    *window
	last   float64
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, win: newWindow(period)}
}

func (b *Bollinger) Name() string { return fmt.Sprintf("BB(%d,%.1f)", b.period, b.k) }
func (b *Bollinger) Warmup() int { return b.period }
func (b *Bollinger) Reset() { b.win.reset() }
func (b *Bollinger) Ready() bool { return b.win.len() >= b.period }

func (b *Bollinger) Update(c market.Candle) {
	b.win.push(c.Close)
	b.last = c.Close
}

// Value is the middle band.
func (b *Bollinger) Value() float64 {
	if !b.Ready() {
		return 0
	}
	return b.win.mean()
}

// Bands returns the lower, middle and upper band.
func (b *Bollinger) Bands() (lower, middle, upper float64) {
	middle = b.Value()
	sd := b.win.stddev()
	return middle - b.k*sd, middle, middle + b.k*sd
}

// PercentB is the position of the last close within the bands.
func (b *Bollinger) PercentB() float64 {
	lower, _, upper := b.Bands()
	if upper == lower {
		return 0.5
	}
	return (b.last - lower) / (upper - lower)
}

// Bandwidth is the band width relative to the middle band.
func (b *Bollinger) Bandwidth() float64 {
	lower, middle, upper := b.Bands()
	if middle == 0 {
		return 0
	}
	return (upper - lower) / middle
}
