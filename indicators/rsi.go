package indicators

import (
	"fmt"

	"github.com/rustyeddy/momentum/market"
)

// RSI is Wilder's Relative Strength Index.
type RSI struct {
	period    int
	count     int
	avgGain   float64
	avgLoss   float64
	prevClose float64
	hasPrev   bool
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }
func (r *RSI) Warmup() int { return r.period + 1 }

func (r *RSI) Reset() {
	*r = RSI{period: r.period}
}

func (r *RSI) Update(c market.Candle) {
	if !r.hasPrev {
		r.prevClose = c.Close
		r.hasPrev = true
		return
	}

	change := c.Close - r.prevClose
	r.prevClose = c.Close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.count < r.period {
		r.avgGain += gain / float64(r.period)
		r.avgLoss += loss / float64(r.period)
		r.count++
		return
	}
	n := float64(r.period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
}

func (r *RSI) Ready() bool { return r.count >= r.period }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// ROC is the percent rate of change over period candles.
type ROC struct {
	period int
	win    *window
}

func NewROC(period int) *ROC {
	return &ROC{period: period, win: newWindow(period + 1)}
}

func (r *ROC) Name() string { return fmt.Sprintf("ROC(%d)", r.period) }
func (r *ROC) Warmup() int { return r.period + 1 }
func (r *ROC) Reset() { r.win.reset() }
func (r *ROC) Ready() bool { return r.win.len() > r.period }
func (r *ROC) Update(c market.Candle) { r.win.push(c.Close) }

func (r *ROC) Value() float64 {
	if !r.Ready() {
		return 0
	}
	// After a full window, oldest is the close period candles back.
	base := r.win.oldest()
	if base == 0 {
		return 0
	}
	latest := r.win.vals[(r.win.next+len(r.win.vals)-1)%len(r.win.vals)]
	return (latest - base) / base * 100
}
