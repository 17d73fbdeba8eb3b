package market

import "time"

// Candle is one daily OHLCV bar for a symbol.
type Candle struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Turnover is the traded value of the bar.
func (c Candle) Turnover() float64 {
	return c.Close * c.Volume
}

// Side is the direction of a trade.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}
