package risk

import (
	"math"
	"time"
)

// Trade is a closed round trip.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Reason     string    `json:"reason"`
	Units      int64     `json:"units"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	// PnL is net of costs and tax.
	PnL   float64 `json:"pnl"`
	Costs float64 `json:"costs"`
	Tax   float64 `json:"tax"`
}

// HoldingDays is the calendar length of the trade.
func (t Trade) HoldingDays() float64 {
	return t.ExitDate.Sub(t.EntryDate).Hours() / 24
}

// Summary is the end-of-run risk report.
type Summary struct {
	InitialCapital     float64 `json:"initial_capital"`
	FinalValue         float64 `json:"final_value"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	TotalTrades        int     `json:"total_trades"`
	SuccessfulTrades   int     `json:"successful_trades"`
	HitRatePercent     float64 `json:"hit_rate_percent"`
}

// Monitor accumulates portfolio values and closed trades for one run.
type Monitor struct {
	initial float64
	values  []float64
	peak    float64
	maxDD   float64
	trades  []Trade
}

// NewMonitor starts the peak at the initial capital.
func NewMonitor(initialCapital float64) *Monitor {
	return &Monitor{initial: initialCapital, peak: initialCapital}
}

// Update appends value and refreshes the peak and max drawdown.
func (m *Monitor) Update(value float64) {
	if math.IsNaN(value) {
		return
	}
	m.values = append(m.values, value)
	if value > m.peak {
		m.peak = value
	}
	m.maxDD = math.Max(m.maxDD, DrawdownPct(m.peak, value))
}

// RecordTrade keeps closed trades only; a trade without an exit date is
// still open and is dropped.
func (m *Monitor) RecordTrade(t Trade) {
	if t.ExitDate.IsZero() {
		return
	}
	m.trades = append(m.trades, t)
}

func (m *Monitor) Peak() float64 { return m.peak }
func (m *Monitor) MaxDrawdown() float64 { return m.maxDD }
func (m *Monitor) Values() []float64 { return append([]float64(nil), m.values...) }
func (m *Monitor) Trades() []Trade { return append([]Trade(nil), m.trades...) }
func (m *Monitor) InitialCapital() float64 { return m.initial }

// Current returns the latest value, or the initial capital before any
// update.
func (m *Monitor) Current() float64 {
	if len(m.values) == 0 {
		return m.initial
	}
	return m.values[len(m.values)-1]
}

// CurrentDrawdown is the drawdown of the latest value from the peak.
func (m *Monitor) CurrentDrawdown() float64 {
	return DrawdownPct(m.peak, m.Current())
}

func (m *Monitor) Summary() Summary {
	s := Summary{
		InitialCapital:     m.initial,
		FinalValue:         m.Current(),
		MaxDrawdownPercent: m.maxDD,
		TotalTrades:        len(m.trades),
	}
	s.TotalReturnPercent = ReturnPct(m.initial, s.FinalValue)
	for _, t := range m.trades {
		if t.PnL > 0 {
			s.SuccessfulTrades++
		}
	}
	if s.TotalTrades > 0 {
		s.HitRatePercent = float64(s.SuccessfulTrades) / float64(s.TotalTrades) * 100
	}
	return s
}
