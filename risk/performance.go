package risk

import (
	"math"
	"time"
)

const (
	DefaultRiskFree = 0.06
	WeeksPerYear    = 52
	daysPerYear     = 365.25
)

// Performance holds annualized return and trade statistics.
type Performance struct {
	CAGRPercent       float64 `json:"cagr_percent"`
	VolatilityPercent float64 `json:"volatility_percent"`
	Sharpe            float64 `json:"sharpe"`
	Sortino           float64 `json:"sortino"`
	Calmar            float64 `json:"calmar"`
	WinRatePercent    float64 `json:"win_rate_percent"`
	ProfitFactor      float64 `json:"profit_factor"`
	Expectancy        float64 `json:"expectancy"`
	AvgHoldingDays    float64 `json:"avg_holding_days"`
	BestTrade         float64 `json:"best_trade"`
	WorstTrade        float64 `json:"worst_trade"`
}

// Performance computes over [start, end] using a riskFree annual
// rate and periodsPerYear value samples.
func (m *Monitor) Performance(start, end time.Time, riskFree float64, periodsPerYear int) Performance {
	p := Performance{}

	years := end.Sub(start).Hours() / 24 / daysPerYear
	final := m.Current()
	if years > 0 && m.initial > 0 && final > 0 {
		p.CAGRPercent = (math.Pow(final/m.initial, 1/years) - 1) * 100
	}

	rets := periodReturns(m.initial, m.values)
	if len(rets) > 1 && periodsPerYear > 0 {
		ppy := float64(periodsPerYear)
		rf := riskFree / ppy
		mean, sd := meanStd(rets)
		p.VolatilityPercent = sd * math.Sqrt(ppy) * 100
		if sd > 0 {
			p.Sharpe = (mean - rf) / sd * math.Sqrt(ppy)
		}
		if dd := downsideDev(rets, rf); dd > 0 {
			p.Sortino = (mean - rf) / dd * math.Sqrt(ppy)
		}
	}
	if m.maxDD > 0 {
		p.Calmar = p.CAGRPercent / m.maxDD
	}

	var wins int
	var grossWin, grossLoss, holding float64
	for i, t := range m.trades {
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
		} else {
			grossLoss += -t.PnL
		}
		holding += t.HoldingDays()
		if i == 0 || t.PnL > p.BestTrade {
			p.BestTrade = t.PnL
		}
		if i == 0 || t.PnL < p.WorstTrade {
			p.WorstTrade = t.PnL
		}
	}
	if n := len(m.trades); n > 0 {
		p.WinRatePercent = float64(wins) / float64(n) * 100
		p.Expectancy = (grossWin - grossLoss) / float64(n)
		p.AvgHoldingDays = holding / float64(n)
	}
	// No losing trade leaves the ratio undefined; report 0.
	if grossLoss > 0 {
		p.ProfitFactor = grossWin / grossLoss
	}
	return p
}

func periodReturns(initial float64, values []float64) []float64 {
	out := make([]float64, 0, len(values))
	prev := initial
	for _, v := range values {
		if prev > 0 {
			out = append(out, v/prev-1)
		}
		prev = v
	}
	return out
}

func meanStd(xs []float64) (mean, sd float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		sd += (x - mean) * (x - mean)
	}
	sd = math.Sqrt(sd / float64(len(xs)-1))
	return mean, sd
}

func downsideDev(xs []float64, target float64) float64 {
	var ss float64
	for _, x := range xs {
		if d := x - target; d < 0 {
			ss += d * d
		}
	}
	return math.Sqrt(ss / float64(len(xs)))
}
