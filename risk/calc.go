package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// RiskAmount is the currency risked per trade for a percent threshold,
// e.g. RiskAmount(100000, 1) == 1000.
func RiskAmount(capital, thresholdPct float64) float64 {
	return capital * thresholdPct / 100
}

// OpenRisk is what a position loses if its stop is hit, measured from
// entry. Stops above entry lock in gains and contribute negative risk.
func OpenRisk(units int64, entry, stop float64) float64 {
	return float64(units) * (entry - stop)
}

// DrawdownPct is the percent decline of value from peak.
func DrawdownPct(peak, value float64) float64 {
	if peak <= 0 {
		return 0
	}
	return math.Max(0, (peak-value)/peak*100)
}

// ReturnPct is the percent change from start to end.
func ReturnPct(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return (end - start) / abs(start) * 100
}
